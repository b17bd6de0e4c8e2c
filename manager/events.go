package manager

import (
	"sync"

	"github.com/nepapay/chaingate/types"
)

// EventType is the closed set of events the manager publishes. Using a
// dedicated type instead of free-form strings keeps subscriptions
// compiler-checked.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventDisconnected       EventType = "disconnected"
	EventConnectionError    EventType = "connectionError"
	EventDisconnectionError EventType = "disconnectionError"
	EventTransactionSending EventType = "transactionSending"
	EventTransactionSent    EventType = "transactionSent"
	EventTransactionError   EventType = "transactionError"
	EventProviderChanged    EventType = "providerChanged"
	EventNetworkChange      EventType = "networkChange"
	EventConfigUpdated      EventType = "configUpdated"
)

// Event is the typed payload delivered to subscribers. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type    EventType
	Network types.BlockchainNetwork

	Connection *types.WalletConnection
	Request    *types.TransactionRequest
	Response   *types.TransactionResponse
	Config     *types.BlockchainConfig
	Err        *types.BlockchainError
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Hub is a synchronous in-process publish/subscribe dispatcher.
type Hub struct {
	mu   sync.RWMutex
	seq  int
	subs map[EventType]map[int]Handler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[EventType]map[int]Handler)}
}

// Subscribe registers a handler for one event type and returns an id
// usable with Unsubscribe.
func (h *Hub) Subscribe(t EventType, fn Handler) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	if h.subs[t] == nil {
		h.subs[t] = make(map[int]Handler)
	}
	h.subs[t][h.seq] = fn
	return h.seq
}

// Unsubscribe removes a handler. Unknown ids are a no-op.
func (h *Hub) Unsubscribe(t EventType, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[t], id)
}

// Publish delivers an event to every handler subscribed to its type.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[e.Type]))
	for _, fn := range h.subs[e.Type] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

// Clear drops every subscription.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = make(map[EventType]map[int]Handler)
}

package monitor

import (
	"sync"

	"github.com/nepapay/chaingate/types"
)

// EventType is the closed set of monitor events.
type EventType string

const (
	EventStatusUpdate EventType = "status_update"
	EventCompletion   EventType = "completion"
	EventFailure      EventType = "failure"
	EventTimeout      EventType = "timeout"
)

// Event carries a snapshot of the transaction at the moment of emission.
type Event struct {
	Type        EventType
	Transaction *types.CrossChainTransaction
	Err         *types.BlockchainError
}

// Handler receives monitor events synchronously.
type Handler func(Event)

type hub struct {
	mu   sync.RWMutex
	seq  int
	subs map[EventType]map[int]Handler
}

func newHub() *hub {
	return &hub{subs: make(map[EventType]map[int]Handler)}
}

func (h *hub) subscribe(t EventType, fn Handler) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	if h.subs[t] == nil {
		h.subs[t] = make(map[int]Handler)
	}
	h.subs[t][h.seq] = fn
	return h.seq
}

func (h *hub) unsubscribe(t EventType, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[t], id)
}

func (h *hub) publish(e Event) {
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

func (h *hub) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = make(map[EventType]map[int]Handler)
}

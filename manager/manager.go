// Package manager multiplexes multiple chain providers behind one uniform
// connect/send/estimate/query API. Every error that leaves the manager is a
// *types.BlockchainError, and connection/transaction failures are reported
// both as a returned error and as a hub event so passive subscribers never
// need to wrap calls themselves.
package manager

import (
	"context"
	"sync"

	"github.com/nepapay/chaingate/logger"
	"github.com/nepapay/chaingate/providers"
	"github.com/nepapay/chaingate/types"
)

// Manager owns the provider registry and one "current" connection. The
// current pointer is last-writer-wins: concurrent Connect calls for
// different networks leave the pointer at whichever finished last. Callers
// needing determinism use the explicit-network operations, which never read
// or mutate the pointer.
type Manager struct {
	mu         sync.RWMutex
	providers  map[types.BlockchainNetwork]providers.ChainProvider
	order      []types.BlockchainNetwork
	current    providers.ChainProvider
	connection *types.WalletConnection

	hub *Hub
	log logger.Logger
}

func New(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Manager{
		providers: make(map[types.BlockchainNetwork]providers.ChainProvider),
		hub:       NewHub(),
		log:       log,
	}
}

// Hub exposes the manager's event hub for subscribe/unsubscribe.
func (m *Manager) Hub() *Hub { return m.hub }

// RegisterProvider adds a provider to the registry. Registering the same
// network twice replaces the previous provider.
func (m *Manager) RegisterProvider(p providers.ChainProvider) {
	network := p.Network()

	m.mu.Lock()
	if _, exists := m.providers[network]; !exists {
		m.order = append(m.order, network)
	}
	m.providers[network] = p
	m.mu.Unlock()

	cfg := p.Config()
	m.hub.Publish(Event{Type: EventConfigUpdated, Network: network, Config: &cfg})
	m.log.Debug("provider registered", map[string]any{"network": network})
}

func (m *Manager) GetProvider(network types.BlockchainNetwork) (providers.ChainProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[network]
	if !ok {
		return nil, types.Errorf(types.ErrProviderNotFound, network, "no provider registered for network %s", network)
	}
	return p, nil
}

// GetAllProviders returns every registered provider in registration order.
func (m *Manager) GetAllProviders() []providers.ChainProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]providers.ChainProvider, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.providers[n])
	}
	return out
}

// GetSupportedNetworks returns registered networks in registration order.
func (m *Manager) GetSupportedNetworks() []types.BlockchainNetwork {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.BlockchainNetwork(nil), m.order...)
}

// Connect establishes a session on the given network and makes it the
// current one.
func (m *Manager) Connect(ctx context.Context, network types.BlockchainNetwork) (*types.WalletConnection, error) {
	p, err := m.GetProvider(network)
	if err != nil {
		be := types.WrapError(err, types.ErrConnectionFailed, network)
		m.hub.Publish(Event{Type: EventConnectionError, Network: network, Err: be})
		return nil, be
	}

	conn, err := p.Connect(ctx)
	if err != nil {
		be := types.WrapError(err, types.ErrConnectionFailed, network)
		m.hub.Publish(Event{Type: EventConnectionError, Network: network, Err: be})
		m.log.Error("connect failed", map[string]any{"network": network, "error": be.Error()})
		return nil, be
	}

	m.mu.Lock()
	changed := m.current != nil && m.current.Network() != network
	m.current = p
	m.connection = conn
	m.mu.Unlock()

	m.hub.Publish(Event{Type: EventConnected, Network: network, Connection: conn})
	if changed {
		m.hub.Publish(Event{Type: EventProviderChanged, Network: network, Connection: conn})
	}
	m.log.Info("connected", map[string]any{"network": network, "address": conn.Address})
	return conn, nil
}

// Disconnect tears down the current session. Calling it with no current
// connection is a safe no-op.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	p := m.current
	m.current = nil
	m.connection = nil
	m.mu.Unlock()

	if p == nil {
		return nil
	}

	network := p.Network()
	if err := p.Disconnect(ctx); err != nil {
		be := types.WrapError(err, types.ErrConnectionFailed, network)
		m.hub.Publish(Event{Type: EventDisconnectionError, Network: network, Err: be})
		return be
	}

	m.hub.Publish(Event{Type: EventDisconnected, Network: network})
	return nil
}

// SwitchNetwork moves the current connection to another network. If the
// manager is already connected to the requested network it returns the
// existing connection without re-authenticating.
func (m *Manager) SwitchNetwork(ctx context.Context, network types.BlockchainNetwork) (*types.WalletConnection, error) {
	m.mu.RLock()
	current := m.current
	conn := m.connection
	m.mu.RUnlock()

	if current != nil && current.Network() == network && current.IsConnected() {
		return conn, nil
	}

	if current != nil {
		if err := m.Disconnect(ctx); err != nil {
			m.log.Warn("disconnect before switch failed", map[string]any{
				"from": current.Network(), "to": network, "error": err.Error(),
			})
		}
	}

	newConn, err := m.Connect(ctx, network)
	if err != nil {
		return nil, err
	}

	m.hub.Publish(Event{Type: EventNetworkChange, Network: network, Connection: newConn})
	return newConn, nil
}

func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil && m.current.IsConnected()
}

// CurrentNetwork reports which network the current pointer addresses.
func (m *Manager) CurrentNetwork() (types.BlockchainNetwork, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return "", false
	}
	return m.current.Network(), true
}

// CurrentAccount returns the active wallet connection.
func (m *Manager) CurrentAccount(ctx context.Context) (*types.WalletConnection, error) {
	m.mu.RLock()
	p := m.current
	m.mu.RUnlock()

	if p == nil {
		return nil, types.NewError(types.ErrNoAccount, "no active connection", "")
	}

	conn, err := p.GetAccount(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrNoAccount, p.Network())
	}
	return conn, nil
}

// SendTransaction submits a transaction via the current provider.
func (m *Manager) SendTransaction(ctx context.Context, req *types.TransactionRequest) (*types.TransactionResponse, error) {
	m.mu.RLock()
	p := m.current
	m.mu.RUnlock()

	if p == nil {
		return nil, types.NewError(types.ErrNotConnected, "no current connection", "")
	}
	return m.send(ctx, p, req)
}

// SendTransactionOn submits a transaction directly on the named network
// without touching the current pointer.
func (m *Manager) SendTransactionOn(ctx context.Context, network types.BlockchainNetwork, req *types.TransactionRequest) (*types.TransactionResponse, error) {
	p, err := m.GetProvider(network)
	if err != nil {
		return nil, err
	}
	return m.send(ctx, p, req)
}

func (m *Manager) send(ctx context.Context, p providers.ChainProvider, req *types.TransactionRequest) (*types.TransactionResponse, error) {
	network := p.Network()
	m.hub.Publish(Event{Type: EventTransactionSending, Network: network, Request: req})

	resp, err := p.SendTransaction(ctx, req)
	if err != nil {
		be := types.WrapError(err, types.ErrTransactionFailed, network)
		m.hub.Publish(Event{Type: EventTransactionError, Network: network, Request: req, Err: be})
		m.log.Error("transaction failed", map[string]any{"network": network, "error": be.Error()})
		return nil, be
	}

	m.hub.Publish(Event{Type: EventTransactionSent, Network: network, Request: req, Response: resp})
	m.log.Info("transaction sent", map[string]any{"network": network, "hash": resp.Hash})
	return resp, nil
}

// EstimateGas quotes gas via the current provider.
func (m *Manager) EstimateGas(ctx context.Context, req *types.TransactionRequest) (*types.GasEstimate, error) {
	p, err := m.resolve()
	if err != nil {
		return nil, err
	}

	est, err := p.EstimateGas(ctx, req)
	if err != nil {
		return nil, types.WrapError(err, types.ErrGasEstimationFailed, p.Network())
	}
	return est, nil
}

// EstimateGasOn quotes gas on an explicit network.
func (m *Manager) EstimateGasOn(ctx context.Context, network types.BlockchainNetwork, req *types.TransactionRequest) (*types.GasEstimate, error) {
	p, err := m.GetProvider(network)
	if err != nil {
		return nil, err
	}

	est, err := p.EstimateGas(ctx, req)
	if err != nil {
		return nil, types.WrapError(err, types.ErrGasEstimationFailed, network)
	}
	return est, nil
}

// GetBalance reads a balance, optionally targeting an explicit network
// instead of the current one.
func (m *Manager) GetBalance(ctx context.Context, address, asset string, network ...types.BlockchainNetwork) (*types.Balance, error) {
	p, err := m.resolve(network...)
	if err != nil {
		return nil, err
	}

	b, err := p.GetBalance(ctx, address, asset)
	if err != nil {
		return nil, types.WrapError(err, types.ErrBalanceCheckFailed, p.Network())
	}
	return b, nil
}

// GetNetworkFeeInfo returns the tiered fee quote for a network.
func (m *Manager) GetNetworkFeeInfo(ctx context.Context, network ...types.BlockchainNetwork) (*types.NetworkFeeInfo, error) {
	p, err := m.resolve(network...)
	if err != nil {
		return nil, err
	}

	info, err := p.GetNetworkFeeInfo(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrFeeInfoFailed, p.Network())
	}
	return info, nil
}

// GetTransactionStatus looks up a transaction, optionally on an explicit
// network.
func (m *Manager) GetTransactionStatus(ctx context.Context, hash string, network ...types.BlockchainNetwork) (*types.TransactionResponse, error) {
	p, err := m.resolve(network...)
	if err != nil {
		return nil, err
	}

	resp, err := p.GetTransactionStatus(ctx, hash)
	if err != nil {
		be := types.WrapError(err, types.ErrStatusCheckFailed, p.Network())
		be.TransactionHash = hash
		return nil, be
	}
	return resp, nil
}

// WaitForTransaction blocks until the requested confirmation count is seen.
func (m *Manager) WaitForTransaction(ctx context.Context, hash string, confirmations int, network ...types.BlockchainNetwork) (*types.TransactionResponse, error) {
	p, err := m.resolve(network...)
	if err != nil {
		return nil, err
	}

	resp, err := p.WaitForTransaction(ctx, hash, confirmations)
	if err != nil {
		be := types.WrapError(err, types.ErrWaitFailed, p.Network())
		be.TransactionHash = hash
		return nil, be
	}
	return resp, nil
}

// GetCurrentBlock returns the latest block number.
func (m *Manager) GetCurrentBlock(ctx context.Context, network ...types.BlockchainNetwork) (uint64, error) {
	p, err := m.resolve(network...)
	if err != nil {
		return 0, err
	}

	n, err := p.GetCurrentBlock(ctx)
	if err != nil {
		return 0, types.WrapError(err, types.ErrBlockCheckFailed, p.Network())
	}
	return n, nil
}

// HealthCheck probes every registered provider and returns a per-network
// map. A provider-specific probe is preferred when present; otherwise the
// provider must be able to report its current block. A failing probe
// degrades that entry to false without raising.
func (m *Manager) HealthCheck(ctx context.Context) map[types.BlockchainNetwork]bool {
	result := make(map[types.BlockchainNetwork]bool)

	for _, p := range m.GetAllProviders() {
		network := p.Network()
		var err error
		if hc, ok := p.(providers.HealthChecker); ok {
			err = hc.HealthCheck(ctx)
		} else {
			_, err = p.GetCurrentBlock(ctx)
		}
		if err != nil {
			m.log.Warn("health probe failed", map[string]any{"network": network, "error": err.Error()})
		}
		result[network] = err == nil
	}

	return result
}

// resolve picks the provider for an optional explicit network, falling back
// to the current one.
func (m *Manager) resolve(network ...types.BlockchainNetwork) (providers.ChainProvider, error) {
	if len(network) > 0 {
		return m.GetProvider(network[0])
	}

	m.mu.RLock()
	p := m.current
	m.mu.RUnlock()

	if p == nil {
		return nil, types.NewError(types.ErrNoProvider, "no current provider; connect first or pass a network", "")
	}
	return p, nil
}

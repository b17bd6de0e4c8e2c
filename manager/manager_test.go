package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nepapay/chaingate/types"
)

type fakeProvider struct {
	network   types.BlockchainNetwork
	connected bool

	connectCalls int
	connectErr   error
	sendErr      error
	blockErr     error
	sent         []*types.TransactionRequest
}

func newFakeProvider(network types.BlockchainNetwork) *fakeProvider {
	return &fakeProvider{network: network}
}

func (f *fakeProvider) Network() types.BlockchainNetwork { return f.network }

func (f *fakeProvider) Config() types.BlockchainConfig {
	return types.BlockchainConfig{
		Network:        f.network,
		Environment:    types.EnvTestnet,
		NativeCurrency: types.NativeCurrency{Symbol: "ETH", Decimals: 18},
	}
}

func (f *fakeProvider) Connect(context.Context) (*types.WalletConnection, error) {
	f.connectCalls++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connected = true
	return &types.WalletConnection{Address: "0xabc", Network: f.network, Connected: true}, nil
}

func (f *fakeProvider) Disconnect(context.Context) error {
	f.connected = false
	return nil
}

func (f *fakeProvider) IsConnected() bool { return f.connected }

func (f *fakeProvider) GetAccount(context.Context) (*types.WalletConnection, error) {
	if !f.connected {
		return nil, types.NewError(types.ErrNotConnected, "not connected", f.network)
	}
	return &types.WalletConnection{Address: "0xabc", Network: f.network, Connected: true}, nil
}

func (f *fakeProvider) SendTransaction(_ context.Context, req *types.TransactionRequest) (*types.TransactionResponse, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, req)
	return &types.TransactionResponse{Hash: "0xhash", Status: types.TxPending}, nil
}

func (f *fakeProvider) EstimateGas(context.Context, *types.TransactionRequest) (*types.GasEstimate, error) {
	return &types.GasEstimate{GasLimit: "21000", GasPrice: "20", Currency: "ETH"}, nil
}

func (f *fakeProvider) GetTransactionStatus(context.Context, string) (*types.TransactionResponse, error) {
	return &types.TransactionResponse{Hash: "0xhash", Status: types.TxConfirmed}, nil
}

func (f *fakeProvider) WaitForTransaction(_ context.Context, hash string, _ int) (*types.TransactionResponse, error) {
	return &types.TransactionResponse{Hash: hash, Status: types.TxConfirmed, Confirmations: 1}, nil
}

func (f *fakeProvider) GetBalance(_ context.Context, address, _ string) (*types.Balance, error) {
	return &types.Balance{Address: address, Asset: "ETH", Amount: "1000", Decimals: 18}, nil
}

func (f *fakeProvider) GetMultipleBalances(ctx context.Context, addresses []string, asset string) ([]*types.Balance, error) {
	out := make([]*types.Balance, len(addresses))
	for i, a := range addresses {
		out[i], _ = f.GetBalance(ctx, a, asset)
	}
	return out, nil
}

func (f *fakeProvider) GetNetworkFeeInfo(context.Context) (*types.NetworkFeeInfo, error) {
	return &types.NetworkFeeInfo{Slow: "16", Standard: "20", Fast: "25", Currency: "ETH"}, nil
}

func (f *fakeProvider) GetCurrentBlock(context.Context) (uint64, error) {
	if f.blockErr != nil {
		return 0, f.blockErr
	}
	return 100, nil
}

func (f *fakeProvider) GetBlockTimestamp(context.Context, uint64) (time.Time, error) {
	return time.Unix(1700000000, 0), nil
}

func (f *fakeProvider) ValidateAddress(address string) bool { return address != "" }

func (f *fakeProvider) FormatAmount(raw string) (string, error) { return raw, nil }

func (f *fakeProvider) ParseAmount(formatted string) (string, error) { return formatted, nil }

// probeProvider adds the optional health probe on top of fakeProvider.
type probeProvider struct {
	*fakeProvider
	healthErr error
}

func (p *probeProvider) HealthCheck(context.Context) error { return p.healthErr }

func TestRegisterProviderOrder(t *testing.T) {
	m := New(nil)
	m.RegisterProvider(newFakeProvider(types.NetworkEthereum))
	m.RegisterProvider(newFakeProvider(types.NetworkPolygon))
	m.RegisterProvider(newFakeProvider(types.NetworkStellar))

	assert.Equal(t, []types.BlockchainNetwork{
		types.NetworkEthereum, types.NetworkPolygon, types.NetworkStellar,
	}, m.GetSupportedNetworks())
	assert.Len(t, m.GetAllProviders(), 3)

	_, err := m.GetProvider(types.NetworkBSC)
	require.Error(t, err)
	be, ok := err.(*types.BlockchainError)
	require.True(t, ok)
	assert.Equal(t, types.ErrProviderNotFound, be.Code)
}

func TestConnectPublishesEvent(t *testing.T) {
	m := New(nil)
	m.RegisterProvider(newFakeProvider(types.NetworkEthereum))

	var got []Event
	m.Hub().Subscribe(EventConnected, func(e Event) { got = append(got, e) })

	conn, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", conn.Address)
	assert.True(t, m.IsConnected())

	require.Len(t, got, 1)
	assert.Equal(t, types.NetworkEthereum, got[0].Network)
	assert.Equal(t, conn, got[0].Connection)
}

func TestConnectFailureReportedTwice(t *testing.T) {
	p := newFakeProvider(types.NetworkEthereum)
	p.connectErr = errors.New("rpc unreachable")

	m := New(nil)
	m.RegisterProvider(p)

	var events []Event
	m.Hub().Subscribe(EventConnectionError, func(e Event) { events = append(events, e) })

	_, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.Error(t, err)

	be, ok := err.(*types.BlockchainError)
	require.True(t, ok)
	assert.Equal(t, types.ErrConnectionFailed, be.Code)
	assert.Contains(t, be.Message, "rpc unreachable")

	require.Len(t, events, 1)
	assert.Equal(t, be, events[0].Err)
}

func TestErrorNormalizationPreservesProviderCode(t *testing.T) {
	p := newFakeProvider(types.NetworkEthereum)
	orig := types.NewError(types.ErrInvalidAmount, "too small", types.NetworkEthereum)
	orig.TransactionHash = "0xdead"
	p.sendErr = orig

	m := New(nil)
	m.RegisterProvider(p)
	_, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)

	_, err = m.SendTransaction(context.Background(), &types.TransactionRequest{To: "0x1", Amount: "1"})
	require.Error(t, err)

	be, ok := err.(*types.BlockchainError)
	require.True(t, ok)
	assert.Equal(t, types.ErrInvalidAmount, be.Code)
	assert.Equal(t, "0xdead", be.TransactionHash)
}

func TestSendTransactionWrapsRawErrors(t *testing.T) {
	p := newFakeProvider(types.NetworkEthereum)
	p.sendErr = errors.New("nonce too low")

	m := New(nil)
	m.RegisterProvider(p)
	_, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)

	var events []Event
	m.Hub().Subscribe(EventTransactionError, func(e Event) { events = append(events, e) })

	_, err = m.SendTransaction(context.Background(), &types.TransactionRequest{To: "0x1", Amount: "1"})
	require.Error(t, err)

	be, ok := err.(*types.BlockchainError)
	require.True(t, ok)
	assert.Equal(t, types.ErrTransactionFailed, be.Code)
	assert.Equal(t, "nonce too low", be.Message)
	require.Len(t, events, 1)
}

func TestSendTransactionRequiresConnection(t *testing.T) {
	m := New(nil)
	m.RegisterProvider(newFakeProvider(types.NetworkEthereum))

	_, err := m.SendTransaction(context.Background(), &types.TransactionRequest{To: "0x1", Amount: "1"})
	require.Error(t, err)
	assert.Equal(t, types.ErrNotConnected, err.(*types.BlockchainError).Code)
}

func TestSwitchNetworkNoopWhenAlreadyConnected(t *testing.T) {
	p := newFakeProvider(types.NetworkEthereum)
	m := New(nil)
	m.RegisterProvider(p)

	first, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)

	again, err := m.SwitchNetwork(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, p.connectCalls, "no re-authentication expected")
}

func TestSwitchNetworkMovesCurrent(t *testing.T) {
	eth := newFakeProvider(types.NetworkEthereum)
	pol := newFakeProvider(types.NetworkPolygon)

	m := New(nil)
	m.RegisterProvider(eth)
	m.RegisterProvider(pol)

	var changes []Event
	m.Hub().Subscribe(EventNetworkChange, func(e Event) { changes = append(changes, e) })

	_, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)

	conn, err := m.SwitchNetwork(context.Background(), types.NetworkPolygon)
	require.NoError(t, err)
	assert.Equal(t, types.NetworkPolygon, conn.Network)

	current, ok := m.CurrentNetwork()
	require.True(t, ok)
	assert.Equal(t, types.NetworkPolygon, current)
	assert.False(t, eth.connected)
	require.Len(t, changes, 1)
}

func TestCurrentPointerLastWriterWins(t *testing.T) {
	eth := newFakeProvider(types.NetworkEthereum)
	pol := newFakeProvider(types.NetworkPolygon)

	m := New(nil)
	m.RegisterProvider(eth)
	m.RegisterProvider(pol)

	_, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), types.NetworkPolygon)
	require.NoError(t, err)

	current, ok := m.CurrentNetwork()
	require.True(t, ok)
	assert.Equal(t, types.NetworkPolygon, current)

	// Explicit-network operations never depend on or mutate the pointer.
	_, err = m.SendTransactionOn(context.Background(), types.NetworkEthereum, &types.TransactionRequest{To: "0x1", Amount: "1"})
	require.NoError(t, err)
	require.Len(t, eth.sent, 1)

	current, _ = m.CurrentNetwork()
	assert.Equal(t, types.NetworkPolygon, current)
}

func TestHealthCheckDegradesWithoutRaising(t *testing.T) {
	healthy := &probeProvider{fakeProvider: newFakeProvider(types.NetworkEthereum)}
	sick := &probeProvider{fakeProvider: newFakeProvider(types.NetworkPolygon), healthErr: errors.New("down")}
	fallback := newFakeProvider(types.NetworkStellar)
	fallback.blockErr = errors.New("rpc timeout")

	m := New(nil)
	m.RegisterProvider(healthy)
	m.RegisterProvider(sick)
	m.RegisterProvider(fallback)

	result := m.HealthCheck(context.Background())
	assert.Equal(t, map[types.BlockchainNetwork]bool{
		types.NetworkEthereum: true,
		types.NetworkPolygon:  false,
		types.NetworkStellar:  false,
	}, result)
}

func TestDisconnectIdempotent(t *testing.T) {
	m := New(nil)
	m.RegisterProvider(newFakeProvider(types.NetworkEthereum))

	_, err := m.Connect(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background()))
	require.NoError(t, m.Disconnect(context.Background()))
	assert.False(t, m.IsConnected())
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	var calls int
	id := h.Subscribe(EventConnected, func(Event) { calls++ })

	h.Publish(Event{Type: EventConnected})
	h.Unsubscribe(EventConnected, id)
	h.Publish(Event{Type: EventConnected})

	assert.Equal(t, 1, calls)
}

func TestExplicitNetworkQueries(t *testing.T) {
	m := New(nil)
	m.RegisterProvider(newFakeProvider(types.NetworkEthereum))

	// No current connection: explicit network works, implicit fails.
	b, err := m.GetBalance(context.Background(), "0xabc", "", types.NetworkEthereum)
	require.NoError(t, err)
	assert.Equal(t, "1000", b.Amount)

	_, err = m.GetBalance(context.Background(), "0xabc", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrNoProvider, err.(*types.BlockchainError).Code)
}

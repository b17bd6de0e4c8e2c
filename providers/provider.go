// Package providers defines the capability contracts every chain backend
// and cross-chain bridge must fulfill, plus the in-tree EVM binding.
//
// The manager and payment service only ever see these interfaces; no
// concrete SDK type crosses that boundary. Implementations must translate
// their client library's native errors into *types.BlockchainError before
// returning.
package providers

import (
	"context"
	"time"

	"github.com/nepapay/chaingate/types"
)

// ChainProvider is the capability set of one network backend.
type ChainProvider interface {
	// Network identifies the chain this provider serves.
	Network() types.BlockchainNetwork

	// Config returns the configuration the provider was built with.
	Config() types.BlockchainConfig

	// Connect establishes a session. It must not resolve until the
	// provider's own notion of connection succeeds or fails.
	Connect(ctx context.Context) (*types.WalletConnection, error)
	Disconnect(ctx context.Context) error
	IsConnected() bool
	GetAccount(ctx context.Context) (*types.WalletConnection, error)

	// SendTransaction must not return until submission succeeds or fails.
	SendTransaction(ctx context.Context, req *types.TransactionRequest) (*types.TransactionResponse, error)
	EstimateGas(ctx context.Context, req *types.TransactionRequest) (*types.GasEstimate, error)
	GetTransactionStatus(ctx context.Context, hash string) (*types.TransactionResponse, error)

	// WaitForTransaction blocks until the requested confirmation count is
	// observed, the context is cancelled, or the provider's own timeout
	// elapses.
	WaitForTransaction(ctx context.Context, hash string, confirmations int) (*types.TransactionResponse, error)

	GetBalance(ctx context.Context, address, asset string) (*types.Balance, error)
	GetMultipleBalances(ctx context.Context, addresses []string, asset string) ([]*types.Balance, error)
	GetNetworkFeeInfo(ctx context.Context) (*types.NetworkFeeInfo, error)
	GetCurrentBlock(ctx context.Context) (uint64, error)
	GetBlockTimestamp(ctx context.Context, block uint64) (time.Time, error)

	ValidateAddress(address string) bool
	FormatAmount(raw string) (string, error)
	ParseAmount(formatted string) (string, error)
}

// HealthChecker is an optional probe a provider may implement. The manager
// prefers it over the current-block fallback during health checks.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BridgeProvider is the capability set of a cross-chain relay.
type BridgeProvider interface {
	Name() string

	// SupportedNetworks returns the ordered (source, destination) pairs
	// this bridge can serve.
	SupportedNetworks() []types.NetworkPair

	EstimateBridgeFee(ctx context.Context, req *types.BridgeRequest) (*types.BridgeFee, error)
	InitiateBridge(ctx context.Context, req *types.BridgeRequest) (*types.CrossChainTransaction, error)
	GetBridgeStatus(ctx context.Context, id string) (*types.CrossChainTransaction, error)
	GetSupportedAssets(ctx context.Context, from, to types.BlockchainNetwork) ([]string, error)
}

// SupportsPair reports whether a bridge serves the ordered (from, to) pair.
func SupportsPair(b BridgeProvider, from, to types.BlockchainNetwork) bool {
	for _, p := range b.SupportedNetworks() {
		if p.From == from && p.To == to {
			return true
		}
	}
	return false
}

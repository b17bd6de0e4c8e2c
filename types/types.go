// Package types defines the data model shared by every component of the
// chaingate payment gateway: network identity, transaction requests and
// responses, balances, fee quotes, cross-chain transfers, and the single
// normalized error shape all provider failures are translated into.
package types

import (
	"time"
)

// TransactionStatus is the lifecycle status of a single-chain transaction.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxConfirmed TransactionStatus = "confirmed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions are permitted.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxConfirmed || s == TxFailed || s == TxCancelled
}

// WalletConnection describes an authenticated session with one network.
// It is created by a successful connect and superseded on switch/disconnect.
type WalletConnection struct {
	Address   string            `json:"address"`
	Network   BlockchainNetwork `json:"network"`
	ChainID   string            `json:"chainId,omitempty"`
	Connected bool              `json:"connected"`
}

// TransactionRequest is an immutable value describing a transfer to submit.
// Amount is a decimal string in chain-native units; it is never parsed into
// a float anywhere in the gateway.
type TransactionRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`

	Asset string `json:"asset,omitempty"`
	Memo  string `json:"memo,omitempty"`

	GasLimit string  `json:"gasLimit,omitempty"`
	GasPrice string  `json:"gasPrice,omitempty"`
	Nonce    *uint64 `json:"nonce,omitempty"`
}

// TransactionResponse is a point-in-time snapshot produced by a provider.
// It is never mutated after creation; re-querying yields a new response.
type TransactionResponse struct {
	Hash   string            `json:"hash"`
	Status TransactionStatus `json:"status"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Amount string            `json:"amount"`

	GasUsed       string     `json:"gasUsed,omitempty"`
	GasPrice      string     `json:"gasPrice,omitempty"`
	BlockNumber   uint64     `json:"blockNumber,omitempty"`
	BlockHash     string     `json:"blockHash,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	Confirmations int        `json:"confirmations,omitempty"`
	Fee           string     `json:"fee,omitempty"`
}

// Balance is a read-only snapshot of one address/asset pair.
type Balance struct {
	Address   string `json:"address"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"` // raw, smallest unit
	Decimals  int    `json:"decimals"`
	Formatted string `json:"formatted"`
}

// GasEstimate is a point estimate for one transaction.
type GasEstimate struct {
	GasLimit      string `json:"gasLimit"`
	GasPrice      string `json:"gasPrice"`
	EstimatedCost string `json:"estimatedCost"`
	Currency      string `json:"currency"`
}

// NetworkFeeInfo is a three-tier fee quote for a network.
type NetworkFeeInfo struct {
	Slow     string `json:"slow"`
	Standard string `json:"standard"`
	Fast     string `json:"fast"`
	Currency string `json:"currency"`
}

// CrossChainStatus is the state machine position of a bridge transfer.
//
//	initiated -> source_confirmed -> bridge_processing -> destination_pending
//	          -> {completed | failed | refunded}
type CrossChainStatus string

const (
	CrossChainInitiated          CrossChainStatus = "initiated"
	CrossChainSourceConfirmed    CrossChainStatus = "source_confirmed"
	CrossChainBridgeProcessing   CrossChainStatus = "bridge_processing"
	CrossChainDestinationPending CrossChainStatus = "destination_pending"
	CrossChainCompleted          CrossChainStatus = "completed"
	CrossChainFailed             CrossChainStatus = "failed"
	CrossChainRefunded           CrossChainStatus = "refunded"
)

// IsTerminal reports whether the status permits no further transitions.
func (s CrossChainStatus) IsTerminal() bool {
	return s == CrossChainCompleted || s == CrossChainFailed || s == CrossChainRefunded
}

// CrossChainTransaction tracks one bridge transfer from initiation to a
// terminal status. Created by InitiateBridge, mutated only by the monitor.
type CrossChainTransaction struct {
	ID          string            `json:"id"`
	FromNetwork BlockchainNetwork `json:"fromNetwork"`
	ToNetwork   BlockchainNetwork `json:"toNetwork"`
	FromAddress string            `json:"fromAddress"`
	ToAddress   string            `json:"toAddress"`
	Amount      string            `json:"amount"`
	Asset       string            `json:"asset"`
	Status      CrossChainStatus  `json:"status"`

	SourceTransactionHash      string     `json:"sourceTransactionHash,omitempty"`
	DestinationTransactionHash string     `json:"destinationTransactionHash,omitempty"`
	BridgeContract             string     `json:"bridgeContract,omitempty"`
	EstimatedCompletion        *time.Time `json:"estimatedCompletion,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy the caller may hold without racing monitor updates.
func (t *CrossChainTransaction) Clone() *CrossChainTransaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// BridgeRequest asks a bridge provider to move value between two networks.
type BridgeRequest struct {
	FromNetwork BlockchainNetwork `json:"fromNetwork"`
	ToNetwork   BlockchainNetwork `json:"toNetwork"`
	FromAddress string            `json:"fromAddress"`
	ToAddress   string            `json:"toAddress"`
	Amount      string            `json:"amount"`
	Asset       string            `json:"asset"`
}

// BridgeFee is a bridge provider's quote for one transfer.
type BridgeFee struct {
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	EstimatedTime time.Duration `json:"estimatedTime,omitempty"`
}

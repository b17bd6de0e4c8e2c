package types

import "fmt"

// Error codes shared across the gateway. Every failure that crosses the
// manager, payment service, or monitor boundary carries exactly one of these.
const (
	ErrProviderNotFound    = "PROVIDER_NOT_FOUND"
	ErrNoProvider          = "NO_PROVIDER"
	ErrNoWallet            = "NO_WALLET"
	ErrNotConnected        = "NOT_CONNECTED"
	ErrConnectionFailed    = "CONNECTION_FAILED"
	ErrTransactionFailed   = "TRANSACTION_FAILED"
	ErrGasEstimationFailed = "GAS_ESTIMATION_FAILED"
	ErrGasPriceTooHigh     = "GAS_PRICE_TOO_HIGH"
	ErrTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrStatusCheckFailed   = "STATUS_CHECK_FAILED"
	ErrWaitFailed          = "WAIT_FAILED"
	ErrBalanceCheckFailed  = "BALANCE_CHECK_FAILED"
	ErrFeeInfoFailed       = "FEE_INFO_FAILED"
	ErrBlockCheckFailed    = "BLOCK_CHECK_FAILED"
	ErrNoBridgeProvider    = "NO_BRIDGE_PROVIDER"
	ErrCrossChainDisabled  = "CROSS_CHAIN_DISABLED"
	ErrCrossChainFailed    = "CROSS_CHAIN_FAILED"
	ErrInvalidRequest      = "INVALID_REQUEST"
	ErrInvalidAmount       = "INVALID_AMOUNT"
	ErrInvalidAddress      = "INVALID_ADDRESS"
	ErrNoAccount           = "NO_ACCOUNT"
)

// BlockchainError is the single normalized error shape for every provider-
// and bridge-level failure. Nothing leaves this module as a raw third-party
// library error.
type BlockchainError struct {
	Code            string            `json:"code"`
	Message         string            `json:"message"`
	Network         BlockchainNetwork `json:"network,omitempty"`
	TransactionHash string            `json:"transactionHash,omitempty"`
	Details         error             `json:"-"`
}

func (e *BlockchainError) Error() string {
	if e.Network != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Network)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BlockchainError) Unwrap() error {
	return e.Details
}

// NewError builds a BlockchainError with the given code.
func NewError(code, message string, network BlockchainNetwork) *BlockchainError {
	return &BlockchainError{Code: code, Message: message, Network: network}
}

// Errorf builds a BlockchainError with a formatted message.
func Errorf(code string, network BlockchainNetwork, format string, args ...any) *BlockchainError {
	return &BlockchainError{Code: code, Message: fmt.Sprintf(format, args...), Network: network}
}

// WrapError normalizes an arbitrary error. An error that is already a
// BlockchainError passes through untouched, preserving its original code,
// network, and transaction hash; anything else is wrapped under the given
// code with the cause retained as Details.
func WrapError(err error, code string, network BlockchainNetwork) *BlockchainError {
	if err == nil {
		return nil
	}
	if be, ok := err.(*BlockchainError); ok {
		return be
	}
	return &BlockchainError{
		Code:    code,
		Message: err.Error(),
		Network: network,
		Details: err,
	}
}

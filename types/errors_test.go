package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorPassesThroughBlockchainErrors(t *testing.T) {
	orig := NewError(ErrGasPriceTooHigh, "quote 150 exceeds 100", NetworkPolygon)
	orig.TransactionHash = "0xfeed"

	wrapped := WrapError(orig, ErrTransactionFailed, NetworkEthereum)
	assert.Same(t, orig, wrapped)
	assert.Equal(t, ErrGasPriceTooHigh, wrapped.Code)
	assert.Equal(t, NetworkPolygon, wrapped.Network)
	assert.Equal(t, "0xfeed", wrapped.TransactionHash)
}

func TestWrapErrorNormalizesRawErrors(t *testing.T) {
	cause := errors.New("connection reset by peer")
	wrapped := WrapError(cause, ErrConnectionFailed, NetworkEthereum)

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrConnectionFailed, wrapped.Code)
	assert.Equal(t, "connection reset by peer", wrapped.Message)
	assert.Equal(t, NetworkEthereum, wrapped.Network)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError(nil, ErrTransactionFailed, NetworkEthereum))
}

func TestErrorString(t *testing.T) {
	e := NewError(ErrNoBridgeProvider, "no bridge for ethereum -> polygon", NetworkEthereum)
	assert.Equal(t, "NO_BRIDGE_PROVIDER: no bridge for ethereum -> polygon (ethereum)", e.Error())

	bare := NewError(ErrCrossChainDisabled, "cross-chain payments are disabled", "")
	assert.Equal(t, "CROSS_CHAIN_DISABLED: cross-chain payments are disabled", bare.Error())
}

func TestStatusTerminality(t *testing.T) {
	for _, s := range []CrossChainStatus{CrossChainCompleted, CrossChainFailed, CrossChainRefunded} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []CrossChainStatus{CrossChainInitiated, CrossChainSourceConfirmed, CrossChainBridgeProcessing, CrossChainDestinationPending} {
		assert.False(t, s.IsTerminal(), s)
	}

	assert.True(t, TxConfirmed.IsTerminal())
	assert.True(t, TxFailed.IsTerminal())
	assert.True(t, TxCancelled.IsTerminal())
	assert.False(t, TxPending.IsTerminal())
}

package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nepapay/chaingate/types"
)

var stellarAddressRe = regexp.MustCompile(`^G[A-Z2-7]{55}$`)

// ValidateAmount checks that an amount string is a positive decimal.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}

	if !dec.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than zero")
	}

	return dec, nil
}

// ValidateAddressForNetwork checks whether an address is plausibly valid for
// a given network. EVM chains share one address format; Stellar uses ed25519
// public keys in strkey encoding.
func ValidateAddressForNetwork(address string, network types.BlockchainNetwork) bool {
	if address == "" {
		return false
	}

	switch {
	case network.IsEVM():
		return common.IsHexAddress(address)
	case network.IsStellar():
		return stellarAddressRe.MatchString(address)
	default:
		return false
	}
}

// ValidateTransactionHash checks the shape of a transaction hash for a network.
func ValidateTransactionHash(hash string, network types.BlockchainNetwork) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}

	switch {
	case network.IsEVM():
		if !strings.HasPrefix(hash, "0x") || len(hash) != 66 || !isHexString(hash[2:]) {
			return fmt.Errorf("invalid EVM transaction hash")
		}
	case network.IsStellar():
		if len(hash) != 64 || !isHexString(hash) {
			return fmt.Errorf("invalid Stellar transaction hash")
		}
	default:
		return fmt.Errorf("unknown network %s", network)
	}

	return nil
}

// FormatUnits converts a raw smallest-unit amount into a human-readable
// decimal string, e.g. FormatUnits("1500000000000000000", 18) == "1.5".
func FormatUnits(raw string, decimals int) (string, error) {
	dec, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid raw amount: %w", err)
	}
	return dec.Shift(int32(-decimals)).String(), nil
}

// ParseUnits converts a human-readable decimal string into a raw
// smallest-unit amount. Fractions below one unit are rejected.
func ParseUnits(formatted string, decimals int) (string, error) {
	dec, err := decimal.NewFromString(formatted)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}

	shifted := dec.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return "", fmt.Errorf("amount %s has more than %d decimal places", formatted, decimals)
	}

	return shifted.Truncate(0).String(), nil
}

func isHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return len(s) > 0
}

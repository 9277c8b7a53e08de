// Package validation provides input validation for MetaGuard.
package validation

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress validates an Ethereum address (0x + 40 hex chars).
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("address is empty")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be 0x followed by 40 hex characters")
	}
	return nil
}

// IsValidAddress reports whether addr is a well-formed Ethereum address.
func IsValidAddress(addr string) bool {
	return ValidateAddress(addr) == nil
}

// NormalizeAddress lowers an address to its canonical cache/comparison form.
// Two differently-cased spellings of the same address normalize identically.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

package validation

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// maxAddressHexLen is the length of a full Aptos account address (32 bytes) without 0x.
const maxAddressHexLen = 64

// ValidateAddress validates an Aptos account address. Short forms such as
// 0x1 are accepted, as long as the value is hex and at most 32 bytes long.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("address must start with 0x")
	}
	normalized := addr[2:]

	if len(normalized) == 0 || len(normalized) > maxAddressHexLen {
		return fmt.Errorf("invalid address length: expected 1 to %d hex characters (without 0x), got %d", maxAddressHexLen, len(normalized))
	}

	// Pad odd-length short forms so they decode
	if len(normalized)%2 == 1 {
		normalized = "0" + normalized
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeAddress converts an address to its long form: lowercase, 0x
// prefixed and left padded to 64 hex characters. Values that are not hex are
// returned lowercased and trimmed.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	trimmed := strings.TrimPrefix(addr, "0x")
	if trimmed == "" || len(trimmed) > maxAddressHexLen {
		return addr
	}
	for _, c := range trimmed {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return addr
		}
	}
	return "0x" + strings.Repeat("0", maxAddressHexLen-len(trimmed)) + trimmed
}

// ValidateAndNormalizeAddress validates an address and returns its normalized form
func ValidateAndNormalizeAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}

// SameAddress reports whether two addresses refer to the same account.
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeAddress(a) == NormalizeAddress(b)
}

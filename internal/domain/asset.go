package domain

import (
	"strings"

	"github.com/mr-tron/base58"
)

// NativeMint is the wrapped-SOL mint address. The chain's native currency is
// modeled as a regular asset under this well-known address so that swap and
// balance code never special-cases it.
const NativeMint = "So11111111111111111111111111111111111111112"

// DefaultDecimals is assumed for a mint whose decimals cannot be fetched.
// It matches the native asset's 9 decimal places.
const DefaultDecimals = 9

// AssetTable maps upper-case token symbols to mint addresses. It is loaded
// from configuration and treated as read-only.
type AssetTable map[string]string

// Resolve returns the mint address for a symbol or, when the input already
// looks like an address, the input itself. The second return value is false
// when the input is neither a known symbol nor a well-formed address.
func (t AssetTable) Resolve(symbolOrMint string) (string, bool) {
	s := strings.TrimSpace(symbolOrMint)
	if mint, ok := t[strings.ToUpper(s)]; ok {
		return mint, true
	}
	if ValidAddress(s) {
		return s, true
	}
	return "", false
}

// ValidAddress reports whether s is a well-formed chain address: base58 text
// decoding to exactly 32 bytes.
func ValidAddress(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(raw) == 32
}

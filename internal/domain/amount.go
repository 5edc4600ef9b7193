package domain

import "github.com/shopspring/decimal"

// Amounts cross the signing and submission boundary only as integer counts of
// an asset's smallest unit. Floating point is confined to intent capture and
// display; the conversion in both directions goes through decimal arithmetic
// so that amounts like 0.1 never pick up binary rounding noise.

// ToRawAmount converts a human-entered amount to smallest units, flooring any
// fraction below one smallest unit. Non-positive input yields 0 rather than
// an error: dust and zero are tolerated at the conversion layer and rejected,
// where it matters, by the executors.
func ToRawAmount(amount float64, decimals int) uint64 {
	if amount <= 0 {
		return 0
	}
	raw := decimal.NewFromFloat(amount).Shift(int32(decimals)).Floor()
	if raw.Sign() <= 0 {
		return 0
	}
	return raw.BigInt().Uint64()
}

// FromRawAmount converts smallest units back to a display amount.
func FromRawAmount(raw uint64, decimals int) float64 {
	f, _ := decimal.NewFromUint64(raw).Shift(-int32(decimals)).Float64()
	return f
}

package swap

import (
	"fmt"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// SlippagePolicy picks the slippage tolerance for a swap. Thinly traded
// tokens need a much wider tolerance than majors, so the default can be
// overridden per mint.
type SlippagePolicy struct {
	// DefaultPct applies when no override matches.
	DefaultPct float64
	// Overrides maps a mint address to its tolerance in percent.
	Overrides map[string]float64
}

// For returns the slippage percentage for the given mint.
func (p SlippagePolicy) For(mint string) float64 {
	if pct, ok := p.Overrides[mint]; ok {
		return pct
	}
	if p.DefaultPct > 0 {
		return p.DefaultPct
	}
	return 1.0
}

// sellableAmount applies the dust buffer to a sell request. A small slice of
// the balance is held back so that rounding between the displayed balance and
// the on-chain raw amount never produces an over-spend; requests above the
// sellable remainder are clamped to it.
func sellableAmount(requested, balance, buffer float64) (float64, error) {
	available := balance - buffer
	if available <= 0 {
		return 0, domain.NewError(domain.KindValidation, domain.ReasonInsufficientBalance,
			fmt.Sprintf("balance %.9f is below the %.9f dust buffer", balance, buffer))
	}
	if requested > available {
		return available, nil
	}
	return requested, nil
}

package swap

import (
	"testing"

	"github.com/nvoloshin/swapbot/internal/domain"
)

func TestSlippagePolicyFor(t *testing.T) {
	p := SlippagePolicy{
		DefaultPct: 1.0,
		Overrides: map[string]float64{
			"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": 10.0,
		},
	}
	if got := p.For(testUSDC); got != 1.0 {
		t.Fatalf("default slippage = %v, want 1.0", got)
	}
	if got := p.For("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"); got != 10.0 {
		t.Fatalf("override slippage = %v, want 10.0", got)
	}

	var zero SlippagePolicy
	if got := zero.For(testUSDC); got != 1.0 {
		t.Fatalf("zero-value policy slippage = %v, want 1.0 fallback", got)
	}
}

func TestSellableAmount(t *testing.T) {
	got, err := sellableAmount(50, 100, 0.01)
	if err != nil || got != 50 {
		t.Fatalf("sellableAmount(50, 100) = %v, %v", got, err)
	}

	// Requests above the buffered balance clamp instead of failing.
	got, err = sellableAmount(100, 100, 0.01)
	if err != nil || got != 99.99 {
		t.Fatalf("sellableAmount(100, 100) = %v, %v; want 99.99", got, err)
	}

	if _, err = sellableAmount(1, 0.005, 0.01); domain.ReasonOf(err) != domain.ReasonInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

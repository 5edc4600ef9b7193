package domain

import (
	"math"
	"testing"
)

func TestToRawAmount(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		decimals int
		want     uint64
	}{
		{"one sol", 1.0, 9, 1_000_000_000},
		{"fraction", 0.5, 9, 500_000_000},
		{"six decimals", 12.345678, 6, 12_345_678},
		{"truncates excess precision", 0.1234567891, 9, 123_456_789},
		{"zero", 0, 9, 0},
		{"negative", -1.5, 9, 0},
		{"zero decimals", 42.9, 0, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToRawAmount(tc.amount, tc.decimals)
			if got != tc.want {
				t.Fatalf("ToRawAmount(%v, %d) = %d, want %d", tc.amount, tc.decimals, got, tc.want)
			}
		})
	}
}

func TestFromRawAmount(t *testing.T) {
	if got := FromRawAmount(1_500_000_000, 9); got != 1.5 {
		t.Fatalf("FromRawAmount = %v, want 1.5", got)
	}
	if got := FromRawAmount(0, 9); got != 0 {
		t.Fatalf("FromRawAmount(0) = %v, want 0", got)
	}
}

func TestRawAmountRoundTrip(t *testing.T) {
	// Converting to raw units and back must stay within one smallest unit.
	amounts := []float64{0.001, 0.25, 1, 3.14159, 1000.5, 123456.789}
	for _, amt := range amounts {
		for _, dec := range []int{6, 9} {
			raw := ToRawAmount(amt, dec)
			back := FromRawAmount(raw, dec)
			unit := math.Pow10(-dec)
			if diff := math.Abs(back - amt); diff > unit {
				t.Errorf("round trip %v at %d decimals drifted by %v", amt, dec, diff)
			}
		}
	}
}

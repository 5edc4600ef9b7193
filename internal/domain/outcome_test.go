package domain

import (
	"errors"
	"testing"
)

func TestExplorerURL(t *testing.T) {
	out := Succeeded("abc123")
	got := out.ExplorerURL("solscan.io")
	want := "https://solscan.io/tx/abc123"
	if got != want {
		t.Fatalf("ExplorerURL = %q, want %q", got, want)
	}
}

func TestFailedCarriesReason(t *testing.T) {
	err := NewError(KindOnChain, ReasonOnChainFailure, "Custom: 6000")
	out := Failed(err)
	if out.Status != StatusFailed {
		t.Fatalf("status = %v, want failed", out.Status)
	}
	if out.Reason != ReasonOnChainFailure {
		t.Fatalf("reason = %q, want %q", out.Reason, ReasonOnChainFailure)
	}
	if out.Detail != "Custom: 6000" {
		t.Fatalf("detail = %q", out.Detail)
	}
}

func TestFailedPlainError(t *testing.T) {
	out := Failed(errors.New("boom"))
	if out.Reason != ReasonInternal {
		t.Fatalf("reason = %q, want %q", out.Reason, ReasonInternal)
	}
}

func TestUnconfirmedKeepsSignature(t *testing.T) {
	out := Unconfirmed("sig123")
	if out.Status != StatusUnconfirmed || out.Signature != "sig123" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

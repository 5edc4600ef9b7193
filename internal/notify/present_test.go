package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/nvoloshin/swapbot/internal/domain"
)

func TestPresentDetail(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		want   string
	}{
		{
			name:   "jupiter slippage program error",
			detail: "Transaction simulation failed: Error processing Instruction 3: custom program error: 0x1771",
			want:   "the price moved beyond the slippage tolerance",
		},
		{
			name:   "anchor slippage error code",
			detail: `InstructionError [3, Custom: 6001]`,
			want:   "the price moved beyond the slippage tolerance",
		},
		{
			name:   "token balance program error",
			detail: "custom program error: 0x1",
			want:   "the wallet does not hold enough of the input token",
		},
		{
			name:   "insufficient lamports",
			detail: "Transfer: insufficient lamports 12345, need 50000",
			want:   "the wallet does not hold enough SOL",
		},
		{
			name:   "expired blockhash",
			detail: "Blockhash not found",
			want:   "the transaction expired before it reached the network",
		},
		{
			name:   "unknown detail",
			detail: "some novel failure",
			want:   "",
		},
		{
			name:   "empty detail",
			detail: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PresentDetail(tt.detail); got != tt.want {
				t.Errorf("PresentDetail(%q) = %q, want %q", tt.detail, got, tt.want)
			}
		})
	}
}

func TestPresentError(t *testing.T) {
	err := domain.NewError(domain.KindValidation, domain.ReasonInsufficientBalance, "available 0.5")
	if got := PresentError(err); got != "the wallet balance is too low for this trade" {
		t.Errorf("PresentError = %q", got)
	}

	// Detail translation wins over the reason code.
	chainErr := domain.NewError(domain.KindOnChain, domain.ReasonOnChainFailure, "custom program error: 0x1771")
	if got := PresentError(chainErr); got != "the price moved beyond the slippage tolerance" {
		t.Errorf("PresentError with slippage detail = %q", got)
	}

	if got := PresentError(errors.New("boom")); got != "an unexpected error occurred" {
		t.Errorf("PresentError plain = %q", got)
	}

	if got := PresentError(nil); got != "" {
		t.Errorf("PresentError(nil) = %q", got)
	}
}

func TestPresentOutcomeSucceeded(t *testing.T) {
	out := domain.Succeeded("5sig")
	event, title, body := PresentOutcome(domain.TxKindBuy, out, "solscan.io")

	if event != EventSwapSucceeded {
		t.Errorf("event = %q", event)
	}
	if title != "Swap confirmed" {
		t.Errorf("title = %q", title)
	}
	if body != "https://solscan.io/tx/5sig" {
		t.Errorf("body = %q", body)
	}
}

func TestPresentOutcomeTransferFailed(t *testing.T) {
	out := domain.Outcome{
		Status:    domain.StatusFailed,
		Signature: "5sig",
		Reason:    domain.ReasonOnChainFailure,
		Detail:    "custom: 1",
	}
	event, title, body := PresentOutcome(domain.TxKindTransfer, out, "solscan.io")

	if event != EventTransferFailed {
		t.Errorf("event = %q", event)
	}
	if title != "Transfer failed" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(body, "does not hold enough of the input token") {
		t.Errorf("body missing translated detail: %q", body)
	}
	if !strings.Contains(body, "https://solscan.io/tx/5sig") {
		t.Errorf("body missing explorer link: %q", body)
	}
}

func TestPresentOutcomeUnconfirmedNeverReadsAsSettled(t *testing.T) {
	out := domain.Unconfirmed("5sig")
	event, title, body := PresentOutcome(domain.TxKindSell, out, "solscan.io")

	if event != EventUnconfirmed {
		t.Errorf("event = %q", event)
	}
	if strings.Contains(title, "confirmed") && !strings.Contains(title, "unconfirmed") {
		t.Errorf("title reads as settled: %q", title)
	}
	if !strings.Contains(body, "Do not retry") {
		t.Errorf("body = %q", body)
	}
}

package notify

import (
	"fmt"
	"strings"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// Event types emitted by the services. Config's notify.events filters on
// these names.
const (
	EventSwapSucceeded     = "swap_succeeded"
	EventSwapFailed        = "swap_failed"
	EventTransferSucceeded = "transfer_succeeded"
	EventTransferFailed    = "transfer_failed"
	EventUnconfirmed       = "unconfirmed"
	EventError             = "error"
)

// reasonText maps stable reason codes to short operator-readable phrases.
// Raw chain detail stays in the ledger; only the translation is shown in chat.
var reasonText = map[string]string{
	domain.ReasonInvalidAmount:         "the amount is not valid",
	domain.ReasonSlippageOutOfRange:    "the slippage setting is out of range",
	domain.ReasonInvalidAddress:        "the token address is not a valid Solana address",
	domain.ReasonInvalidRecipient:      "the recipient address is not valid",
	domain.ReasonInsufficientBalance:   "the wallet balance is too low for this trade",
	domain.ReasonNoRoute:               "no swap route was found for this pair",
	domain.ReasonAggregator:            "the swap aggregator rejected the request",
	domain.ReasonBlockhashUnavailable:  "the Solana network did not provide a recent blockhash",
	domain.ReasonSubmissionFailed:      "the transaction could not be submitted",
	domain.ReasonCredentialUnavailable: "the wallet key could not be unlocked",
	domain.ReasonInvalidCredential:     "the stored wallet key is not usable",
	domain.ReasonOnChainFailure:        "the transaction failed on-chain",
	domain.ReasonTimeout:               "the operation timed out",
	domain.ReasonUnconfirmed:           "the transaction was submitted but not yet confirmed",
}

// detailText recognises well-known fragments of raw Solana and Jupiter
// program errors and translates them. Matching is case-insensitive substring
// matching because the exact wording varies between RPC providers.
var detailText = []struct {
	match string
	text  string
}{
	{"custom program error: 0x1771", "the price moved beyond the slippage tolerance"},
	{"custom: 6001", "the price moved beyond the slippage tolerance"},
	{"slippagetoleranceexceeded", "the price moved beyond the slippage tolerance"},
	{"slippage tolerance exceeded", "the price moved beyond the slippage tolerance"},
	{"custom program error: 0x1", "the wallet does not hold enough of the input token"},
	{"custom: 1", "the wallet does not hold enough of the input token"},
	{"insufficient lamports", "the wallet does not hold enough SOL"},
	{"insufficient funds", "the wallet does not hold enough funds"},
	{"blockhash not found", "the transaction expired before it reached the network"},
}

// PresentError renders a classified error as a single chat-friendly
// sentence. Recognised chain detail takes priority over the reason code.
func PresentError(err error) string {
	if err == nil {
		return ""
	}
	if text := PresentDetail(domain.DetailOf(err)); text != "" {
		return text
	}
	if text, ok := reasonText[domain.ReasonOf(err)]; ok {
		return text
	}
	return "an unexpected error occurred"
}

// PresentDetail translates a raw chain error string, or returns "" when no
// known fragment matches.
func PresentDetail(detail string) string {
	if detail == "" {
		return ""
	}
	lower := strings.ToLower(detail)
	for _, m := range detailText {
		if strings.Contains(lower, m.match) {
			return m.text
		}
	}
	return ""
}

// PresentOutcome renders an execution outcome as a notification event, title
// and body. explorerHost is the block-explorer hostname used for links.
func PresentOutcome(kind domain.TxKind, out domain.Outcome, explorerHost string) (event, title, body string) {
	action := "Swap"
	okEvent, failEvent := EventSwapSucceeded, EventSwapFailed
	if kind == domain.TxKindTransfer {
		action = "Transfer"
		okEvent, failEvent = EventTransferSucceeded, EventTransferFailed
	}

	switch out.Status {
	case domain.StatusSucceeded:
		return okEvent, action + " confirmed", out.ExplorerURL(explorerHost)

	case domain.StatusUnconfirmed:
		body = "The transaction was submitted but confirmation is still pending. Do not retry until its status is known."
		if url := out.ExplorerURL(explorerHost); url != "" {
			body += "\n" + url
		}
		return EventUnconfirmed, action + " unconfirmed", body

	default:
		body = outcomeFailureText(out)
		if url := out.ExplorerURL(explorerHost); url != "" {
			body += "\n" + url
		}
		return failEvent, action + " failed", body
	}
}

func outcomeFailureText(out domain.Outcome) string {
	if text := PresentDetail(out.Detail); text != "" {
		return fmt.Sprintf("%s (%s)", text, out.Reason)
	}
	if text, ok := reasonText[out.Reason]; ok {
		return text
	}
	if out.Detail != "" {
		return out.Detail
	}
	return "an unexpected error occurred"
}

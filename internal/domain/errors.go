package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and caches.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrLockHeld     = errors.New("lock held")
)

// Kind classifies an error for retry and surfacing decisions. The executors
// branch on Kind, never on error message text; message-based friendliness is
// confined to the presentation layer.
type Kind int

const (
	// KindValidation marks bad caller input. Never retried, surfaced verbatim.
	KindValidation Kind = iota + 1
	// KindTransient marks an RPC/aggregator hiccup. Retried with bounded
	// backoff inside the owning component, surfaced only after exhaustion.
	KindTransient
	// KindOnChain marks a deterministic settlement failure (slippage
	// exceeded, insufficient liquidity). Never retried automatically.
	KindOnChain
	// KindCredential marks a signing-credential problem. Never retried.
	KindCredential
	// KindAmbiguous marks an outcome where funds may or may not have moved
	// (unconfirmed after exhausting polls). Must never be coerced to a plain
	// failure or success.
	KindAmbiguous
)

// Stable reason codes carried on outcomes and ledger records.
const (
	ReasonInvalidAmount         = "invalid_amount"
	ReasonSlippageOutOfRange    = "slippage_out_of_range"
	ReasonInvalidAddress        = "invalid_address"
	ReasonInvalidRecipient      = "invalid_recipient"
	ReasonInsufficientBalance   = "insufficient_balance"
	ReasonNoRoute               = "no_route"
	ReasonAggregator            = "aggregator_error"
	ReasonBlockhashUnavailable  = "blockhash_unavailable"
	ReasonSubmissionFailed      = "submission_failed"
	ReasonCredentialUnavailable = "credential_unavailable"
	ReasonInvalidCredential     = "invalid_credential"
	ReasonOnChainFailure        = "onchain_failure"
	ReasonTimeout               = "timeout"
	ReasonUnconfirmed           = "unconfirmed"
	ReasonInternal              = "internal"
)

// Error is a classified error with a stable reason code and an optional
// chain- or aggregator-provided detail string.
type Error struct {
	Kind   Kind
	Reason string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	msg := e.Reason
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a classified error without a cause.
func NewError(kind Kind, reason, detail string) *Error {
	return &Error{Kind: kind, Reason: reason, Detail: detail}
}

// WrapError builds a classified error wrapping cause.
func WrapError(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, cause: cause}
}

// AsError extracts a classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the classification of err, or KindTransient for
// unclassified errors (the conservative default: unknown infrastructure
// failures are surfaced, not masked as caller mistakes).
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindTransient
}

// ReasonOf returns the stable reason code of err, or ReasonInternal when the
// error is unclassified.
func ReasonOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Reason
	}
	return ReasonInternal
}

// DetailOf returns the detail string of err when classified, else "".
func DetailOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Detail
	}
	return ""
}

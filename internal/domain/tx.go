package domain

// TxState is the result of a single confirmation poll cycle.
type TxState int

const (
	// TxPending means the signature was not yet confirmed. This is a
	// legitimate poll result, not an error; the caller decides whether to
	// keep waiting or report the operation as unconfirmed.
	TxPending TxState = iota
	// TxConfirmed means the transaction reached confirmed or finalized
	// commitment.
	TxConfirmed
	// TxFailed means the transaction settled with an on-chain error.
	TxFailed
)

// TxStatus is the normalized signature-status report from the chain.
type TxStatus struct {
	State TxState
	// Detail carries the chain-provided error object for TxFailed, rendered
	// as text (e.g. `{"InstructionError":[2,{"Custom":6000}]}`).
	Detail string
}

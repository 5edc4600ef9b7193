package domain

// OutcomeStatus is the terminal state of a swap or transfer operation.
type OutcomeStatus string

const (
	// StatusSucceeded means the transaction confirmed on-chain.
	StatusSucceeded OutcomeStatus = "succeeded"
	// StatusFailed means the operation definitively did not settle.
	StatusFailed OutcomeStatus = "failed"
	// StatusUnconfirmed means the transaction was submitted but its status
	// was still unknown after exhausting confirmation polls. Funds may have
	// moved; callers must not treat this as either success or failure.
	StatusUnconfirmed OutcomeStatus = "unconfirmed"
)

// Outcome is the structured result of a swap or transfer execution.
type Outcome struct {
	Status    OutcomeStatus
	Signature string
	Reason    string
	Detail    string
}

// Succeeded builds a confirmed outcome for the given transaction signature.
func Succeeded(signature string) Outcome {
	return Outcome{Status: StatusSucceeded, Signature: signature}
}

// Failed builds a failed outcome from a classified error.
func Failed(err error) Outcome {
	return Outcome{
		Status: StatusFailed,
		Reason: ReasonOf(err),
		Detail: DetailOf(err),
	}
}

// Unconfirmed builds an ambiguous outcome carrying the submitted signature.
func Unconfirmed(signature string) Outcome {
	return Outcome{
		Status:    StatusUnconfirmed,
		Signature: signature,
		Reason:    ReasonUnconfirmed,
	}
}

// ExplorerURL returns the block-explorer link for the outcome's transaction,
// or "" when no signature was produced.
func (o Outcome) ExplorerURL(host string) string {
	if o.Signature == "" {
		return ""
	}
	return "https://" + host + "/tx/" + o.Signature
}

package jupiter

import "encoding/json"

// quoteResponse is the subset of the aggregator's quote payload the bot
// reads. The full payload is kept verbatim and echoed back on swap build,
// because the aggregator treats it as an opaque signed quote.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`
	PlatformFee    *struct {
		Amount string `json:"amount"`
		FeeBps int    `json:"feeBps"`
	} `json:"platformFee"`
	RoutePlan []json.RawMessage `json:"routePlan"`
}

// swapRequest is the POST body of the swap-build endpoint.
type swapRequest struct {
	UserPublicKey       string          `json:"userPublicKey"`
	WrapAndUnwrapSol    bool            `json:"wrapAndUnwrapSol"`
	AsLegacyTransaction bool            `json:"asLegacyTransaction"`
	FeeAccount          string          `json:"feeAccount,omitempty"`
	QuoteResponse       json.RawMessage `json:"quoteResponse"`
}

// swapResponse is the swap-build reply.
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// apiError is the aggregator's error reply shape.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func (e apiError) text() string {
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	return ""
}

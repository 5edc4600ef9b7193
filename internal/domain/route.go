package domain

import "encoding/json"

// QuoteRequest is a validated swap intent handed to the route quoter.
// AmountRaw is in smallest units of the input mint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	AmountRaw   uint64
	SlippagePct float64
}

// Route is an immutable quote from the swap aggregator. Payload is the full
// aggregator response and must reach the transaction-build endpoint
// unmodified; nothing in this repository inspects it beyond the fields lifted
// out below.
//
// A Route is single-use: quoted prices go stale quickly, so a retry never
// rebuilds from an old Route; the executor re-quotes instead.
type Route struct {
	InputMint      string
	OutputMint     string
	InAmountRaw    uint64
	OutAmountRaw   uint64
	PriceImpactPct float64
	PlatformFeeRaw uint64
	SlippageBps    int

	Payload json.RawMessage
}

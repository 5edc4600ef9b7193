// Package jupiter is the REST client for the Jupiter swap aggregator. It
// quotes routes and builds unsigned swap transactions; it never touches
// keys or submits anything to the chain.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
)

const (
	// MinSlippagePct and MaxSlippagePct bound the slippage a caller may
	// request. Anything outside the range is refused before the
	// aggregator is contacted.
	MinSlippagePct = 0.1
	MaxSlippagePct = 10.0
)

// ClientConfig holds the aggregator client configuration.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://lite-api.jup.ag/swap/v1".
	BaseURL string
	// APIKey is sent as a Bearer token when non-empty.
	APIKey string
	// PlatformFeeBps is the integrator fee collected on each swap.
	PlatformFeeBps int
	// PlatformFeeAccount receives the integrator fee. Fees are only
	// requested when both the bps and the account are set.
	PlatformFeeAccount string
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
}

func (cfg *ClientConfig) setDefaults() {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
}

// Client is the Jupiter aggregator REST client.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Jupiter client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "jupiter")),
	}
}

// Quote fetches a swap route for the request. Caller input is validated
// before any network traffic so that a typo never burns an aggregator call.
// The returned route is single-use: it embeds the aggregator's quote and
// must be exchanged for a transaction exactly once.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (domain.Route, error) {
	if err := validateQuoteRequest(req); err != nil {
		return domain.Route{}, err
	}

	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.AmountRaw, 10))
	params.Set("slippageBps", strconv.Itoa(int(req.SlippagePct*100)))
	params.Set("onlyDirectRoutes", "false")
	if c.cfg.PlatformFeeBps > 0 && c.cfg.PlatformFeeAccount != "" {
		params.Set("platformFeeBps", strconv.Itoa(c.cfg.PlatformFeeBps))
	}

	body, err := c.doGet(ctx, "/quote?"+params.Encode())
	if err != nil {
		return domain.Route{}, fmt.Errorf("jupiter: quote: %w", err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return domain.Route{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	if len(quote.RoutePlan) == 0 {
		return domain.Route{}, domain.NewError(domain.KindOnChain, domain.ReasonNoRoute, "aggregator returned no route plan")
	}

	inAmount, err := strconv.ParseUint(quote.InAmount, 10, 64)
	if err != nil {
		return domain.Route{}, fmt.Errorf("jupiter: parse inAmount %q: %w", quote.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(quote.OutAmount, 10, 64)
	if err != nil {
		return domain.Route{}, fmt.Errorf("jupiter: parse outAmount %q: %w", quote.OutAmount, err)
	}
	priceImpact, _ := strconv.ParseFloat(quote.PriceImpactPct, 64)

	route := domain.Route{
		InputMint:      quote.InputMint,
		OutputMint:     quote.OutputMint,
		InAmountRaw:    inAmount,
		OutAmountRaw:   outAmount,
		PriceImpactPct: priceImpact,
		SlippageBps:    quote.SlippageBps,
		Payload:        json.RawMessage(body),
	}
	if quote.PlatformFee != nil {
		route.PlatformFeeRaw, _ = strconv.ParseUint(quote.PlatformFee.Amount, 10, 64)
	}

	c.logger.Debug("quote fetched",
		slog.String("input_mint", route.InputMint),
		slog.String("output_mint", route.OutputMint),
		slog.Uint64("in_amount", route.InAmountRaw),
		slog.Uint64("out_amount", route.OutAmountRaw),
		slog.Float64("price_impact_pct", route.PriceImpactPct))

	return route, nil
}

// BuildSwapTransaction exchanges a route for an unsigned transaction,
// returned as raw bytes ready for signing. userPublicKey becomes the fee
// payer and the swap's authority.
func (c *Client) BuildSwapTransaction(ctx context.Context, route domain.Route, userPublicKey string) ([]byte, error) {
	if len(route.Payload) == 0 {
		return nil, domain.NewError(domain.KindValidation, domain.ReasonNoRoute, "route carries no quote payload")
	}

	reqBody := swapRequest{
		UserPublicKey:       userPublicKey,
		WrapAndUnwrapSol:    true,
		AsLegacyTransaction: false,
		QuoteResponse:       route.Payload,
	}
	if c.cfg.PlatformFeeBps > 0 && c.cfg.PlatformFeeAccount != "" {
		reqBody.FeeAccount = c.cfg.PlatformFeeAccount
	}

	body, err := c.doPost(ctx, "/swap", reqBody)
	if err != nil {
		return nil, fmt.Errorf("jupiter: build swap: %w", err)
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, domain.NewError(domain.KindTransient, domain.ReasonAggregator, "swap response carried no transaction")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("jupiter: decode swap transaction: %w", err)
	}
	return raw, nil
}

func validateQuoteRequest(req domain.QuoteRequest) error {
	if req.AmountRaw == 0 {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidAmount, "swap amount must be positive")
	}
	if req.SlippagePct < MinSlippagePct || req.SlippagePct > MaxSlippagePct {
		return domain.NewError(domain.KindValidation, domain.ReasonSlippageOutOfRange,
			fmt.Sprintf("slippage %.2f%% outside [%.1f, %.1f]", req.SlippagePct, MinSlippagePct, MaxSlippagePct))
	}
	if !domain.ValidAddress(req.InputMint) {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid input mint "+req.InputMint)
	}
	if !domain.ValidAddress(req.OutputMint) {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid output mint "+req.OutputMint)
	}
	if req.InputMint == req.OutputMint {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "input and output mints are identical")
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)
	return c.do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransient, domain.ReasonAggregator, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransient, domain.ReasonAggregator, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classifyStatus(resp.StatusCode, body)
}

// classifyStatus maps aggregator HTTP failures onto the error taxonomy.
// 4xx responses are deterministic (bad pair, no route); 429 and 5xx are
// worth retrying.
func classifyStatus(status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.text()
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.WrapError(domain.KindTransient, domain.ReasonAggregator, domain.ErrRateLimited)
	case status >= 500:
		return domain.NewError(domain.KindTransient, domain.ReasonAggregator, fmt.Sprintf("HTTP %d: %s", status, detail))
	case noRouteText(detail):
		return domain.NewError(domain.KindOnChain, domain.ReasonNoRoute, detail)
	default:
		return domain.NewError(domain.KindOnChain, domain.ReasonAggregator, fmt.Sprintf("HTTP %d: %s", status, detail))
	}
}

func noRouteText(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "no route") || strings.Contains(lower, "could not find any route")
}

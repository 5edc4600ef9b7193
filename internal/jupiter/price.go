package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// PriceClientConfig holds configuration for the Jupiter price API.
type PriceClientConfig struct {
	// BaseURL is the price API root, e.g. "https://lite-api.jup.ag/price/v3".
	BaseURL string
	// APIKey is optional; without one the public rate limits apply.
	APIKey string
	// Timeout bounds a single request.
	Timeout time.Duration
}

func (cfg *PriceClientConfig) setDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://lite-api.jup.ag/price/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
}

// PriceClient fetches USD token prices from the Jupiter price API.
type PriceClient struct {
	cfg        PriceClientConfig
	httpClient *http.Client
}

// NewPriceClient creates a PriceClient with the given configuration.
func NewPriceClient(cfg PriceClientConfig) *PriceClient {
	cfg.setDefaults()
	return &PriceClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// pricePoint is one entry in the price API response, keyed by mint.
type pricePoint struct {
	USDPrice float64 `json:"usdPrice"`
}

// Prices returns USD prices for the given mints. Mints the API does not know
// are omitted from the result rather than reported as errors.
func (c *PriceClient) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}
	for _, mint := range mints {
		if !domain.ValidAddress(mint) {
			return nil, domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid mint "+mint)
		}
	}

	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter: create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransient, domain.ReasonAggregator, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransient, domain.ReasonAggregator, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var points map[string]*pricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("jupiter: decode price response: %w", err)
	}

	prices := make(map[string]float64, len(points))
	for mint, p := range points {
		if p != nil && p.USDPrice > 0 {
			prices[mint] = p.USDPrice
		}
	}
	return prices, nil
}

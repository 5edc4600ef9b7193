package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// PriceService defines the methods the price handler requires from the
// service layer.
type PriceService interface {
	Price(ctx context.Context, mint string) (float64, error)
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// PriceHandler serves USD price lookups.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler with the given service and logger.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices: prices,
		logger: logHandler(logger, "price"),
	}
}

// GetPrice returns the USD price of one mint.
// GET /api/prices/{mint}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	mint := pathParam(r, "mint")
	if mint == "" {
		writeError(w, http.StatusBadRequest, "missing mint")
		return
	}

	price, err := h.prices.Price(r.Context(), mint)
	if err != nil {
		writeDomainError(w, err, "failed to fetch price")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mint":      mint,
		"usd_price": price,
	})
}

// ListPrices returns USD prices for a comma-separated list of mints. Unknown
// mints are omitted from the response.
// GET /api/prices?mints=a,b,c
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("mints")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "mints query parameter required")
		return
	}

	var mints []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			mints = append(mints, m)
		}
	}

	prices, err := h.prices.Prices(r.Context(), mints)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "fetch prices failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

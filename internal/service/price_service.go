package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// PriceSource fetches spot USD prices from the aggregator's price API.
type PriceSource interface {
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// PriceService serves USD token prices, reading through the shared cache so
// repeated chat queries do not hammer the price API.
type PriceService struct {
	source PriceSource
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewPriceService creates a PriceService with all required dependencies.
func NewPriceService(source PriceSource, cache domain.PriceCache, logger *slog.Logger) *PriceService {
	return &PriceService{
		source: source,
		cache:  cache,
		logger: logger.With(slog.String("component", "price_service")),
	}
}

// Price returns the USD price for a single mint, served from cache when
// fresh. Returns domain.ErrNotFound when the price API does not know the
// mint.
func (s *PriceService) Price(ctx context.Context, mint string) (float64, error) {
	if !domain.ValidAddress(mint) {
		return 0, domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid mint "+mint)
	}

	price, _, err := s.cache.GetPrice(ctx, mint)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "price cache read failed",
			slog.String("mint", mint),
			slog.String("error", err.Error()),
		)
	}

	fetched, err := s.source.Prices(ctx, []string{mint})
	if err != nil {
		return 0, fmt.Errorf("price_service: fetch price for %q: %w", mint, err)
	}
	price, ok := fetched[mint]
	if !ok {
		return 0, fmt.Errorf("price_service: price for %q: %w", mint, domain.ErrNotFound)
	}

	s.remember(ctx, map[string]float64{mint: price})
	return price, nil
}

// Prices returns USD prices for multiple mints. Cached entries are served
// directly; the rest are fetched in one batch. Mints the price API does not
// know are omitted from the result.
func (s *PriceService) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	for _, mint := range mints {
		if !domain.ValidAddress(mint) {
			return nil, domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid mint "+mint)
		}
	}

	result, err := s.cache.GetPrices(ctx, mints)
	if err != nil {
		s.logger.WarnContext(ctx, "price cache read failed",
			slog.String("error", err.Error()),
		)
		result = map[string]float64{}
	}

	var missing []string
	for _, mint := range mints {
		if _, ok := result[mint]; !ok {
			missing = append(missing, mint)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := s.source.Prices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("price_service: fetch prices: %w", err)
	}

	s.remember(ctx, fetched)
	for mint, price := range fetched {
		result[mint] = price
	}
	return result, nil
}

// remember writes fetched prices back to the cache. Cache failures are
// logged, not propagated; the caller already has the prices.
func (s *PriceService) remember(ctx context.Context, prices map[string]float64) {
	now := time.Now().UTC()
	for mint, price := range prices {
		if err := s.cache.SetPrice(ctx, mint, price, now); err != nil {
			s.logger.WarnContext(ctx, "price cache write failed",
				slog.String("mint", mint),
				slog.String("error", err.Error()),
			)
		}
	}
}

package chain

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// DecimalsResolver resolves mint decimals with a two-level cache: an
// in-process map in front of an optional shared cache. Lookup failures fall
// back to the chain default without caching, so a flaky RPC response cannot
// poison later conversions.
type DecimalsResolver struct {
	client *Client
	cache  domain.DecimalsCache // optional
	logger *slog.Logger

	mu  sync.RWMutex
	mem map[string]int
}

// NewDecimalsResolver creates a resolver. cache may be nil.
func NewDecimalsResolver(client *Client, cache domain.DecimalsCache, logger *slog.Logger) *DecimalsResolver {
	return &DecimalsResolver{
		client: client,
		cache:  cache,
		logger: logger.With(slog.String("component", "decimals")),
		mem:    make(map[string]int),
	}
}

// Decimals returns the decimals for mint.
func (r *DecimalsResolver) Decimals(ctx context.Context, mint string) int {
	if mint == domain.NativeMint {
		return domain.DefaultDecimals
	}

	r.mu.RLock()
	dec, ok := r.mem[mint]
	r.mu.RUnlock()
	if ok {
		return dec
	}

	if r.cache != nil {
		if dec, err := r.cache.GetDecimals(ctx, mint); err == nil {
			r.remember(ctx, mint, dec, false)
			return dec
		}
	}

	dec, err := r.client.TokenSupplyDecimals(ctx, mint)
	if err != nil {
		r.logger.Warn("decimals lookup failed, using default",
			slog.String("mint", mint),
			slog.Int("default", domain.DefaultDecimals),
			slog.String("error", err.Error()))
		return domain.DefaultDecimals
	}

	r.remember(ctx, mint, dec, true)
	return dec
}

func (r *DecimalsResolver) remember(ctx context.Context, mint string, dec int, writeThrough bool) {
	r.mu.Lock()
	r.mem[mint] = dec
	r.mu.Unlock()

	if writeThrough && r.cache != nil {
		if err := r.cache.SetDecimals(ctx, mint, dec); err != nil {
			r.logger.Warn("decimals cache write failed",
				slog.String("mint", mint),
				slog.String("error", err.Error()))
		}
	}
}

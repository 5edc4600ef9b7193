package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to recently fetched token prices.
type PriceCache interface {
	SetPrice(ctx context.Context, mint string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, mint string) (float64, time.Time, error)
	GetPrices(ctx context.Context, mints []string) (map[string]float64, error)
}

// DecimalsCache stores resolved mint decimals. Unlike prices, decimals
// never change for a mint, so entries are written without expiry.
type DecimalsCache interface {
	SetDecimals(ctx context.Context, mint string, decimals int) error
	GetDecimals(ctx context.Context, mint string) (int, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. Trade execution takes a
// per-wallet lock so two chat commands cannot race the same keypair.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// DecimalsCache implements domain.DecimalsCache using plain Redis strings.
// Decimals are immutable per mint, so keys are written without expiry.
type DecimalsCache struct {
	rdb *redis.Client
}

// NewDecimalsCache creates a DecimalsCache backed by the given Client.
func NewDecimalsCache(c *Client) *DecimalsCache {
	return &DecimalsCache{rdb: c.Underlying()}
}

func decimalsKey(mint string) string {
	return "decimals:" + mint
}

// SetDecimals stores the decimals for a mint.
func (dc *DecimalsCache) SetDecimals(ctx context.Context, mint string, decimals int) error {
	if err := dc.rdb.Set(ctx, decimalsKey(mint), decimals, 0).Err(); err != nil {
		return fmt.Errorf("redis: set decimals %s: %w", mint, err)
	}
	return nil
}

// GetDecimals retrieves the decimals for a mint. It returns
// domain.ErrNotFound when the mint has not been resolved yet.
func (dc *DecimalsCache) GetDecimals(ctx context.Context, mint string) (int, error) {
	val, err := dc.rdb.Get(ctx, decimalsKey(mint)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get decimals %s: %w", mint, err)
	}
	decimals, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("redis: parse decimals %s: %w", mint, err)
	}
	return decimals, nil
}

// Compile-time interface check.
var _ domain.DecimalsCache = (*DecimalsCache)(nil)

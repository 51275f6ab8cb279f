package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

// PriceCache implements domain.PriceSource over Redis hashes. Each asset's
// reference price lives in a hash at "price:{asset}" with fields "price" and
// "ts" (Unix nanoseconds). An external feeder owns population; the monitor
// only reads.
type PriceCache struct {
	rdb      *redis.Client
	maxStale time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. A positive
// maxStale rejects prices older than that age so the monitor never evaluates
// against a dead feed.
func NewPriceCache(c *Client, maxStale time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), maxStale: maxStale}
}

func priceKey(asset string) string {
	return "price:" + asset
}

// SetPrice stores the latest reference price for an asset. Exposed for the
// feeder process and for tests.
func (pc *PriceCache) SetPrice(ctx context.Context, asset string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(asset), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", asset, err)
	}
	return nil
}

// GetReferencePrice returns the latest cached price for the asset. It
// returns domain.ErrNotFound when no price exists or the cached value is
// older than the staleness bound.
func (pc *PriceCache) GetReferencePrice(ctx context.Context, asset string) (float64, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(asset)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: get price %s: %w", asset, err)
	}
	if len(vals) == 0 {
		return 0, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse price %s: %w", asset, err)
	}

	if pc.maxStale > 0 {
		tsStr, ok := vals["ts"]
		if !ok {
			return 0, domain.ErrNotFound
		}
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("redis: parse price ts %s: %w", asset, err)
		}
		if time.Since(time.Unix(0, tsNano)) > pc.maxStale {
			return 0, fmt.Errorf("redis: price %s stale: %w", asset, domain.ErrNotFound)
		}
	}

	return price, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*PriceCache)(nil)

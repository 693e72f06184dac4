// Package cache mirrors exhibition registration counts in Redis for fast
// reads. The cache is best-effort: the Postgres row (and behind it the
// registrations collection) stays the source of truth, and the reconciler
// rewrites cached values on every recompute.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "gatepass/internal/platform/redis"
	id "gatepass/pkg/domain"
)

const countTTL = 24 * time.Hour

type CountCache struct {
	client *platformredis.Client
}

func NewCountCache(client *platformredis.Client) *CountCache {
	return &CountCache{client: client}
}

func key(exhibitionID id.ExhibitionID) string {
	return fmt.Sprintf("gatepass:exhibition:%s:registrations", exhibitionID)
}

// Increment bumps the cached count if present. A missing key is left missing
// rather than seeded with a bare delta; Set owns establishing values.
func (c *CountCache) Increment(ctx context.Context, exhibitionID id.ExhibitionID) error {
	k := key(exhibitionID)
	exists, err := c.client.Exists(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("check cached count: %w", err)
	}
	if exists == 0 {
		return nil
	}
	if err := c.client.Incr(ctx, k).Err(); err != nil {
		return fmt.Errorf("increment cached count: %w", err)
	}
	return nil
}

// Set overwrites the cached count.
func (c *CountCache) Set(ctx context.Context, exhibitionID id.ExhibitionID, count int64) error {
	if err := c.client.Set(ctx, key(exhibitionID), count, countTTL).Err(); err != nil {
		return fmt.Errorf("set cached count: %w", err)
	}
	return nil
}

// Get returns the cached count; ok=false means cache miss.
func (c *CountCache) Get(ctx context.Context, exhibitionID id.ExhibitionID) (int64, bool, error) {
	n, err := c.client.Get(ctx, key(exhibitionID)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cached count: %w", err)
	}
	return n, true, nil
}

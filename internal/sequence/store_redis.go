package sequence

import (
	"context"
	"fmt"

	platformredis "gatepass/internal/platform/redis"
)

// RedisStore backs the counter with Redis INCR, which is atomic server-side.
// Counter keys carry both scope and date bucket so two scopes sharing a day
// never share a counter.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedis(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Next(ctx context.Context, scopeKey, dateBucket string) (int64, error) {
	key := fmt.Sprintf("gatepass:seq:%s:%s", scopeKey, dateBucket)
	seq, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return seq, nil
}

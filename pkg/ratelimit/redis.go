package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter counts requests in a shared Redis instance so every process
// behind a load balancer sees the same window. Keys are TTL-bound to the
// window length, expiry is automatic and needs no sweeping.
type RedisCounter struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisCounter(rdb redis.Cmdable) *RedisCounter {
	return &RedisCounter{rdb: rdb, now: time.Now}
}

func (c *RedisCounter) Incr(ctx context.Context, bucket string, window time.Duration) (int64, time.Time, error) {
	now := c.now()
	key := fmt.Sprintf("ratelimit:%s:%d", bucket, windowIndex(now, window))

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: %w", err)
	}

	// First hit in the window owns setting the TTL. Rounded up so the key
	// always outlives its window.
	if count == 1 {
		ttl := window.Round(time.Second)
		if ttl < window {
			ttl += time.Second
		}
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	return count, windowReset(now, window), nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts hits per key in fixed time windows backed by Redis.
// Key format: ratelimit:<key>:<window_start_unix>
type FixedWindowLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewFixedWindowLimiter creates a limiter wrapping the given Redis client.
func NewFixedWindowLimiter(client *redis.Client) *FixedWindowLimiter {
	return &FixedWindowLimiter{client: client, now: time.Now}
}

// Allow records one hit for key and reports whether the window's count is
// still within limit.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := l.key(key, window)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

func (l *FixedWindowLimiter) key(key string, window time.Duration) string {
	start := l.now().Truncate(window).Unix()
	return fmt.Sprintf("ratelimit:%s:%d", key, start)
}

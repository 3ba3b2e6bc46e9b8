package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"typstapi/internal/pkg/middleware"
)

// DefaultKeyPrefix namespaces limiter counters in a shared redis.
const DefaultKeyPrefix = "typstapi:ratelimit:"

// RedisLimiter is a fixed-window counter shared by every instance pointing
// at the same redis. Each key may make limit requests per window.
type RedisLimiter struct {
	client    redis.Cmdable
	keyPrefix string
	limit     int64
	window    time.Duration
	now       func() time.Time
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     int64(limit),
		window:    window,
		now:       time.Now,
	}
}

// Allow increments the counter for the current window of key.
// INCR and PEXPIRE run in one MULTI so a counter never outlives its window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := l.windowKey(key, l.now())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.PExpire(ctx, windowKey, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}

	return incr.Val() <= l.limit, nil
}

func (l *RedisLimiter) windowKey(key string, now time.Time) string {
	slot := now.UnixNano() / int64(l.window)
	return l.keyPrefix + key + ":" + strconv.FormatInt(slot, 10)
}

var _ middleware.Limiter = (*RedisLimiter)(nil)

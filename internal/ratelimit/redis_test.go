package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisClient connects to TYPSTAPI_TEST_REDIS_ADDR or skips.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TYPSTAPI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TYPSTAPI_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	client := redisClient(t)
	prefix := "typstapi:test:" + uuid.NewString() + ":"
	lim := NewRedisLimiter(client, 2, time.Minute, prefix)

	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	lim.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := lim.Allow(ctx, "203.0.113.9")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := lim.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, lim.windowKey("203.0.113.9", now)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	now = now.Add(time.Minute)
	ok, err = lim.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, ok, "new window resets the counter")
}

func TestRedisLimiter_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	lim := NewRedisLimiter(client, 1, time.Minute, "")
	_, err := lim.Allow(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit counter")
}

func TestRedisLimiter_WindowKey(t *testing.T) {
	lim := NewRedisLimiter(nil, 1, time.Minute, "")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, lim.windowKey("k", base), lim.windowKey("k", base.Add(59*time.Second)))
	assert.NotEqual(t, lim.windowKey("k", base), lim.windowKey("k", base.Add(time.Minute)))
	assert.Contains(t, lim.windowKey("k", base), DefaultKeyPrefix+"k:")
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	require.NoError(t, err)
	fixed := time.Date(2024, 9, 2, 10, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	return limiter, mr
}

func TestFixedWindowLimiterBlocksOverQuota(t *testing.T) {
	limiter, _ := newLimiter(t, 2)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "79990001122"))
	assert.True(t, limiter.Allow(ctx, "79990001122"))
	assert.False(t, limiter.Allow(ctx, "79990001122"))
	assert.True(t, limiter.Allow(ctx, "79990003344"))
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.Close()
	assert.False(t, limiter.Allow(context.Background(), "79990001122"))
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	_, err := NewFixedWindowLimiter(nil, "", 1, time.Second)
	assert.Error(t, err)
	_, err = NewFixedWindowLimiter(redis.NewClient(&redis.Options{}), "", 0, time.Second)
	assert.Error(t, err)
}

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// TestRedisStore runs against a real server when CS_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CS_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client)
	ctx := context.Background()
	key := "cs:test:" + uuid.NewString()
	t.Cleanup(func() { _ = s.Reset(ctx, key) })

	count, resetAt, err := s.Increment(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.WithinDuration(t, time.Now().Add(200*time.Millisecond), resetAt, 150*time.Millisecond)

	count, _, err = s.Increment(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.Eventually(t, func() bool {
		n, err := client.Exists(ctx, key).Result()
		return err == nil && n == 0
	}, 2*time.Second, 50*time.Millisecond)

	count, _, err = s.Increment(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, s.Reset(ctx, key))
	n, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}

package redisx

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

func openRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestLocker_SecondAcquireFailsUntilRelease(t *testing.T) {
	rdb := openRedis(t)
	ctx := context.Background()
	l := NewLocker(rdb)
	job := "test-" + uuid.NewString()

	release, err := l.Acquire(ctx, job, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	again, err := l.Acquire(ctx, job, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again)

	release()
	third, err := l.Acquire(ctx, job, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, third)
	third()
}

func TestClaim_OnlyFirstCallerWins(t *testing.T) {
	rdb := openRedis(t)
	ctx := context.Background()
	key := "test:claim:" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	ok, err := Claim(ctx, rdb, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Claim(ctx, rdb, key, "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := rdb.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

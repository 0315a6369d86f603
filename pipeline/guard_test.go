package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardKey(t *testing.T) {
	key := GuardKey(31337, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	assert.Equal(t, "batchmint:inflight:31337:0x1111111111111111111111111111111111111111", key)
}

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	release, err := g.Acquire(ctx, "a")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "a")
	assert.ErrorIs(t, err, ErrAttemptInFlight)

	other, err := g.Acquire(ctx, "b")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := g.Acquire(ctx, "a")
	require.NoError(t, err)
	again()
}

// 需要本地 Redis：REDIS_ADDR=localhost:6379 go test ./pipeline/...
func TestRedisGuard(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	key := "batchmint:test:" + t.Name()
	client.Del(ctx, key)

	g := NewRedisGuard(client, time.Minute)
	release, err := g.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = g.Acquire(ctx, key)
	assert.ErrorIs(t, err, ErrAttemptInFlight)

	release()
	n, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

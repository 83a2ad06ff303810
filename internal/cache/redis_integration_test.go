//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationRedis(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c := NewRedisCache(RedisOptions{Addr: addr, Timeout: 500 * time.Millisecond})
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	return c
}

func TestRedisCache_GetSetDelete_Integration(t *testing.T) {
	c := newIntegrationRedis(t)
	ctx := context.Background()

	key := "Cairo2026-10-18"
	val := `{"city":"Cairo","temperature":31.2,"condition":"Clear","humidity":40.1}`
	require.NoError(t, c.Set(ctx, key, val, time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, val, got)

	ttl, err := c.client.TTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 2)

	require.NoError(t, c.Delete(ctx, key))
	require.NoError(t, c.Delete(ctx, key), "deleting an absent key must succeed")

	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Get_Miss_Integration(t *testing.T) {
	c := newIntegrationRedis(t)

	_, ok, err := c.Get(context.Background(), "nonexistent-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

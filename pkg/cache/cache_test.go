package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCache_IsNoop(t *testing.T) {
	t.Parallel()

	var c *Cache
	ctx := context.Background()

	assert.False(t, c.Enabled())
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var out string
	assert.False(t, c.Get(ctx, "k", &out))
	require.NoError(t, c.Del(ctx, "k"))
	require.NoError(t, c.Close())
	assert.Nil(t, c.Client())
}

func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("FARM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FARM_TEST_REDIS_ADDR is not set")
	}

	ctx := context.Background()
	c, err := Connect(ctx, addr, "", 0, "test:"+uuid.NewString()+":")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	type payload struct {
		City string  `json:"city"`
		Temp float64 `json:"temp"`
	}

	require.NoError(t, c.Set(ctx, "weather", payload{City: "Pune", Temp: 31}, time.Minute))

	var got payload
	require.True(t, c.Get(ctx, "weather", &got))
	assert.Equal(t, payload{City: "Pune", Temp: 31}, got)

	require.NoError(t, c.Del(ctx, "weather"))
	assert.False(t, c.Get(ctx, "weather", &got))
}

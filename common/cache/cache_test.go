package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/terraform-registry/common/logger"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(logger.New("error", "text"))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))

	got, hit, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(logger.New("error", "text"))
	defer c.Close()

	_, hit, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(logger.New("error", "text"))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, hit, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(logger.New("error", "text"))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))
	require.NoError(t, c.Delete(ctx, "key"))

	_, hit, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, hit)

	// Deleting an absent key is not an error
	assert.NoError(t, c.Delete(ctx, "key"))
}

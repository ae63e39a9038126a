package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitabu/kitabu/core"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	cache := New(core.RedisConfig{Address: srv.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	return cache, srv
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Ping(ctx))

	_, err := cache.Get(ctx, "funnel:slots:7d")
	assert.Equal(t, core.ErrCacheMiss, err)

	require.NoError(t, cache.Set(ctx, "funnel:slots:7d", []byte(`[]`), time.Minute))
	val, err := cache.Get(ctx, "funnel:slots:7d")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), val)

	require.NoError(t, cache.Delete(ctx, "funnel:slots:7d"))
	_, err = cache.Get(ctx, "funnel:slots:7d")
	assert.Equal(t, core.ErrCacheMiss, err)
}

func TestCacheTTL(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))

	srv.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "k")
	assert.Equal(t, core.ErrCacheMiss, err)
}

func TestCacheDeleteNoKeys(t *testing.T) {
	cache, _ := newTestCache(t)
	assert.NoError(t, cache.Delete(context.Background()))
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemory()
	ctx := context.Background()

	_, err := cache.Get(ctx, "k")
	assert.Equal(t, core.ErrCacheMiss, err)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, cache.Set(ctx, "expired", []byte("v"), -time.Second))
	_, err = cache.Get(ctx, "expired")
	assert.Equal(t, core.ErrCacheMiss, err)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, err = cache.Get(ctx, "k")
	assert.Equal(t, core.ErrCacheMiss, err)
}

package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCacheServesSnapshotUntilBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) ([]Product, error) {
		loads++
		return []Product{{ID: 1, SKU: "SKU-1", Name: "Soda 500ml", Stock: 40}}, nil
	}

	first, err := cache.FetchProducts(ctx, true, loader)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, loads)

	second, err := cache.FetchProducts(ctx, true, loader)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, loads, "second read must come from cache")

	require.NoError(t, cache.Bump(ctx))

	_, err = cache.FetchProducts(ctx, true, loader)
	require.NoError(t, err)
	require.Equal(t, 2, loads, "bump must force a reload")
}

func TestCacheKeysSplitByActiveFilter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	activeLoads, allLoads := 0, 0
	_, err := cache.FetchProducts(ctx, true, func(ctx context.Context) ([]Product, error) {
		activeLoads++
		return []Product{{ID: 1}}, nil
	})
	require.NoError(t, err)
	_, err = cache.FetchProducts(ctx, false, func(ctx context.Context) ([]Product, error) {
		allLoads++
		return []Product{{ID: 1}, {ID: 2}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, activeLoads)
	require.Equal(t, 1, allLoads)
}

func TestNilCacheFallsThroughToLoader(t *testing.T) {
	var cache *Cache
	products, err := cache.FetchProducts(context.Background(), true, func(ctx context.Context) ([]Product, error) {
		return []Product{{ID: 9}}, nil
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NoError(t, cache.Bump(context.Background()))
}

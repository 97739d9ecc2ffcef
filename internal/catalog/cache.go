package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "catalog:version"

// Cache serves product snapshots from Redis with version-based
// invalidation: writers bump the version, readers key by it, and stale
// entries age out through the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// FetchProducts loads the cached product list or populates it from the loader.
func (c *Cache) FetchProducts(ctx context.Context, activeOnly bool, loader func(context.Context) ([]Product, error)) ([]Product, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("catalog:products:%t:%d", activeOnly, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var products []Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	products, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(products); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return products, nil
}

// Bump invalidates cached snapshots by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

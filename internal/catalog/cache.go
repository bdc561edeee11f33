package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores product lookups in Redis as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a cache helper. A nil client or non-positive ttl disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "catalog:product:"}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *Cache) key(productID string) string { return c.prefix + productID }

// Get loads a cached product. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, productID string) (Product, bool, error) {
	if !c.enabled() || productID == "" {
		return Product{}, false, nil
	}
	data, err := c.client.Get(ctx, c.key(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Product{}, false, nil
		}
		return Product{}, false, err
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

// Set stores p under its id with the configured TTL.
func (c *Cache) Set(ctx context.Context, p Product) error {
	if !c.enabled() || p.ID == "" {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(p.ID), data, c.ttl).Err()
}

// Invalidate drops the cached entry for productID.
func (c *Cache) Invalidate(ctx context.Context, productID string) error {
	if !c.enabled() || productID == "" {
		return nil
	}
	return c.client.Del(ctx, c.key(productID)).Err()
}

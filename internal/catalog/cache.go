package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stocklane/stocklane/internal/ledger"
)

const cacheKey = "catalog:variants"

// Cache keeps the variant list in Redis for a short TTL so dashboard list
// views do not hammer the remote store. Reconciliation reads never go
// through it; stale quantities here only delay a list refresh.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached variant list when present.
func (c *Cache) Get(ctx context.Context) ([]ledger.Variant, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var variants []ledger.Variant
	if err := json.Unmarshal(data, &variants); err != nil {
		return nil, false
	}
	return variants, true
}

// Set stores the variant list. Failures are ignored; the cache is advisory.
func (c *Cache) Set(ctx context.Context, variants []ledger.Variant) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(variants)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey, data, c.ttl).Err()
}

// Invalidate drops the cached list after any catalog write.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey).Err()
}

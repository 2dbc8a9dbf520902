// Package memory provides an in-process dividend cache for single-instance
// deployments and local runs without Redis.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vmanilo/paralimni/internal/domain"
)

type tombstone struct{}

// DividendCache keeps entries in a go-cache with per-item expiry. Expired
// entries are never returned; the janitor only reclaims memory.
type DividendCache struct {
	items *gocache.Cache
}

var _ domain.DividendCache = (*DividendCache)(nil)

func NewDividendCache(cleanupInterval time.Duration) *DividendCache {
	return &DividendCache{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (c *DividendCache) Get(_ context.Context, key string) (int64, domain.CacheState, error) {
	item, ok := c.items.Get(key)
	if !ok {
		return 0, domain.CacheMiss, nil
	}

	switch v := item.(type) {
	case int64:
		return v, domain.CacheHit, nil
	case tombstone:
		return 0, domain.CacheTombstone, nil
	default:
		return 0, domain.CacheMiss, nil
	}
}

func (c *DividendCache) Set(_ context.Context, key string, value int64, ttl time.Duration) error {
	c.items.Set(key, value, ttl)
	return nil
}

func (c *DividendCache) SetAbsent(_ context.Context, key string, ttl time.Duration) error {
	c.items.Set(key, tombstone{}, ttl)
	return nil
}

// Len reports the number of stored entries, including expired ones not yet reclaimed.
func (c *DividendCache) Len() int {
	return c.items.ItemCount()
}

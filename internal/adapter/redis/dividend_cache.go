package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vmanilo/paralimni/internal/domain"
)

// tombstoneValue marks a key the ledger reported as absent. Real values are
// decimal integers, so the two never collide.
const tombstoneValue = "absent"

var errCorruptEntry = errors.New("corrupt dividend cache entry")

// DividendCache stores resolved dividends as plain strings with server-side expiry.
type DividendCache struct {
	rdb goredis.Cmdable
}

var _ domain.DividendCache = (*DividendCache)(nil)

func NewDividendCache(rdb goredis.Cmdable) *DividendCache {
	return &DividendCache{rdb: rdb}
}

func (c *DividendCache) Get(ctx context.Context, key string) (int64, domain.CacheState, error) {
	raw, err := c.rdb.Get(ctx, dividendKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, domain.CacheMiss, nil
	}
	if err != nil {
		return 0, domain.CacheMiss, fmt.Errorf("dividend cache GET failed: %w", err)
	}

	if raw == tombstoneValue {
		return 0, domain.CacheTombstone, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.CacheMiss, fmt.Errorf("%w: key %q", errCorruptEntry, key)
	}
	return value, domain.CacheHit, nil
}

// Set writes value with SET EX, replacing any previous value and TTL.
func (c *DividendCache) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, dividendKey(key), strconv.FormatInt(value, 10), ttl).Err(); err != nil {
		return fmt.Errorf("dividend cache SET failed: %w", err)
	}
	return nil
}

func (c *DividendCache) SetAbsent(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, dividendKey(key), tombstoneValue, ttl).Err(); err != nil {
		return fmt.Errorf("dividend cache SET absent failed: %w", err)
	}
	return nil
}

func dividendKey(key string) string {
	return "dividend:" + key
}

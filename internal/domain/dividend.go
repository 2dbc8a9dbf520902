package domain

import (
	"context"
	"strconv"
	"time"
)

// DividendQuery identifies one dividend lookup. It is built per request and never mutated.
type DividendQuery struct {
	SubnetID uint16
	Hotkey   string
}

// CacheKey returns the deterministic cache key "{subnet_id}:{hotkey}".
// Subnet ids are numeric and SS58 addresses never contain a colon, so the key is unambiguous.
func (q DividendQuery) CacheKey() string {
	return strconv.FormatUint(uint64(q.SubnetID), 10) + ":" + q.Hotkey
}

// Source tells where a DividendResult came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceLedger Source = "ledger"
	SourceNone   Source = "none"
)

// DividendResult is the outcome of a resolve. Found=false means no record exists for the pair.
type DividendResult struct {
	Value  int64
	Found  bool
	Source Source
}

// FromCache reports whether the answer was served by the cache store.
func (r DividendResult) FromCache() bool {
	return r.Source == SourceCache
}

// LedgerClient performs a single point lookup against the remote ledger.
// found=false with a nil error means the ledger holds no record, or the
// ledger could not be reached within the retry budget.
type LedgerClient interface {
	Fetch(ctx context.Context, query DividendQuery) (value int64, found bool, err error)
}

// CacheState is the result of a cache read.
type CacheState int

const (
	CacheMiss CacheState = iota
	CacheHit
	// CacheTombstone means the cache remembers that the ledger had no value.
	CacheTombstone
)

// DividendCache is the side-cache in front of the ledger. Set always applies the
// given TTL and replaces any previous value and TTL for the key.
type DividendCache interface {
	Get(ctx context.Context, key string) (int64, CacheState, error)
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	SetAbsent(ctx context.Context, key string, ttl time.Duration) error
}

// DividendView is what the read API returns for a found dividend.
type DividendView struct {
	Timestamp        time.Time `json:"timestamp"`
	SubnetID         uint16    `json:"netuid"`
	Hotkey           string    `json:"hotkey"`
	Dividend         int64     `json:"dividend"`
	Cached           bool      `json:"cached"`
	StakeTxTriggered bool      `json:"stake_tx_triggered"`
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

type ResolverOptions struct {
	// TTL applies to every cached value.
	TTL time.Duration
	// NegativeTTL > 0 caches "no record" answers for that long. Zero disables it.
	NegativeTTL time.Duration
	// Dedupe collapses concurrent misses for the same key into one ledger fetch.
	Dedupe bool
}

// Resolver answers dividend queries cache-aside: cache first, ledger on a miss,
// cache fill on a found value. The cache is never on the correctness path; a
// failing cache only costs latency.
type Resolver struct {
	cache   domain.DividendCache
	ledger  domain.LedgerClient
	opts    ResolverOptions
	group   singleflight.Group
	metrics *metrics.CacheMetrics
}

func NewResolver(cache domain.DividendCache, ledger domain.LedgerClient, opts ResolverOptions, m *metrics.CacheMetrics) *Resolver {
	return &Resolver{
		cache:   cache,
		ledger:  ledger,
		opts:    opts,
		metrics: m,
	}
}

func (r *Resolver) Resolve(ctx context.Context, query domain.DividendQuery) (domain.DividendResult, error) {
	key := query.CacheKey()

	value, state, err := r.cache.Get(ctx, key)
	if err != nil {
		r.metrics.Errors.WithLabelValues("get").Inc()
		slog.WarnContext(ctx, "Dividend cache read failed, falling back to ledger", "key", key, "error", err)
		state = domain.CacheMiss
	}

	switch state {
	case domain.CacheHit:
		r.metrics.Lookups.WithLabelValues("hit").Inc()
		return domain.DividendResult{Value: value, Found: true, Source: domain.SourceCache}, nil
	case domain.CacheTombstone:
		r.metrics.Lookups.WithLabelValues("tombstone").Inc()
		return domain.DividendResult{Source: domain.SourceCache}, nil
	}
	r.metrics.Lookups.WithLabelValues("miss").Inc()

	if !r.opts.Dedupe {
		return r.load(ctx, query, key)
	}

	// The shared fetch outlives any single caller so one cancelled request
	// does not fail the others waiting on it.
	ch := r.group.DoChan(key, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), query, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.DividendResult{}, res.Err
		}
		return res.Val.(domain.DividendResult), nil
	case <-ctx.Done():
		return domain.DividendResult{}, ctx.Err()
	}
}

func (r *Resolver) load(ctx context.Context, query domain.DividendQuery, key string) (domain.DividendResult, error) {
	value, found, err := r.ledger.Fetch(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.DividendResult{}, err
		}
		return domain.DividendResult{}, fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, err)
	}

	writeCtx := context.WithoutCancel(ctx)

	if !found {
		if r.opts.NegativeTTL > 0 {
			r.metrics.Writes.WithLabelValues("absent").Inc()
			if err := r.cache.SetAbsent(writeCtx, key, r.opts.NegativeTTL); err != nil {
				r.metrics.Errors.WithLabelValues("set").Inc()
				slog.WarnContext(ctx, "Dividend cache tombstone write failed", "key", key, "error", err)
			}
		}
		return domain.DividendResult{Source: domain.SourceNone}, nil
	}

	r.metrics.Writes.WithLabelValues("value").Inc()
	if err := r.cache.Set(writeCtx, key, value, r.opts.TTL); err != nil {
		r.metrics.Errors.WithLabelValues("set").Inc()
		slog.WarnContext(ctx, "Dividend cache write failed", "key", key, "error", err)
	}

	return domain.DividendResult{Value: value, Found: true, Source: domain.SourceLedger}, nil
}

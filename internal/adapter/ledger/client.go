// Package ledger reads per-subnet tao dividends from a subtensor node over
// websocket JSON-RPC.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/retry"
)

const (
	storagePallet = "SubtensorModule"
	storageItem   = "TaoDividendsPerSubnet"
)

type Options struct {
	URL           string
	MaxConcurrent int
	MaxAttempts   int
	RetryBackoff  time.Duration
	DialTimeout   time.Duration
	CallTimeout   time.Duration
}

// Client performs point lookups. At most MaxConcurrent fetches run at once; a
// permit is held across all retry attempts of one fetch. Every attempt opens
// its own connection and closes it before returning.
type Client struct {
	opts    Options
	sem     *semaphore.Weighted
	dialer  *websocket.Dialer
	metrics *metrics.LedgerMetrics
	reqID   atomic.Uint64
}

var _ domain.LedgerClient = (*Client)(nil)

func NewClient(opts Options, m *metrics.LedgerMetrics) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("ledger URL is required")
	}
	if opts.MaxConcurrent < 1 {
		return nil, fmt.Errorf("ledger concurrency must be at least 1, got %d", opts.MaxConcurrent)
	}
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("ledger attempts must be at least 1, got %d", opts.MaxAttempts)
	}

	return &Client{
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
		metrics: m,
	}, nil
}

// Fetch returns the dividend for the query. found=false with a nil error
// covers both "no record" and "ledger unreachable after every retry"; the
// latter is logged as degraded. A malformed reply fails immediately with
// domain.ErrMalformedUpstream.
func (c *Client) Fetch(ctx context.Context, query domain.DividendQuery) (int64, bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.metrics.Fetches.WithLabelValues("cancelled").Inc()
		return 0, false, fmt.Errorf("waiting for ledger permit: %w", err)
	}
	defer c.sem.Release(1)

	c.metrics.InFlight.Inc()
	defer c.metrics.InFlight.Dec()
	timer := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(timer).Seconds()) }()

	policy := retry.Policy{
		MaxAttempts:    c.opts.MaxAttempts,
		InitialBackoff: c.opts.RetryBackoff,
		Fixed:          true,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.DebugContext(ctx, "Ledger attempt failed, retrying",
				"attempt", attempt, "backoff", backoff, "netuid", query.SubnetID, "error", err)
		},
	}

	res, err := retry.Do(ctx, policy, classify, func(ctx context.Context, _ int) (lookup, error) {
		return c.attempt(ctx, query)
	})

	switch {
	case err == nil && res.found:
		c.metrics.Fetches.WithLabelValues("found").Inc()
		return res.value, true, nil
	case err == nil:
		c.metrics.Fetches.WithLabelValues("absent").Inc()
		return 0, false, nil
	case errors.Is(err, ErrMalformedResponse):
		c.metrics.Fetches.WithLabelValues("malformed").Inc()
		return 0, false, fmt.Errorf("%w: %w", domain.ErrMalformedUpstream, err)
	case ctx.Err() != nil:
		c.metrics.Fetches.WithLabelValues("cancelled").Inc()
		return 0, false, fmt.Errorf("ledger fetch cancelled: %w", ctx.Err())
	default:
		c.metrics.Fetches.WithLabelValues("degraded").Inc()
		slog.WarnContext(ctx, "Ledger degraded, reporting dividend as absent",
			"netuid", query.SubnetID, "hotkey", query.Hotkey, "error", err)
		return 0, false, nil
	}
}

type lookup struct {
	value int64
	found bool
}

func classify(err error) retry.Action {
	if errors.Is(err, ErrMalformedResponse) {
		return retry.Stop
	}
	return retry.Retry
}

func (c *Client) attempt(ctx context.Context, query domain.DividendQuery) (res lookup, err error) {
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrMalformedResponse):
			outcome = "malformed"
		case err != nil:
			outcome = "error"
		}
		c.metrics.Attempts.WithLabelValues(outcome).Inc()
	}()

	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return lookup{}, fmt.Errorf("dial ledger: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblocks pending reads when the attempt's context ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	headRaw, err := call(conn, c.reqID.Add(1), "chain_getHead")
	if err != nil {
		return lookup{}, err
	}
	head, err := decodeBlockHash(headRaw)
	if err != nil {
		return lookup{}, err
	}

	raw, err := call(conn, c.reqID.Add(1), "subtensor_queryStorage",
		storagePallet, storageItem, []any{query.SubnetID, query.Hotkey}, head)
	if err != nil {
		return lookup{}, err
	}

	value, found, err := decodeDividend(raw)
	if err != nil {
		return lookup{}, err
	}
	return lookup{value: value, found: found}, nil
}

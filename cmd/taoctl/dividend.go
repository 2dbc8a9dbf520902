package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/vmanilo/paralimni/internal/adapter/ledger"
	"github.com/vmanilo/paralimni/internal/adapter/memory"
	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/adapter/redis"
	"github.com/vmanilo/paralimni/internal/app"
	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/config"
	"github.com/vmanilo/paralimni/internal/platform/ss58"
)

type dividendOptions struct {
	netuid  int
	hotkey  string
	noCache bool
}

func newDividendCmd(root *rootOptions) *cobra.Command {
	opts := &dividendOptions{}

	cmd := &cobra.Command{
		Use:   "dividend",
		Short: "Resolve one dividend through the cache and the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, env, err := root.prepare(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			query, err := opts.query(env.cfg)
			if err != nil {
				return err
			}

			view, err := runDividend(ctx, env, query, opts.noCache)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("netuid %d hotkey %s: dividend %d (cached: %t)", view.SubnetID, view.Hotkey, view.Dividend, view.Cached)
			return printResult(cmd, root.jsonOut, view, text)
		},
	}

	cmd.Flags().IntVar(&opts.netuid, "netuid", -1, "subnet id (default DEFAULT_NETUID)")
	cmd.Flags().StringVar(&opts.hotkey, "hotkey", "", "SS58 hotkey (default DEFAULT_HOTKEY)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the shared cache and ask the ledger directly")
	return cmd
}

// query applies config defaults to unset flags and validates the result.
func (o *dividendOptions) query(cfg *config.Config) (domain.DividendQuery, error) {
	netuid := o.netuid
	if netuid < 0 {
		netuid = cfg.DefaultNetUID
	}
	if netuid < 0 || netuid > 65535 {
		return domain.DividendQuery{}, fmt.Errorf("netuid must be between 0 and 65535, got %d", netuid)
	}

	hotkey := o.hotkey
	if hotkey == "" {
		hotkey = cfg.DefaultHotkey
	}
	if !ss58.Valid(hotkey) {
		return domain.DividendQuery{}, fmt.Errorf("hotkey %q is not a valid SS58 address", hotkey)
	}

	return domain.DividendQuery{SubnetID: uint16(netuid), Hotkey: hotkey}, nil
}

func runDividend(ctx context.Context, env *cliEnv, query domain.DividendQuery, noCache bool) (*domain.DividendView, error) {
	cfg := env.cfg

	ledgerClient, err := ledger.NewClient(ledger.Options{
		URL:           cfg.ChainURL,
		MaxConcurrent: 1,
		MaxAttempts:   cfg.LedgerMaxRetries,
		RetryBackoff:  cfg.LedgerRetryBackoff,
		DialTimeout:   cfg.LedgerDialTimeout,
		CallTimeout:   cfg.LedgerCallTimeout,
	}, metrics.NewLedgerMetrics(env.reg))
	if err != nil {
		return nil, err
	}

	var cache domain.DividendCache = memory.NewDividendCache(time.Minute)
	if !noCache && cfg.CacheBackend == config.CacheBackendRedis && cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.WarnContext(ctx, "Redis unavailable, resolving without the shared cache", "error", err)
		} else {
			defer func() { _ = client.Close() }()
			cache = redis.NewDividendCache(client)
		}
	}

	resolver := app.NewResolver(cache, ledgerClient, app.ResolverOptions{
		TTL:         cfg.DividendCacheTTL,
		NegativeTTL: cfg.DividendNegativeTTL,
	}, metrics.NewCacheMetrics(env.reg))

	// Trading is never triggered from the CLI, so no queue or user store is needed.
	svc := app.NewService(resolver, nil, nil, clockwork.NewRealClock(), "")
	view, err := svc.GetDividend(ctx, query, false)
	if errors.Is(err, domain.ErrDividendNotFound) {
		return nil, fmt.Errorf("no dividend recorded for netuid %d hotkey %s", query.SubnetID, query.Hotkey)
	}
	return view, err
}

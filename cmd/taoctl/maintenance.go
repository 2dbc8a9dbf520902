package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmanilo/paralimni/internal/adapter/postgres"
	"github.com/vmanilo/paralimni/internal/adapter/redis"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, env, err := root.prepare(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			if env.cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}

			pool, err := postgres.Connect(ctx, env.cfg.DatabaseURL, nil)
			if err != nil {
				return err
			}
			defer pool.Close()

			res, err := postgres.RunMigrationsWithLock(ctx, pool)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("schema at version %d (%d applied)", res.To, res.Applied())
			return printResult(cmd, root.jsonOut, res, text)
		},
	}
}

type purgeOptions struct {
	netuid int
	dryRun bool
}

func newCachePurgeCmd(root *rootOptions) *cobra.Command {
	opts := &purgeOptions{}

	cmd := &cobra.Command{
		Use:   "cache-purge",
		Short: "Delete cached dividends from Redis",
		Long: `cache-purge walks the Redis keyspace with SCAN and deletes cached
dividends, for one subnet (--netuid) or all of them. Use --dry-run to count
matching keys without deleting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, env, err := root.prepare(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			if env.cfg.RedisURL == "" {
				return errors.New("REDIS_URL is required")
			}
			subnet, err := opts.subnet()
			if err != nil {
				return err
			}

			client, err := redis.NewClient(ctx, env.cfg.RedisURL)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			stats, err := redis.NewDividendCache(client).Purge(ctx, subnet, opts.dryRun)
			if err != nil {
				return err
			}

			text := fmt.Sprintf("deleted %d of %d matching keys in %s", stats.Deleted, stats.Scanned, stats.Duration.Round(time.Millisecond))
			if opts.dryRun {
				text = fmt.Sprintf("dry run: %d matching keys", stats.Scanned)
			}
			return printResult(cmd, root.jsonOut, stats, text)
		},
	}

	cmd.Flags().IntVar(&opts.netuid, "netuid", -1, "only purge this subnet (default: all subnets)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "count matching keys without deleting them")
	return cmd
}

func (o *purgeOptions) subnet() (*uint16, error) {
	if o.netuid < 0 {
		return nil, nil
	}
	if o.netuid > 65535 {
		return nil, fmt.Errorf("netuid must be between 0 and 65535, got %d", o.netuid)
	}
	netuid := uint16(o.netuid)
	return &netuid, nil
}

package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

const scanCount = 100

// PurgeStats summarises a Purge run.
type PurgeStats struct {
	Scanned  int           `json:"scanned"`
	Deleted  int           `json:"deleted"`
	DryRun   bool          `json:"dry_run"`
	Duration time.Duration `json:"duration_ns"`
}

// Purge deletes cached dividends, walking the keyspace with SCAN. A nil
// subnetID purges every subnet. With dryRun set, keys are counted but kept.
func (c *DividendCache) Purge(ctx context.Context, subnetID *uint16, dryRun bool) (PurgeStats, error) {
	start := time.Now()
	stats := PurgeStats{DryRun: dryRun}

	pattern := dividendKey("*")
	if subnetID != nil {
		pattern = dividendKey(strconv.FormatUint(uint64(*subnetID), 10) + ":*")
	}

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return stats, fmt.Errorf("scan failed: %w", err)
		}
		stats.Scanned += len(keys)

		if len(keys) > 0 && !dryRun {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return stats, fmt.Errorf("del failed: %w", err)
			}
			stats.Deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	stats.Duration = time.Since(start)
	slog.InfoContext(ctx, "Dividend cache purge complete",
		"pattern", pattern,
		"scanned", stats.Scanned,
		"deleted", stats.Deleted,
		"dry_run", dryRun,
		"duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

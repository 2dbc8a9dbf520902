package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vmanilo/paralimni/internal/platform/config"
	"github.com/vmanilo/paralimni/internal/platform/correlation"
	"github.com/vmanilo/paralimni/internal/platform/logging"
	"github.com/vmanilo/paralimni/internal/platform/version"
)

type rootOptions struct {
	timeout  time.Duration
	logLevel string
	jsonOut  bool
}

// cliEnv is what every subcommand needs once flags are parsed.
type cliEnv struct {
	cfg *config.Config
	// reg is private to this process; nothing scrapes it.
	reg *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "taoctl",
		Short: "Operator tool for the tao dividends service",
		Long: `taoctl runs one-off dividend lookups, sentiment aggregations and maintenance
tasks using the service's environment configuration (.env is honoured).

Examples:
  taoctl dividend --netuid 18 --hotkey 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY
  taoctl sentiment --netuid 18
  taoctl sentiment --netuid 18 --actuate
  taoctl cache-purge --netuid 18 --dry-run
  taoctl migrate`,
		Version:       version.Get().String(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall command timeout")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print the result as JSON")

	cmd.AddCommand(
		newDividendCmd(opts),
		newSentimentCmd(opts),
		newCachePurgeCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// prepare loads configuration and returns a context bounded by --timeout
// that carries a fresh correlation ID.
func (o *rootOptions) prepare(cmd *cobra.Command) (context.Context, context.CancelFunc, *cliEnv, error) {
	slog.SetDefault(logging.New(os.Stderr, o.logLevel, "text"))

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	ctx, id := correlation.Ensure(ctx)
	slog.DebugContext(ctx, "taoctl run", "command", cmd.Name(), "correlation_id", id)

	return ctx, cancel, &cliEnv{cfg: cfg, reg: prometheus.NewRegistry()}, nil
}

func printResult(cmd *cobra.Command, asJSON bool, v any, text string) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	return writeJSON(out, v)
}

// Package cli implements the fundamentals command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fundamentals/internal/alphavantage"
	"fundamentals/internal/cache"
	"fundamentals/internal/config"
	"fundamentals/internal/fetcher"
	"fundamentals/internal/logging"
	"fundamentals/internal/pipeline"
	"fundamentals/internal/ratelimit"
	"fundamentals/internal/render"
	"fundamentals/internal/table"
)

// rootFlags holds the persistent flags shared by every subcommand
type rootFlags struct {
	configFile string
	maxAge     cache.MaxAge
	output     string
	limit      int
}

// app is the wiring of one command invocation
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *cache.Store
	flags  *rootFlags
	cmd    *cobra.Command
}

// NewRootCmd creates the root Cobra command for the fundamentals CLI.
func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "fundamentals",
		Short:         "Fetch and cache equity fundamentals",
		Long:          "fundamentals fetches earnings, valuation, revenue and cash flow data per ticker, caching every response on disk under a freshness policy.",
		Version:       version,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default is ./config.yaml or $HOME/.fundamentals/config.yaml)")
	pf.Var(&flags.maxAge, "max-age", `cache freshness in days, 0 to always refetch, or "preserve" to never expire (default per data kind)`)
	pf.String("cache-dir", "", "cache directory")
	pf.Int("chunk-size", pipeline.DefaultChunkSize, "identifiers fetched between pauses")
	pf.Duration("chunk-pause", pipeline.DefaultChunkPause, "pause between chunks that reached upstream")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVarP(&flags.output, "output", "o", string(render.FormatTable), "output format (table, json, yaml)")
	pf.IntVar(&flags.limit, "limit", 0, "maximum rows to print, 0 for all")

	cmd.AddCommand(
		newFetchCmd(flags, fetcher.KindEarnings),
		newFetchCmd(flags, fetcher.KindValuation),
		newFetchCmd(flags, fetcher.KindRevenue),
		newFetchCmd(flags, fetcher.KindCashFlow),
		newBeatRatioCmd(flags),
		newScreenCmd(flags),
		newCacheCmd(flags),
	)

	return cmd
}

const rootCmdExample = `  # Quarterly EPS history, refreshed once a day
  fundamentals earnings AAPL MSFT

  # Valuation snapshot, reusing whatever is cached
  fundamentals valuation AAPL MSFT --max-age preserve

  # Tickers beating estimates in at least 80% of the last 20 quarters
  fundamentals beat-ratio AAPL MSFT GOOGL --threshold 80

  # Rank by price to sales ratio
  fundamentals screen AAPL MSFT GOOGL --key PSR

  # Show cached entries
  fundamentals cache ls`

// newApp loads configuration and builds the logger and cache store for cmd
func newApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: flags.configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Out: cmd.ErrOrStderr()})

	store := cache.NewDiskStore(cfg.CacheDir).
		WithLogger(logging.Component(logger, "cache"))

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		flags:  flags,
		cmd:    cmd,
	}, nil
}

// pipeline builds the fetch pipeline against the configured upstream
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	limiter := ratelimit.New()
	limiter.Set(ratelimit.APIAlphaVantage, ratelimit.PerMinute(a.cfg.RequestsPerMinute), 1)

	client := alphavantage.NewClient(a.cfg.AlphavantageAPIKey, a.cfg.AlphavantageBaseURL, alphavantage.Options{
		Limiter:    limiter,
		RetryCount: a.cfg.RetryCount,
		Timeout:    a.cfg.Timeout,
		Logger:     logging.Component(a.logger, "alphavantage"),
	})

	return pipeline.New(a.store, client, pipeline.Config{
		ChunkSize:  a.cfg.ChunkSize,
		ChunkPause: a.cfg.ChunkPause,
	}, a.logger), nil
}

// maxAge returns the --max-age flag when given, else the configured policy for kind
func (a *app) maxAge(kind fetcher.Kind) cache.MaxAge {
	if a.cmd.Flags().Changed("max-age") {
		return a.flags.maxAge
	}
	return a.cfg.MaxAgeFor(kind)
}

// fetchAll runs the pipeline for kind and logs every skipped identifier
func (a *app) fetchAll(ctx context.Context, kind fetcher.Kind, identifiers []string) (*table.Table, error) {
	p, err := a.pipeline()
	if err != nil {
		return nil, err
	}

	result, err := p.FetchAll(ctx, kind, a.maxAge(kind), identifiers...)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", kind, err)
	}

	for _, failed := range result.Failed() {
		a.logger.Warn().
			Str("identifier", failed.Identifier).
			Str("reason", string(fetcher.TypeOf(failed.Error))).
			Err(failed.Error).
			Msg("skipped")
	}
	return result.Table, nil
}

// write renders t to the command output in the selected format
func (a *app) write(t *table.Table) error {
	format, err := render.ParseFormat(a.flags.output)
	if err != nil {
		return err
	}
	out := a.cmd.OutOrStdout()
	return render.Write(out, t, render.Options{
		Format: format,
		Limit:  a.flags.limit,
		Styled: isTerminal(out),
	})
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

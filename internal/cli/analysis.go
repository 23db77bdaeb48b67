package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fundamentals/internal/analysis"
	"fundamentals/internal/fetcher"
)

// Beat ratio defaults
const (
	defaultBeatThreshold   = 80
	defaultBeatMinQuarters = 4
)

func newBeatRatioCmd(flags *rootFlags) *cobra.Command {
	opts := analysis.BeatOptions{}

	cmd := &cobra.Command{
		Use:   "beat-ratio TICKER...",
		Short: "Rank tickers by how often reported EPS met or beat the estimate",
		Example: `  # Beat ratio over the last 20 quarters, no filtering
  fundamentals beat-ratio AAPL MSFT --threshold 0 --min-quarters 0

  # Tickers beating in at least 90% of the last 12 quarters
  fundamentals beat-ratio AAPL MSFT GOOGL --last 12 --threshold 90`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Threshold < 0 || opts.Threshold > 100 {
				return fmt.Errorf("threshold must be between 0 and 100, got %g", opts.Threshold)
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			t, err := a.fetchAll(cmd.Context(), fetcher.KindEarnings, args)
			if err != nil {
				return err
			}

			stats, err := analysis.BeatRatio(t, opts)
			if err != nil {
				return err
			}
			return a.write(analysis.BeatTable(stats))
		},
	}

	cmd.Flags().IntVar(&opts.Last, "last", analysis.DefaultLastQuarters, "number of most recent quarters considered")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", defaultBeatThreshold, "minimum beat ratio in percent, 0 to disable")
	cmd.Flags().IntVar(&opts.MinQuarters, "min-quarters", defaultBeatMinQuarters, "minimum number of quarters with data, applied with --threshold")

	return cmd
}

func newScreenCmd(flags *rootFlags) *cobra.Command {
	var (
		key       string
		ascending bool
	)

	cmd := &cobra.Command{
		Use:   "screen TICKER...",
		Short: "Rank tickers by a valuation metric",
		Long: fmt.Sprintf("Rank tickers by a valuation metric. Keys: %s.",
			strings.Join(analysis.ScreenKeys, ", ")),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			t, err := a.fetchAll(cmd.Context(), fetcher.KindValuation, args)
			if err != nil {
				return err
			}

			rows, err := analysis.Screen(t, key, ascending)
			if err != nil {
				return err
			}
			return a.write(analysis.ScreenTable(rows))
		},
	}

	cmd.Flags().StringVar(&key, "key", analysis.DefaultScreenKey, "ranking key")
	cmd.Flags().BoolVar(&ascending, "ascending", false, "sort ascending instead of descending")

	return cmd
}

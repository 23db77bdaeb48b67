package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fundamentals/internal/analysis"
	"fundamentals/internal/fetcher"
	"fundamentals/internal/normalize"
	"fundamentals/internal/table"
)

var kindShort = map[fetcher.Kind]string{
	fetcher.KindEarnings:  "Quarterly EPS history with estimates and surprises",
	fetcher.KindValuation: "Valuation snapshot (market cap, ratios, margins)",
	fetcher.KindRevenue:   "Annual and quarterly income statement figures",
	fetcher.KindCashFlow:  "Annual and quarterly operating, investing and financing cash flows",
}

// newFetchCmd creates the command printing the aggregated table of kind
func newFetchCmd(flags *rootFlags, kind fetcher.Kind) *cobra.Command {
	var (
		wide bool
		term string
	)

	cmd := &cobra.Command{
		Use:   string(kind) + " TICKER...",
		Short: kindShort[kind],
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			t, err := a.fetchAll(cmd.Context(), kind, args)
			if err != nil {
				return err
			}

			switch {
			case kind == fetcher.KindValuation && wide:
				if t, err = analysis.Pivot(t); err != nil {
					return err
				}
			case term != "":
				if t, err = filterTerm(t, term); err != nil {
					return err
				}
			}

			return a.write(t)
		},
	}

	switch kind {
	case fetcher.KindValuation:
		cmd.Flags().BoolVar(&wide, "wide", false, "one row per ticker with a column per metric")
	case fetcher.KindRevenue, fetcher.KindCashFlow:
		cmd.Flags().StringVar(&term, "term", "", "only annual or quarterly reports")
	}

	return cmd
}

// filterTerm keeps the statement rows reported for term
func filterTerm(t *table.Table, term string) (*table.Table, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term != normalize.TermAnnual && term != normalize.TermQuarterly {
		return nil, fmt.Errorf("unknown term %q, want %s or %s", term, normalize.TermAnnual, normalize.TermQuarterly)
	}

	out := table.New(t.Columns...)
	for i, row := range t.Rows {
		if v, _ := t.Value(i, normalize.ColumnTerm); v == term {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

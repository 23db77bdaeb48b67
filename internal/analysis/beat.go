// Package analysis derives rankings from aggregated fundamentals tables.
package analysis

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"fundamentals/internal/normalize"
	"fundamentals/internal/table"
)

// DefaultLastQuarters is the number of recent quarters a beat ratio looks at
const DefaultLastQuarters = 20

var hundred = decimal.NewFromInt(100)

// BeatOptions controls BeatRatio
type BeatOptions struct {
	// Last is the number of most recent quarters per ticker; zero means DefaultLastQuarters
	Last int
	// Threshold keeps only tickers whose ratio is at least this percentage; zero disables it
	Threshold float64
	// MinQuarters keeps only tickers with at least this many evaluated quarters.
	// It is part of the threshold filter and ignored when Threshold is zero.
	MinQuarters int
}

// BeatStat is the EPS beat record of one ticker
type BeatStat struct {
	Ticker string
	// Ratio is the share of beating quarters in percent
	Ratio decimal.Decimal
	Beat  int
	Count int
}

type quarter struct {
	date string
	pct  decimal.Decimal
}

// BeatRatio computes, per ticker, how often reported EPS met or beat the estimate
// over the last quarters of an earnings table. Quarters without a surprise
// percentage are ignored. Results are sorted by ratio descending, then ticker.
func BeatRatio(t *table.Table, opts BeatOptions) ([]BeatStat, error) {
	if t.Empty() {
		return nil, nil
	}
	for _, col := range []string{normalize.ColumnDate, normalize.ColumnEPSSurprisePct} {
		if t.Index(col) < 0 {
			return nil, fmt.Errorf("earnings table has no %q column", col)
		}
	}

	last := opts.Last
	if last <= 0 {
		last = DefaultLastQuarters
	}

	byTicker := make(map[string][]quarter)
	for i, row := range t.Rows {
		date, _ := t.Value(i, normalize.ColumnDate)
		raw, _ := t.Value(i, normalize.ColumnEPSSurprisePct)
		pct, ok := normalize.ParseNumber(raw)
		if date == "" || !ok {
			continue
		}
		byTicker[row.Ticker] = append(byTicker[row.Ticker], quarter{date: date, pct: pct})
	}

	threshold := decimal.NewFromFloat(opts.Threshold)
	var out []BeatStat
	for ticker, quarters := range byTicker {
		sort.SliceStable(quarters, func(i, j int) bool { return quarters[i].date < quarters[j].date })
		if len(quarters) > last {
			quarters = quarters[len(quarters)-last:]
		}

		stat := BeatStat{Ticker: ticker, Count: len(quarters)}
		for _, q := range quarters {
			if !q.pct.IsNegative() {
				stat.Beat++
			}
		}
		stat.Ratio = decimal.NewFromInt(int64(stat.Beat)).
			Div(decimal.NewFromInt(int64(stat.Count))).
			Mul(hundred).
			Round(2)

		if opts.Threshold > 0 && (stat.Ratio.LessThan(threshold) || stat.Count < opts.MinQuarters) {
			continue
		}
		out = append(out, stat)
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Ratio.Cmp(out[j].Ratio); c != 0 {
			return c > 0
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

// BeatTable lays stats out as a table for rendering
func BeatTable(stats []BeatStat) *table.Table {
	out := table.New("beat_ratio", "beat", "count")
	for _, s := range stats {
		_ = out.Append(s.Ticker, s.Ratio.StringFixed(1), strconv.Itoa(s.Beat), strconv.Itoa(s.Count))
	}
	return out
}

// Package normalize turns raw upstream JSON into fixed-shape tables.
//
// Upstream field names drift, so every column is located by matching the
// normalized key (lower-case, letters and digits only) against a list of
// candidates: exact matches first, then substring matches. The matched value
// is then validated against the column type, and a record whose required
// columns are missing or invalid is dropped on its own.
package normalize

import (
	"fmt"

	"fundamentals/internal/fetcher"
	"fundamentals/internal/table"
)

// Stats describes one normalization run
type Stats struct {
	// Records is the number of raw records seen
	Records int
	// Dropped is the number of records removed for missing or invalid required fields
	Dropped int
	// LastError is the reason the most recent record was dropped
	LastError error
	// Unmatched lists required columns that no record provided at all,
	// which usually means the upstream schema changed
	Unmatched []string
}

// Func normalizes the raw response for ticker. The returned table is never nil.
type Func func(ticker string, raw []byte) (*table.Table, Stats)

// For returns the normalizer for kind
func For(kind fetcher.Kind) (Func, error) {
	switch kind {
	case fetcher.KindEarnings:
		return Earnings, nil
	case fetcher.KindValuation:
		return Valuation, nil
	case fetcher.KindRevenue:
		return Revenue, nil
	case fetcher.KindCashFlow:
		return CashFlow, nil
	default:
		return nil, fmt.Errorf("no normalizer for data kind %q", kind)
	}
}

// Columns returns the fixed columns produced for kind
func Columns(kind fetcher.Kind) []string {
	switch kind {
	case fetcher.KindEarnings:
		return columnNames(earningsColumns)
	case fetcher.KindValuation:
		return []string{ColumnMetric, ColumnValue}
	case fetcher.KindRevenue:
		return statementColumns(revenueColumns)
	case fetcher.KindCashFlow:
		return statementColumns(cashFlowColumns)
	default:
		return nil
	}
}

func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

package table

import (
	"fmt"
	"strings"
)

// Row is one normalized record. Values line up with the owning Table's Columns.
type Row struct {
	Ticker string   `json:"ticker" yaml:"ticker"`
	Values []string `json:"values" yaml:"values"`
}

// Table is a flat, column-named set of rows tagged with the identifier they came from.
type Table struct {
	Columns []string `json:"columns" yaml:"columns"`
	Rows    []Row    `json:"rows" yaml:"rows"`
}

// New creates an empty table with the given columns
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Append adds a row for ticker. The number of values must match the columns.
func (t *Table) Append(ticker string, values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row for %s has %d values, table has %d columns", ticker, len(values), len(t.Columns))
	}
	vals := make([]string, len(values))
	copy(vals, values)
	t.Rows = append(t.Rows, Row{Ticker: ticker, Values: vals})
	return nil
}

// Validate checks every row has one value per column
func (t *Table) Validate() error {
	if t == nil {
		return nil
	}
	for i, r := range t.Rows {
		if len(r.Values) != len(t.Columns) {
			return fmt.Errorf("row %d for %s has %d values, table has %d columns", i, r.Ticker, len(r.Values), len(t.Columns))
		}
	}
	return nil
}

// Index returns the position of the named column, or -1
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the value of column in row i. ok is false when the column is unknown.
func (t *Table) Value(i int, column string) (string, bool) {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) || idx >= len(t.Rows[i].Values) {
		return "", false
	}
	return t.Rows[i].Values[idx], true
}

// ColumnsMatching returns every column whose name contains substr.
// Matching is case-sensitive, the way upstream header names are compared.
func (t *Table) ColumnsMatching(substr string) []string {
	var out []string
	for _, c := range t.Columns {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

// Tickers returns the distinct tickers in first-seen order
func (t *Table) Tickers() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Rows {
		if _, ok := seen[r.Ticker]; ok {
			continue
		}
		seen[r.Ticker] = struct{}{}
		out = append(out, r.Ticker)
	}
	return out
}

// Filter returns a new table holding only the rows of ticker
func (t *Table) Filter(ticker string) *Table {
	out := New(t.Columns...)
	for _, r := range t.Rows {
		if r.Ticker == ticker {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

package table

import (
	"fmt"
	"slices"
)

// Accumulator collects per-identifier tables into one aggregate.
// Rows are appended in the order tables are added.
type Accumulator struct {
	columns []string
	rows    []Row
}

// NewAccumulator creates an accumulator for tables with the given columns.
// When no columns are given, the first non-empty table added fixes them.
func NewAccumulator(columns ...string) *Accumulator {
	return &Accumulator{columns: slices.Clone(columns)}
}

// Add appends the rows of t. Empty or nil tables are ignored, and a table
// with a row that does not fit its columns is rejected whole.
func (a *Accumulator) Add(t *Table) error {
	if t.Empty() {
		return nil
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if a.columns == nil {
		a.columns = slices.Clone(t.Columns)
	}
	if !slices.Equal(a.columns, t.Columns) {
		return fmt.Errorf("column mismatch: have %v, got %v", a.columns, t.Columns)
	}
	a.rows = append(a.rows, t.Rows...)
	return nil
}

// Len returns the number of accumulated rows
func (a *Accumulator) Len() int {
	return len(a.rows)
}

// Table returns the aggregate. It never returns nil.
func (a *Accumulator) Table() *Table {
	return &Table{
		Columns: slices.Clone(a.columns),
		Rows:    slices.Clone(a.rows),
	}
}

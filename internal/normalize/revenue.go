package normalize

import (
	"github.com/tidwall/gjson"

	"fundamentals/internal/table"
)

// Revenue columns
const (
	ColumnPeriod          = "period"
	ColumnTerm            = "term"
	ColumnTotalRevenue    = "total_revenue"
	ColumnGrossProfit     = "gross_profit"
	ColumnOperatingIncome = "operating_income"
	ColumnNetIncome       = "net_income"
)

// Report terms
const (
	TermAnnual    = "annual"
	TermQuarterly = "quarterly"
)

var periodColumn = column{name: ColumnPeriod, candidates: []string{"fiscaldateending", "enddate", "period", "date"}, typ: typeDate, required: true}

var revenueColumns = []column{
	periodColumn,
	{name: ColumnTotalRevenue, candidates: []string{"totalrevenue", "revenue", "sales"}, exclude: []string{"cost", "growth", "pershare"}, typ: typeNumber, required: true},
	{name: ColumnGrossProfit, candidates: []string{"grossprofit"}, typ: typeNumber},
	{name: ColumnOperatingIncome, candidates: []string{"operatingincome"}, exclude: []string{"non"}, typ: typeNumber},
	{name: ColumnNetIncome, candidates: []string{"netincome"}, exclude: []string{"continuing", "applicable"}, typ: typeNumber},
}

// reportSets maps the term of a report list to the keys it appears under
var reportSets = []struct {
	term       string
	candidates []string
}{
	{term: TermAnnual, candidates: []string{"annualreports", "annual", "yearly"}},
	{term: TermQuarterly, candidates: []string{"quarterlyreports", "quarterly"}},
}

// Revenue normalizes an income statement response into one row per reported
// period. Annual reports come first, then quarterly reports, each in upstream order.
func Revenue(ticker string, raw []byte) (*table.Table, Stats) {
	return statements(ticker, raw, revenueColumns)
}

// statementColumns returns the output columns of a statement: period, term, then the rest
func statementColumns(cols []column) []string {
	names := columnNames(cols)
	return append([]string{names[0], ColumnTerm}, names[1:]...)
}

// statements reads the annual and quarterly report lists of a financial
// statement. cols must start with the period column.
func statements(ticker string, raw []byte, cols []column) (*table.Table, Stats) {
	out := table.New(statementColumns(cols)...)
	var stats Stats

	doc := gjson.ParseBytes(raw)
	seen := make(map[string]bool)

	for _, set := range reportSets {
		// a bare list carries no term and is read as annual
		if doc.IsArray() && set.term != TermAnnual {
			break
		}
		reports := findArray(doc, set.candidates...)
		reports.ForEach(func(_, rec gjson.Result) bool {
			stats.Records++
			values, err := extract(rec, cols, seen)
			if err != nil {
				stats.Dropped++
				stats.LastError = err
				return true
			}
			row := make([]string, 0, len(values)+1)
			row = append(row, values[0], set.term)
			row = append(row, values[1:]...)
			_ = out.Append(ticker, row...)
			return true
		})
	}

	if stats.Records > 0 {
		stats.Unmatched = unmatched(cols, seen)
	}
	return out, stats
}

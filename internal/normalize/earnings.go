package normalize

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"fundamentals/internal/table"
)

// Earnings columns
const (
	ColumnDate           = "date"
	ColumnReportedDate   = "reported_date"
	ColumnEPSActual      = "eps_actual"
	ColumnEPSEstimate    = "eps_estimate"
	ColumnEPSSurprise    = "eps_surprise"
	ColumnEPSSurprisePct = "eps_surprise_pct"
)

var earningsColumns = []column{
	{name: ColumnDate, candidates: []string{"fiscaldateending", "startdatetime", "fiscaldate", "quarter"}, typ: typeDate, required: true},
	{name: ColumnReportedDate, candidates: []string{"reporteddate", "announcedate"}, typ: typeDate},
	{name: ColumnEPSActual, candidates: []string{"reportedeps", "epsactual", "actualeps", "actual"}, typ: typeNumber, required: true},
	{name: ColumnEPSEstimate, candidates: []string{"estimatedeps", "epsestimate", "estimate"}, typ: typeNumber, required: true},
	{name: ColumnEPSSurprise, candidates: []string{"surprise", "epssurprise"}, exclude: []string{"percent", "pct"}, typ: typeNumber},
	{name: ColumnEPSSurprisePct, candidates: []string{"surprisepercentage", "epssurprisepct", "surprisepercent", "surprisepct"}, typ: typeNumber},
}

var hundred = decimal.NewFromInt(100)

// Earnings normalizes an EPS history response into one row per quarter.
// Surprise values missing upstream are derived from actual and estimate.
func Earnings(ticker string, raw []byte) (*table.Table, Stats) {
	out := table.New(columnNames(earningsColumns)...)
	var stats Stats

	records := findArray(gjson.ParseBytes(raw), "quarterlyearnings", "earningshistory", "quarterly")
	seen := make(map[string]bool)

	records.ForEach(func(_, rec gjson.Result) bool {
		stats.Records++
		values, err := extract(rec, earningsColumns, seen)
		if err != nil {
			stats.Dropped++
			stats.LastError = err
			return true
		}
		deriveSurprise(values)
		_ = out.Append(ticker, values...)
		return true
	})

	if stats.Records > 0 {
		stats.Unmatched = unmatched(earningsColumns, seen)
	}
	return out, stats
}

// deriveSurprise fills eps_surprise and eps_surprise_pct from actual and estimate when absent
func deriveSurprise(values []string) {
	const (
		actualIdx = 2
		estIdx    = 3
		surIdx    = 4
		pctIdx    = 5
	)
	actual, _ := decimal.NewFromString(values[actualIdx])
	estimate, _ := decimal.NewFromString(values[estIdx])

	if values[surIdx] == "" {
		values[surIdx] = actual.Sub(estimate).String()
	}
	if values[pctIdx] == "" && !estimate.IsZero() {
		surprise, _ := decimal.NewFromString(values[surIdx])
		values[pctIdx] = surprise.Div(estimate.Abs()).Mul(hundred).Round(2).String()
	}
}

package analysis

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fundamentals/internal/normalize"
	"fundamentals/internal/table"
)

// Screen keys
const (
	KeyPSR = "PSR"
	KeyPBR = "PBR"
	KeyPER = "PER"
	KeyEPS = "EPS"
	KeyCAP = "CAP"
	KeyQRG = "QRG"
	KeyQEG = "QEG"
	KeyROE = "ROE"
)

// DefaultScreenKey is the ranking key used when none is given
const DefaultScreenKey = KeyPSR

// ScreenKeys lists the accepted ranking keys
var ScreenKeys = []string{KeyPSR, KeyPBR, KeyPER, KeyEPS, KeyCAP, KeyQRG, KeyQEG, KeyROE}

// keyMetric maps a ranking key to the metric name fragment it ranks on
var keyMetric = map[string]string{
	KeyPSR: "PriceToSales",
	KeyPBR: "PriceToBook",
	KeyPER: "PERatio",
	KeyEPS: normalize.MetricEPS,
	KeyCAP: "MarketCap",
	KeyQRG: "QuarterlyRevenueGrowth",
	KeyQEG: "QuarterlyEarningsGrowth",
	KeyROE: "ReturnOnEquity",
}

// ScreenRow is one ticker of a valuation screen. Missing metrics are invalid NullDecimals.
type ScreenRow struct {
	Ticker    string
	Name      string
	MarketCap decimal.NullDecimal
	Price     decimal.NullDecimal
	Target    decimal.NullDecimal
	PSR       decimal.NullDecimal
	PER       decimal.NullDecimal
	PBR       decimal.NullDecimal
	EPS       decimal.NullDecimal
	ROE       decimal.NullDecimal
	QRG       decimal.NullDecimal
	QEG       decimal.NullDecimal
	// OCFMargin is operating cash flow over revenue
	OCFMargin decimal.NullDecimal
}

// Key returns the value ranked by key
func (r ScreenRow) Key(key string) decimal.NullDecimal {
	switch key {
	case KeyPSR:
		return r.PSR
	case KeyPBR:
		return r.PBR
	case KeyPER:
		return r.PER
	case KeyEPS:
		return r.EPS
	case KeyCAP:
		return r.MarketCap
	case KeyQRG:
		return r.QRG
	case KeyQEG:
		return r.QEG
	case KeyROE:
		return r.ROE
	default:
		return decimal.NullDecimal{}
	}
}

// Pivot turns a long (metric, value) valuation table into one row per ticker
// with one column per metric. Columns are sorted; missing cells are empty.
func Pivot(t *table.Table) (*table.Table, error) {
	if t.Empty() {
		return table.New(), nil
	}
	mi, vi := t.Index(normalize.ColumnMetric), t.Index(normalize.ColumnValue)
	if mi < 0 || vi < 0 {
		return nil, fmt.Errorf("valuation table needs %q and %q columns", normalize.ColumnMetric, normalize.ColumnValue)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	cells := make(map[string]map[string]string)
	var metrics []string
	for _, row := range t.Rows {
		metric, value := row.Values[mi], row.Values[vi]
		if !slices.Contains(metrics, metric) {
			metrics = append(metrics, metric)
		}
		if cells[row.Ticker] == nil {
			cells[row.Ticker] = make(map[string]string)
		}
		cells[row.Ticker][metric] = value
	}
	sort.Strings(metrics)

	out := table.New(metrics...)
	for _, ticker := range t.Tickers() {
		values := make([]string, len(metrics))
		for i, m := range metrics {
			values[i] = cells[ticker][m]
		}
		if err := out.Append(ticker, values...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Screen ranks the tickers of a valuation table by key. Tickers lacking the
// key metric sort last, in ticker order.
func Screen(t *table.Table, key string, ascending bool) ([]ScreenRow, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		key = DefaultScreenKey
	}
	if _, ok := keyMetric[key]; !ok {
		return nil, fmt.Errorf("unknown screen key %q, want one of %s", key, strings.Join(ScreenKeys, ", "))
	}

	wide, err := Pivot(t)
	if err != nil {
		return nil, err
	}

	rows := make([]ScreenRow, 0, wide.Len())
	for i, row := range wide.Rows {
		get := func(fragment string) decimal.NullDecimal {
			return number(wide, i, fragment)
		}
		sr := ScreenRow{
			Ticker:    row.Ticker,
			MarketCap: get(keyMetric[KeyCAP]),
			Price:     get("PreviousClose"),
			Target:    get("TargetPrice"),
			PSR:       get(keyMetric[KeyPSR]),
			PER:       get(keyMetric[KeyPER]),
			PBR:       get(keyMetric[KeyPBR]),
			EPS:       get(keyMetric[KeyEPS]),
			ROE:       get(keyMetric[KeyROE]),
			QRG:       get(keyMetric[KeyQRG]),
			QEG:       get(keyMetric[KeyQEG]),
		}
		if cols := wide.ColumnsMatching(normalize.MetricName); len(cols) > 0 {
			sr.Name, _ = wide.Value(i, cols[0])
		}
		ocf, revenue := get("OperatingCashflow"), get(normalize.MetricRevenue)
		if ocf.Valid && revenue.Valid && !revenue.Decimal.IsZero() {
			sr.OCFMargin = decimal.NewNullDecimal(ocf.Decimal.Div(revenue.Decimal).Round(4))
		}
		rows = append(rows, sr)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Key(key), rows[j].Key(key)
		switch {
		case a.Valid && !b.Valid:
			return true
		case !a.Valid && b.Valid:
			return false
		case a.Valid && b.Valid:
			if c := a.Decimal.Cmp(b.Decimal); c != 0 {
				return (c < 0) == ascending
			}
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	return rows, nil
}

// number reads the first column of row i whose name contains fragment
func number(t *table.Table, i int, fragment string) decimal.NullDecimal {
	for _, col := range t.ColumnsMatching(fragment) {
		v, _ := t.Value(i, col)
		if d, ok := normalize.ParseNumber(v); ok {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

// ScreenTable lays screen rows out as a table for rendering
func ScreenTable(rows []ScreenRow) *table.Table {
	out := table.New("name", "market_cap", "price", "target", "psr", "per", "pbr", "eps", "roe", "qrg", "qeg", "ocf_margin")
	for _, r := range rows {
		_ = out.Append(r.Ticker,
			r.Name,
			format(r.MarketCap, 0),
			format(r.Price, 2),
			format(r.Target, 2),
			format(r.PSR, 2),
			format(r.PER, 2),
			format(r.PBR, 2),
			format(r.EPS, 2),
			format(r.ROE, 4),
			format(r.QRG, 4),
			format(r.QEG, 4),
			format(r.OCFMargin, 4),
		)
	}
	return out
}

func format(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(places)
}

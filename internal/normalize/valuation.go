package normalize

import (
	"sort"

	"github.com/tidwall/gjson"

	"fundamentals/internal/fetcher"
	"fundamentals/internal/table"
)

// Valuation columns
const (
	ColumnMetric = "metric"
	ColumnValue  = "value"
)

// Valuation metric names
const (
	MetricName                 = "Name"
	MetricSector               = "Sector"
	MetricMarketCap            = "MarketCapitalization"
	MetricPERatio              = "PERatio"
	MetricForwardPE            = "ForwardPE"
	MetricPEGRatio             = "PEGRatio"
	MetricPriceToSales         = "PriceToSalesRatioTTM"
	MetricPriceToBook          = "PriceToBookRatio"
	MetricEPS                  = "EPS"
	MetricAnalystTargetPrice   = "AnalystTargetPrice"
	MetricProfitMargin         = "ProfitMargin"
	MetricOperatingMargin      = "OperatingMarginTTM"
	MetricReturnOnEquity       = "ReturnOnEquityTTM"
	MetricReturnOnAssets       = "ReturnOnAssetsTTM"
	MetricRevenue              = "RevenueTTM"
	MetricGrossProfit          = "GrossProfitTTM"
	MetricQuarterlyRevGrowth   = "QuarterlyRevenueGrowthYOY"
	MetricQuarterlyEarnGrowth  = "QuarterlyEarningsGrowthYOY"
	MetricDividendYield        = "DividendYield"
	MetricBeta                 = "Beta"
	MetricWeekHigh52           = "52WeekHigh"
	MetricWeekLow52            = "52WeekLow"
	MetricEVToRevenue          = "EVToRevenue"
	MetricEVToEBITDA           = "EVToEBITDA"
	MetricPreviousClose        = "PreviousClose"
	MetricBookValuePerShare    = "BookValue"
	MetricOperatingCashFlowTTM = "OperatingCashflowTTM"
)

// valuationMetrics is the fixed set of metrics kept from a valuation snapshot
var valuationMetrics = []column{
	{name: MetricName, candidates: []string{"name", "companyshortname", "shortname"}, typ: typeText},
	{name: MetricSector, candidates: []string{"sector"}, typ: typeText},
	{name: MetricMarketCap, candidates: []string{"marketcapitalization", "marketcap"}, typ: typeNumber},
	{name: MetricPERatio, candidates: []string{"peratio", "trailingpe", "peratiottm"}, typ: typeNumber},
	{name: MetricForwardPE, candidates: []string{"forwardpe"}, typ: typeNumber},
	{name: MetricPEGRatio, candidates: []string{"pegratio"}, typ: typeNumber},
	{name: MetricPriceToSales, candidates: []string{"pricetosalesratiottm", "pricetosales", "pricesales"}, typ: typeNumber},
	{name: MetricPriceToBook, candidates: []string{"pricetobookratio", "pricetobook", "pricebook"}, typ: typeNumber},
	{name: MetricEPS, candidates: []string{"eps", "epsttm", "dilutedepsttm"}, typ: typeNumber},
	{name: MetricAnalystTargetPrice, candidates: []string{"analysttargetprice", "targetprice", "1ytargetest"}, typ: typeNumber},
	{name: MetricProfitMargin, candidates: []string{"profitmargin"}, typ: typeNumber},
	{name: MetricOperatingMargin, candidates: []string{"operatingmarginttm", "operatingmargin"}, typ: typeNumber},
	{name: MetricReturnOnEquity, candidates: []string{"returnonequityttm", "returnonequity"}, typ: typeNumber},
	{name: MetricReturnOnAssets, candidates: []string{"returnonassetsttm", "returnonassets"}, typ: typeNumber},
	{name: MetricRevenue, candidates: []string{"revenuettm"}, exclude: []string{"pershare"}, typ: typeNumber},
	{name: MetricGrossProfit, candidates: []string{"grossprofitttm", "grossprofit"}, typ: typeNumber},
	{name: MetricQuarterlyRevGrowth, candidates: []string{"quarterlyrevenuegrowthyoy", "quarterlyrevenuegrowth"}, typ: typeNumber},
	{name: MetricQuarterlyEarnGrowth, candidates: []string{"quarterlyearningsgrowthyoy", "quarterlyearningsgrowth"}, typ: typeNumber},
	{name: MetricDividendYield, candidates: []string{"dividendyield"}, exclude: []string{"average", "trailing"}, typ: typeNumber},
	{name: MetricBeta, candidates: []string{"beta"}, typ: typeNumber},
	{name: MetricWeekHigh52, candidates: []string{"52weekhigh"}, typ: typeNumber},
	{name: MetricWeekLow52, candidates: []string{"52weeklow"}, typ: typeNumber},
	{name: MetricEVToRevenue, candidates: []string{"evtorevenue", "enterprisevaluerevenue"}, typ: typeNumber},
	{name: MetricEVToEBITDA, candidates: []string{"evtoebitda", "enterprisevalueebitda"}, typ: typeNumber},
	{name: MetricPreviousClose, candidates: []string{"previousclose"}, typ: typeNumber},
	{name: MetricBookValuePerShare, candidates: []string{"bookvalue", "bookvaluepershare"}, typ: typeNumber},
	{name: MetricOperatingCashFlowTTM, candidates: []string{"operatingcashflowttm", "operatingcashflow"}, typ: typeNumber},
}

// Valuation normalizes a flat valuation snapshot into long form: one
// (metric, value) row per known metric, sorted by metric name. Metrics that
// are absent are skipped; metrics present with an invalid value count as dropped.
func Valuation(ticker string, raw []byte) (*table.Table, Stats) {
	out := table.New(ColumnMetric, ColumnValue)
	var stats Stats

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return out, stats
	}

	type row struct{ metric, value string }
	var rows []row
	for _, col := range valuationMetrics {
		v, ok := lookup(doc, col)
		if !ok {
			continue
		}
		stats.Records++
		text, valid := canonical(v, col.typ)
		if !valid {
			stats.Dropped++
			stats.LastError = fetcher.NewMalformedRecordError(col.name)
			continue
		}
		rows = append(rows, row{metric: col.name, value: text})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].metric < rows[j].metric })
	for _, r := range rows {
		_ = out.Append(ticker, r.metric, r.value)
	}

	return out, stats
}

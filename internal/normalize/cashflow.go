package normalize

import (
	"fundamentals/internal/table"
)

// Cash flow columns
const (
	ColumnOperatingCashFlow   = "operating_cashflow"
	ColumnInvestingCashFlow   = "investing_cashflow"
	ColumnFinancingCashFlow   = "financing_cashflow"
	ColumnCapitalExpenditures = "capital_expenditures"
)

var cashFlowColumns = []column{
	periodColumn,
	{
		name:       ColumnOperatingCashFlow,
		candidates: []string{"operatingcashflow", "totalcashfromoperatingactivities", "cashflowfromoperations", "operatingactivities"},
		exclude:    []string{"payments", "proceeds", "change"},
		typ:        typeNumber,
		required:   true,
	},
	{
		name:       ColumnInvestingCashFlow,
		candidates: []string{"cashflowfrominvestment", "totalcashflowsfrominvestingactivities", "investingcashflow", "investingactivities"},
		exclude:    []string{"other"},
		typ:        typeNumber,
	},
	{
		name:       ColumnFinancingCashFlow,
		candidates: []string{"cashflowfromfinancing", "totalcashfromfinancingactivities", "financingcashflow", "financingactivities"},
		exclude:    []string{"other"},
		typ:        typeNumber,
	},
	{name: ColumnCapitalExpenditures, candidates: []string{"capitalexpenditures", "capex"}, typ: typeNumber},
	{name: ColumnNetIncome, candidates: []string{"netincome"}, exclude: []string{"continuing", "applicable"}, typ: typeNumber},
}

// CashFlow normalizes a cash flow statement into one row per reported period,
// annual reports first. Operating cash flow is required.
func CashFlow(ticker string, raw []byte) (*table.Table, Stats) {
	return statements(ticker, raw, cashFlowColumns)
}

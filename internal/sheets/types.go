package sheets

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/shopspring/decimal"
)

// Tab names written by the exporter.
const (
	TransactionsTab = "Transactions"
	SummaryTab      = "Summary"
)

// TransactionRow is one row of the Transactions tab.
type TransactionRow struct {
	Date        time.Time
	Amount      decimal.Decimal
	ID          string
	Description string
	Category    string
}

// CategoryRow is one row of the category breakdown on the Summary tab.
type CategoryRow struct {
	Category string
	Amount   decimal.Decimal
	Share    decimal.Decimal // Percent of total spend, 1 dp
	Count    int
}

// transactionRows returns the ledger newest first. Same-day entries keep ledger order.
func transactionRows(txns []model.Transaction) []TransactionRow {
	rows := make([]TransactionRow, len(txns))
	for i, t := range txns {
		rows[i] = TransactionRow{
			Date:        t.Date,
			Amount:      decimal.NewFromInt(t.Amount),
			ID:          t.ID,
			Description: t.Description,
			Category:    t.Category.Title(),
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows
}

// categoryRows totals spend per category, largest first.
func categoryRows(txns []model.Transaction) []CategoryRow {
	totals := analytics.CategoryTotals(txns)
	counts := make(map[model.Category]int)
	var grand int64
	for _, t := range txns {
		counts[t.Category]++
		grand += t.Amount
	}

	rows := make([]CategoryRow, 0, len(totals))
	for _, cat := range model.Categories {
		amount, ok := totals[cat]
		if !ok {
			continue
		}
		share := decimal.Zero
		if grand > 0 {
			share = decimal.NewFromInt(amount).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(grand)).Round(1)
		}
		rows = append(rows, CategoryRow{
			Category: cat.Title(),
			Amount:   decimal.NewFromInt(amount),
			Share:    share,
			Count:    counts[cat],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Amount.GreaterThan(rows[j].Amount) })
	return rows
}

func transactionValues(txns []model.Transaction) [][]any {
	rows := transactionRows(txns)
	values := make([][]any, 0, len(rows)+1)
	values = append(values, []any{"Date", "Description", "Category", "Amount", "ID"})
	for _, r := range rows {
		values = append(values, []any{
			r.Date.Format(model.DateLayout),
			r.Description,
			r.Category,
			r.Amount.InexactFloat64(),
			r.ID,
		})
	}
	return values
}

func summaryValues(txns []model.Transaction, report *analytics.Report) [][]any {
	stats := report.Statistics
	values := [][]any{
		{"Fintrack Report", fmt.Sprintf("%s periods", report.Period)},
		{},
		{"Summary"},
		{"Total Spent", stats.Total},
		{"Transactions", stats.Count},
		{"Average", stats.Average},
		{"Periods", stats.Periods},
		{},
		{"Breakdown"},
		{"Period", "Count", "Amount"},
	}
	for _, b := range report.Buckets {
		values = append(values, []any{b.Key, b.Count, b.Total})
	}

	values = append(values, []any{}, []any{"Categories"}, []any{"Category", "Count", "Amount", "Share %"})
	for _, r := range categoryRows(txns) {
		values = append(values, []any{r.Category, r.Count, r.Amount.InexactFloat64(), r.Share.InexactFloat64()})
	}

	values = append(values, []any{}, []any{"Largest Transactions"})
	for _, v := range report.Largest {
		values = append(values, []any{v.Date, v.Description, v.Category.Title(), v.Amount})
	}

	values = append(values, []any{}, []any{"Anomalies"})
	if len(report.Anomalies) == 0 {
		values = append(values, []any{"None detected"})
	}
	for _, v := range report.Anomalies {
		values = append(values, []any{v.Date, v.Description, v.Category.Title(), v.Amount})
	}

	values = append(values, []any{}, []any{"Forecast"})
	if report.ForecastError != "" {
		values = append(values, []any{report.ForecastError})
	}
	for _, p := range report.Forecast {
		values = append(values, []any{p.Month, p.Amount, fmt.Sprintf("%.0f%%", p.Confidence*100)})
	}

	values = append(values, []any{}, []any{"Recommendations"})
	if len(report.Recommendations) == 0 {
		values = append(values, []any{"Spending is within every threshold"})
	}
	for _, r := range report.Recommendations {
		values = append(values, []any{r.Category.Title(), r.Advice, r.Spent})
	}

	return values
}

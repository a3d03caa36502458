package cli

import (
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "1,234,567", FormatAmount(1234567))
	assert.Equal(t, "1,234.50", FormatAmountFloat(1234.5))
}

func TestRenderTransactions(t *testing.T) {
	assert.Contains(t, RenderTransactions(nil), "No transactions")

	txns := []model.Transaction{
		{ID: "a", Amount: 450, Description: "Swiggy dinner", Date: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), Category: model.CategoryFood},
		{ID: "b", Amount: 12000, Description: "Rent", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Category: model.CategoryHousing},
	}
	out := RenderTransactions(txns)
	assert.Contains(t, out, "Swiggy dinner")
	assert.Contains(t, out, "2024-06-15")
	assert.Contains(t, out, "Housing")
	assert.Contains(t, out, "12,000")
}

func TestRenderReport(t *testing.T) {
	report := &analytics.Report{
		Period:     analytics.PeriodCategory,
		Buckets:    []analytics.Bucket{{Key: "food", Total: 900, Count: 2}},
		Statistics: analytics.Statistics{Total: 900, Count: 2, Average: 450, Periods: 1},
		Largest: []analytics.TransactionView{
			{ID: "a", Date: "2024-06-15", Description: "Swiggy dinner", Category: model.CategoryFood, Amount: 500},
		},
		ForecastError: "need at least 6 transactions to forecast",
	}

	out := RenderReport(report)
	assert.Contains(t, out, "Spending report (category)")
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "Swiggy dinner")
	assert.Contains(t, out, "None detected")
	assert.Contains(t, out, "need at least 6 transactions")
	assert.Contains(t, out, "within every threshold")
}

func TestRenderPredictionsAndRecommendations(t *testing.T) {
	preds := RenderPredictions([]analytics.Prediction{{Month: "2024-07", Amount: 1500, Confidence: 0.7}})
	assert.Contains(t, preds, "2024-07")
	assert.Contains(t, preds, "1,500.00")
	assert.Contains(t, preds, "70%")

	recs := RenderRecommendations([]analytics.Recommendation{
		{Category: model.CategoryShopping, Advice: "Consider cutting back on shopping", Spent: 9000, Threshold: 8000},
	})
	assert.Contains(t, recs, "Shopping:")
	assert.Contains(t, recs, "9,000")
	assert.Contains(t, recs, "8,000")
}

func TestRenderSnapshots(t *testing.T) {
	assert.Contains(t, RenderSnapshots(nil), "No snapshots")

	out := RenderSnapshots([]storage.SnapshotInfo{{
		ID:           "20240615_100000",
		CreatedAt:    time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		Transactions: 4,
		FileSize:     512,
		HasCSV:       true,
	}})
	assert.Contains(t, out, "20240615_100000")
	assert.Contains(t, out, "2024-06-15 10:00:00")
	assert.Contains(t, out, "yes")
}

func TestRenderImportResult(t *testing.T) {
	clean := RenderImportResult(ledger.ImportResult{Imported: 3})
	assert.Contains(t, clean, "Imported 3 transactions")
	assert.NotContains(t, clean, "Skipped")

	out := RenderImportResult(ledger.ImportResult{
		Imported: 2,
		Skipped:  []ledger.SkippedRow{{Source: "bank.csv", Line: 3, Reason: "invalid amount"}},
	})
	assert.Contains(t, out, "Skipped 1 rows")
	assert.Contains(t, out, "bank.csv")
	assert.Contains(t, out, "invalid amount")
}

func TestRenderToday(t *testing.T) {
	assert.Contains(t, RenderToday(100, 100000), "Spent today: 100 of 100,000")
	assert.Contains(t, RenderToday(95000, 100000), WarningIcon)
}

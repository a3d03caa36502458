package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// Analytics errors.
var (
	ErrNoTransactions   = fmt.Errorf("%w: no transactions available", common.ErrValidation)
	ErrInvalidPeriod    = fmt.Errorf("%w: invalid report period", common.ErrValidation)
	ErrInsufficientData = fmt.Errorf("%w: need at least 6 transactions to forecast", common.ErrValidation)
	ErrInvalidHorizon   = fmt.Errorf("%w: forecast horizon must be at least one month", common.ErrValidation)
)

// Period selects how report buckets are keyed.
type Period string

// Report periods.
const (
	PeriodDaily    Period = "daily"
	PeriodWeekly   Period = "weekly"
	PeriodMonthly  Period = "monthly"
	PeriodCategory Period = "category"
)

// Periods lists the supported report periods.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodCategory}

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Bucket is the total spend for one period key.
type Bucket struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
	Count int    `json:"count"`
}

// Statistics summarizes every transaction in a report.
type Statistics struct {
	Total   int64   `json:"total"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Periods int     `json:"periods"`
}

// Prediction is the forecast for one future month.
type Prediction struct {
	Month      string  `json:"month"`
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
}

// Recommendation is savings advice for a category over its threshold.
type Recommendation struct {
	Category  model.Category `json:"category"`
	Advice    string         `json:"advice"`
	Spent     int64          `json:"spent"`
	Threshold int64          `json:"threshold"`
}

// TransactionView is the serializable form of a transaction in a report.
type TransactionView struct {
	ID          string         `json:"id"`
	Date        string         `json:"date"`
	Description string         `json:"description"`
	Category    model.Category `json:"category"`
	Amount      int64          `json:"amount"`
}

// Report is the full analysis of a transaction snapshot.
type Report struct {
	Period          Period            `json:"period"`
	ForecastError   string            `json:"forecast_error,omitempty"`
	Buckets         []Bucket          `json:"buckets"`
	Largest         []TransactionView `json:"largest"`
	Anomalies       []TransactionView `json:"anomalies"`
	Forecast        []Prediction      `json:"forecast,omitempty"`
	Recommendations []Recommendation  `json:"recommendations"`
	Statistics      Statistics        `json:"statistics"`
}

// Point is one value of a time series.
type Point struct {
	Date  time.Time
	Value float64
}

func views(txns []model.Transaction) []TransactionView {
	out := make([]TransactionView, len(txns))
	for i, t := range txns {
		out[i] = TransactionView{
			ID:          t.ID,
			Date:        t.Date.Format(model.DateLayout),
			Description: t.Description,
			Category:    t.Category,
			Amount:      t.Amount,
		}
	}
	return out
}

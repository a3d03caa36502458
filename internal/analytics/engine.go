// Package analytics computes anomalies, forecasts, recommendations and
// reports from a snapshot of transactions. Nothing is cached between calls.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Veraticus/fintrack/internal/model"
)

// DefaultAnomalyThreshold is the z-score above which a transaction is unusual.
const DefaultAnomalyThreshold = 2.5

// minAnomalySample is the smallest snapshot anomaly detection runs on.
const minAnomalySample = 5

// Rule is a category spending threshold with its advice.
type Rule struct {
	Category  model.Category
	Advice    string
	Threshold int64
}

// DefaultRules returns the built-in recommendation rules.
func DefaultRules() []Rule {
	return []Rule{
		{Category: model.CategoryFood, Threshold: 10000, Advice: "Cook at home more often"},
		{Category: model.CategoryTransport, Threshold: 5000, Advice: "Use public transport"},
		{Category: model.CategoryShopping, Threshold: 8000, Advice: "Wait 24h before purchases"},
	}
}

// Engine bundles the analysis settings.
type Engine struct {
	Forecaster       Forecaster
	Rules            []Rule
	AnomalyThreshold float64
	ForecastMonths   int
}

// NewEngine returns an engine with the default settings.
func NewEngine() *Engine {
	return &Engine{
		Forecaster:       DefaultForecaster(),
		Rules:            DefaultRules(),
		AnomalyThreshold: DefaultAnomalyThreshold,
		ForecastMonths:   3,
	}
}

// DetectAnomalies returns transactions whose amount lies more than threshold
// population standard deviations from the mean, in input order.
func DetectAnomalies(txns []model.Transaction, threshold float64) []model.Transaction {
	if len(txns) < minAnomalySample {
		return nil
	}

	var sum float64
	for _, t := range txns {
		sum += float64(t.Amount)
	}
	mean := sum / float64(len(txns))

	var sq float64
	for _, t := range txns {
		d := float64(t.Amount) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(txns)))
	if std == 0 {
		return nil
	}

	var out []model.Transaction
	for _, t := range txns {
		if math.Abs((float64(t.Amount)-mean)/std) > threshold {
			out = append(out, t)
		}
	}
	return out
}

// Recommendations returns advice for each rule whose category total exceeds
// its threshold, in rule order.
func Recommendations(txns []model.Transaction, rules []Rule) []Recommendation {
	totals := CategoryTotals(txns)

	var out []Recommendation
	for _, r := range rules {
		if spent := totals[r.Category]; spent > r.Threshold {
			out = append(out, Recommendation{
				Category:  r.Category,
				Advice:    r.Advice,
				Spent:     spent,
				Threshold: r.Threshold,
			})
		}
	}
	return out
}

// DetectAnomalies runs anomaly detection with the engine threshold.
func (e *Engine) DetectAnomalies(txns []model.Transaction) []model.Transaction {
	return DetectAnomalies(txns, e.AnomalyThreshold)
}

// PredictSpending forecasts the given number of months.
func (e *Engine) PredictSpending(txns []model.Transaction, months int) ([]Prediction, error) {
	return e.Forecaster.Predict(txns, months)
}

// Recommendations applies the engine rules.
func (e *Engine) Recommendations(txns []model.Transaction) []Recommendation {
	return Recommendations(txns, e.Rules)
}

// GenerateReport groups txns by period and attaches the summary statistics,
// the three largest transactions, anomalies, forecast and recommendations.
func (e *Engine) GenerateReport(txns []model.Transaction, period Period) (*Report, error) {
	if len(txns) == 0 {
		return nil, ErrNoTransactions
	}

	keyOf, err := bucketKey(period)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*Bucket)
	var total int64
	for _, t := range txns {
		k := keyOf(t)
		b, ok := buckets[k]
		if !ok {
			b = &Bucket{Key: k}
			buckets[k] = b
		}
		b.Total += t.Amount
		b.Count++
		total += t.Amount
	}

	report := &Report{
		Period:  period,
		Buckets: make([]Bucket, 0, len(buckets)),
		Statistics: Statistics{
			Total:   total,
			Average: round2(float64(total) / float64(len(txns))),
			Count:   len(txns),
			Periods: len(buckets),
		},
		Largest:         views(Largest(txns, 3)),
		Anomalies:       views(e.DetectAnomalies(txns)),
		Recommendations: e.Recommendations(txns),
	}
	for _, b := range buckets {
		report.Buckets = append(report.Buckets, *b)
	}
	sort.Slice(report.Buckets, func(i, j int) bool { return report.Buckets[i].Key < report.Buckets[j].Key })

	forecast, err := e.PredictSpending(txns, e.ForecastMonths)
	if err != nil {
		report.ForecastError = err.Error()
	} else {
		report.Forecast = forecast
	}

	return report, nil
}

// Largest returns the n largest transactions. Ties keep input order.
func Largest(txns []model.Transaction, n int) []model.Transaction {
	sorted := make([]model.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func bucketKey(period Period) (func(model.Transaction) string, error) {
	switch period {
	case PeriodDaily:
		return func(t model.Transaction) string { return t.Date.Format(model.DateLayout) }, nil
	case PeriodWeekly:
		return func(t model.Transaction) string {
			year, week := t.Date.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		}, nil
	case PeriodMonthly:
		return func(t model.Transaction) string { return t.Date.Format("2006-01") }, nil
	case PeriodCategory:
		return func(t model.Transaction) string { return string(t.Category) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func monthStart(key string) time.Time {
	t, _ := time.Parse("2006-01", key)
	return t
}

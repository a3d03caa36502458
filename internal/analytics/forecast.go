package analytics

import (
	"math"
	"sort"

	"github.com/Veraticus/fintrack/internal/model"
)

// Forecaster predicts monthly spending.
type Forecaster interface {
	Predict(txns []model.Transaction, months int) ([]Prediction, error)
}

// MovingAverage projects the mean of the most recent monthly totals forward
// with a fixed monthly growth rate and decaying confidence.
type MovingAverage struct {
	MinTransactions int
	Window          int
	Growth          float64
	BaseConfidence  float64
	ConfidenceStep  float64
	MinConfidence   float64
}

// DefaultForecaster returns the standard moving average forecaster.
func DefaultForecaster() MovingAverage {
	return MovingAverage{
		MinTransactions: 6,
		Window:          3,
		Growth:          0.02,
		BaseConfidence:  0.7,
		ConfidenceStep:  0.15,
		MinConfidence:   0.4,
	}
}

// Predict returns one prediction per month after the last month with data.
func (m MovingAverage) Predict(txns []model.Transaction, months int) ([]Prediction, error) {
	if len(txns) < m.MinTransactions {
		return nil, ErrInsufficientData
	}
	if months < 1 {
		return nil, ErrInvalidHorizon
	}

	totals := make(map[string]int64)
	for _, t := range txns {
		totals[t.Date.Format("2006-01")] += t.Amount
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recent := keys
	if len(recent) > m.Window {
		recent = recent[len(recent)-m.Window:]
	}
	var sum int64
	for _, k := range recent {
		sum += totals[k]
	}
	avg := float64(sum) / float64(len(recent))

	last := monthStart(keys[len(keys)-1])
	out := make([]Prediction, 0, months)
	for i := 1; i <= months; i++ {
		out = append(out, Prediction{
			Month:      last.AddDate(0, i, 0).Format("2006-01"),
			Amount:     avg * (1 + m.Growth*float64(i)),
			Confidence: math.Max(m.BaseConfidence-m.ConfidenceStep*float64(i), m.MinConfidence),
		})
	}
	return out, nil
}

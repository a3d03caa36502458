package analytics

import (
	"sort"
	"time"

	"github.com/Veraticus/fintrack/internal/model"
)

// DefaultRollingWindow is the span averaged by RollingAverage.
const DefaultRollingWindow = 30 * 24 * time.Hour

// CategoryTotals sums amounts per category.
func CategoryTotals(txns []model.Transaction) map[model.Category]int64 {
	totals := make(map[model.Category]int64)
	for _, t := range txns {
		totals[t.Category] += t.Amount
	}
	return totals
}

// Cumulative returns the running total in date order.
func Cumulative(txns []model.Transaction) []Point {
	sorted := byDate(txns)
	out := make([]Point, len(sorted))
	var running int64
	for i, t := range sorted {
		running += t.Amount
		out[i] = Point{Date: t.Date, Value: float64(running)}
	}
	return out
}

// RollingAverage returns, for each transaction in date order, the mean amount
// of transactions dated within the preceding window, inclusive of its own date.
func RollingAverage(txns []model.Transaction, window time.Duration) []Point {
	if window <= 0 {
		window = DefaultRollingWindow
	}
	sorted := byDate(txns)
	out := make([]Point, len(sorted))

	start := 0
	var sum int64
	for i, t := range sorted {
		sum += t.Amount
		for !sorted[start].Date.After(t.Date.Add(-window)) {
			sum -= sorted[start].Amount
			start++
		}
		out[i] = Point{Date: t.Date, Value: float64(sum) / float64(i-start+1)}
	}
	return out
}

func byDate(txns []model.Transaction) []model.Transaction {
	sorted := make([]model.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}

package tui

import (
	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/model"
)

// Data loading messages.
type dataLoadedMsg struct {
	err          error
	report       *analytics.Report
	period       analytics.Period
	transactions []model.Transaction
}

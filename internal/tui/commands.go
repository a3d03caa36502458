package tui

import (
	"context"
	"errors"

	"github.com/Veraticus/fintrack/internal/analytics"
	tea "github.com/charmbracelet/bubbletea"
)

// loadData fetches the report for period together with the transactions
// behind the series. An empty ledger is not an error for the dashboard.
func loadData(ctx context.Context, src Source, period analytics.Period) tea.Cmd {
	return func() tea.Msg {
		txns, err := src.Transactions(ctx)
		if err != nil {
			return dataLoadedMsg{period: period, err: err}
		}
		if len(txns) == 0 {
			return dataLoadedMsg{period: period}
		}
		report, err := src.Report(ctx, period)
		if errors.Is(err, analytics.ErrNoTransactions) {
			err = nil
		}
		return dataLoadedMsg{
			period:       period,
			report:       report,
			transactions: txns,
			err:          err,
		}
	}
}

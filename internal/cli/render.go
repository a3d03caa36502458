package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const snapshotTimeLayout = "2006-01-02 15:04:05"

// newTable returns a bordered table with the shared header and cell styles.
// Columns listed in numeric are right aligned.
func newTable(headers []string, rows [][]string, numeric ...int) string {
	right := make(map[int]bool, len(numeric))
	for _, col := range numeric {
		right[col] = true
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			if right[col] {
				return TableCellStyle.Align(lipgloss.Right)
			}
			return TableCellStyle
		})
	return t.Render()
}

func transactionRows(views []analytics.TransactionView) [][]string {
	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{v.Date, v.Description, v.Category.Title(), FormatAmount(v.Amount)}
	}
	return rows
}

// RenderTransactions lists transactions in ledger order with a running index.
func RenderTransactions(txns []model.Transaction) string {
	if len(txns) == 0 {
		return SubtleStyle.Render("No transactions recorded yet.")
	}
	rows := make([][]string, len(txns))
	for i, t := range txns {
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			t.Date.Format(model.DateLayout),
			t.Description,
			t.Category.Title(),
			FormatAmount(t.Amount),
		}
	}
	return newTable([]string{"#", "Date", "Description", "Category", "Amount"}, rows, 0, 4)
}

// RenderReport renders every section of a report as text.
func RenderReport(r *analytics.Report) string {
	var b strings.Builder

	b.WriteString(FormatTitle(fmt.Sprintf("Spending report (%s)", r.Period)))
	b.WriteString("\n")

	stats := r.Statistics
	summary := strings.Join([]string{
		fmt.Sprintf("%s %s", BoldStyle.Render("Total spent:"), FormatAmount(stats.Total)),
		fmt.Sprintf("%s %d", BoldStyle.Render("Transactions:"), stats.Count),
		fmt.Sprintf("%s %s", BoldStyle.Render("Average:"), FormatAmountFloat(stats.Average)),
		fmt.Sprintf("%s %d", BoldStyle.Render("Periods:"), stats.Periods),
	}, "\n")
	b.WriteString(RenderBox("Summary", summary))
	b.WriteString("\n\n")

	bucketRows := make([][]string, len(r.Buckets))
	for i, bk := range r.Buckets {
		key := bk.Key
		if r.Period == analytics.PeriodCategory {
			key = model.Category(bk.Key).Title()
		}
		bucketRows[i] = []string{key, fmt.Sprintf("%d", bk.Count), FormatAmount(bk.Total)}
	}
	b.WriteString(BoldStyle.Render("Breakdown"))
	b.WriteString("\n")
	b.WriteString(newTable([]string{"Period", "Count", "Total"}, bucketRows, 1, 2))
	b.WriteString("\n\n")

	if len(r.Largest) > 0 {
		b.WriteString(BoldStyle.Render("Largest transactions"))
		b.WriteString("\n")
		b.WriteString(newTable([]string{"Date", "Description", "Category", "Amount"}, transactionRows(r.Largest), 3))
		b.WriteString("\n\n")
	}

	b.WriteString(BoldStyle.Render("Anomalies"))
	b.WriteString("\n")
	if len(r.Anomalies) == 0 {
		b.WriteString(SubtleStyle.Render("None detected"))
	} else {
		b.WriteString(newTable([]string{"Date", "Description", "Category", "Amount"}, transactionRows(r.Anomalies), 3))
	}
	b.WriteString("\n\n")

	b.WriteString(BoldStyle.Render("Forecast"))
	b.WriteString("\n")
	if r.ForecastError != "" {
		b.WriteString(SubtleStyle.Render(r.ForecastError))
	} else {
		b.WriteString(RenderPredictions(r.Forecast))
	}
	b.WriteString("\n\n")

	b.WriteString(BoldStyle.Render("Recommendations"))
	b.WriteString("\n")
	b.WriteString(RenderRecommendations(r.Recommendations))
	b.WriteString("\n")

	return b.String()
}

// RenderPredictions renders forecast months with their confidence.
func RenderPredictions(preds []analytics.Prediction) string {
	if len(preds) == 0 {
		return SubtleStyle.Render("No forecast available.")
	}
	rows := make([][]string, len(preds))
	for i, p := range preds {
		rows[i] = []string{p.Month, FormatAmountFloat(p.Amount), fmt.Sprintf("%.0f%%", p.Confidence*100)}
	}
	return newTable([]string{"Month", "Predicted", "Confidence"}, rows, 1, 2)
}

// RenderRecommendations renders one line of advice per category.
func RenderRecommendations(recs []analytics.Recommendation) string {
	if len(recs) == 0 {
		return FormatSuccess("Spending is within every threshold")
	}
	lines := make([]string, len(recs))
	for i, r := range recs {
		lines[i] = fmt.Sprintf("%s %s %s",
			WarningStyle.Render("•"),
			BoldStyle.Render(r.Category.Title()+":"),
			fmt.Sprintf("%s (spent %s, threshold %s)", r.Advice, FormatAmount(r.Spent), FormatAmount(r.Threshold)))
	}
	return strings.Join(lines, "\n")
}

// RenderAnomalies renders flagged transactions, or a note when there are none.
func RenderAnomalies(txns []model.Transaction) string {
	if len(txns) == 0 {
		return FormatSuccess("No unusual transactions found")
	}
	return RenderTransactions(txns)
}

// RenderSnapshots lists saved snapshots newest first as returned by storage.
func RenderSnapshots(snaps []storage.SnapshotInfo) string {
	if len(snaps) == 0 {
		return SubtleStyle.Render("No snapshots saved yet.")
	}
	rows := make([][]string, len(snaps))
	for i, s := range snaps {
		csv := "no"
		if s.HasCSV {
			csv = "yes"
		}
		rows[i] = []string{
			s.ID,
			s.CreatedAt.Format(snapshotTimeLayout),
			fmt.Sprintf("%d", s.Transactions),
			fmt.Sprintf("%d", s.FileSize),
			csv,
		}
	}
	return newTable([]string{"ID", "Created", "Transactions", "Bytes", "CSV"}, rows, 2, 3)
}

// RenderImportResult summarizes an import and lists every skipped row.
func RenderImportResult(res ledger.ImportResult) string {
	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("Imported %d transactions", res.Imported)))
	if len(res.Skipped) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(FormatWarning(fmt.Sprintf("Skipped %d rows", len(res.Skipped))))
	b.WriteString("\n")
	rows := make([][]string, len(res.Skipped))
	for i, s := range res.Skipped {
		rows[i] = []string{s.Source, fmt.Sprintf("%d", s.Line), s.Reason}
	}
	b.WriteString(newTable([]string{"File", "Line", "Reason"}, rows, 1))
	return b.String()
}

// RenderToday shows today's spending against the daily cap.
func RenderToday(spent, limit int64) string {
	msg := fmt.Sprintf("Spent today: %s of %s", FormatAmount(spent), FormatAmount(limit))
	if limit > 0 && spent*10 >= limit*9 {
		return FormatWarning(msg)
	}
	return FormatInfo(msg)
}

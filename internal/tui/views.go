package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/charmbracelet/lipgloss"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.theme.Title.Render("💰 Fintrack dashboard"),
		m.renderTabs(),
		"",
	}

	switch {
	case m.loading && m.report == nil:
		sections = append(sections, m.theme.Subtitle.Render("Loading report..."))
	case m.lastError != nil:
		sections = append(sections, m.theme.StatusError.Render("Error: "+m.lastError.Error()))
	case m.report == nil:
		sections = append(sections, m.theme.Subtitle.Render("No transactions recorded yet."))
	default:
		left := lipgloss.JoinVertical(lipgloss.Left, m.renderSummary(), m.buckets.View())
		right := m.renderChart()
		if m.width >= 100 {
			sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
		} else {
			sections = append(sections, left, right)
		}
	}

	sections = append(sections, "", m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(analytics.Periods))
	for i, p := range analytics.Periods {
		label := strings.ToUpper(string(p)[:1]) + string(p)[1:]
		if p == m.period {
			tabs[i] = m.theme.ActiveTab.Render(label)
		} else {
			tabs[i] = m.theme.Tab.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderSummary() string {
	stats := m.report.Statistics
	lines := []string{
		fmt.Sprintf("%s %d", m.theme.Bold.Render("Total:"), stats.Total),
		fmt.Sprintf("%s %d", m.theme.Bold.Render("Transactions:"), stats.Count),
		fmt.Sprintf("%s %.2f", m.theme.Bold.Render("Average:"), stats.Average),
		fmt.Sprintf("%s %d", m.theme.Bold.Render("Anomalies:"), len(m.report.Anomalies)),
	}
	return m.theme.Box.Render(strings.Join(lines, "\n"))
}

func (m Model) renderChart() string {
	var points []analytics.Point
	if m.series == SeriesRolling {
		points = analytics.RollingAverage(m.transactions, m.config.RollingWindow)
	} else {
		points = analytics.Cumulative(m.transactions)
	}

	width := max(m.width/2-6, 20)
	body := m.theme.Subtitle.Render("No data")
	if len(points) > 0 {
		first := points[0]
		last := points[len(points)-1]
		body = strings.Join([]string{
			m.theme.Chart.Render(Sparkline(points, width)),
			m.theme.Subtitle.Render(fmt.Sprintf("%s → %s", first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"))),
			fmt.Sprintf("Latest: %.2f", last.Value),
		}, "\n")
	}

	title := m.theme.Bold.Render(m.series.String())
	return m.theme.Box.Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// Sparkline draws values as block characters, sampled down to width columns.
func Sparkline(points []analytics.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}
	values := sample(points, width)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range values {
		idx := top
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// sample picks at most n evenly spaced values, always keeping the last one.
func sample(points []analytics.Point, n int) []float64 {
	if len(points) <= n {
		out := make([]float64, len(points))
		for i, p := range points {
			out[i] = p.Value
		}
		return out
	}
	if n == 1 {
		return []float64{points[len(points)-1].Value}
	}
	out := make([]float64, n)
	step := float64(len(points)-1) / float64(n-1)
	for i := range out {
		out[i] = points[int(math.Round(float64(i)*step))].Value
	}
	return out
}

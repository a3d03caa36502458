// Package tui implements the interactive spending dashboard.
package tui

import (
	"context"
	"fmt"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source supplies the data the dashboard shows.
type Source interface {
	Report(ctx context.Context, period analytics.Period) (*analytics.Report, error)
	Transactions(ctx context.Context) ([]model.Transaction, error)
}

// Series selects which time series the chart draws.
type Series int

const (
	SeriesCumulative Series = iota
	SeriesRolling
)

// String returns the chart label.
func (s Series) String() string {
	if s == SeriesRolling {
		return "Rolling average"
	}
	return "Cumulative spend"
}

// Model holds the dashboard state.
type Model struct {
	ctx          context.Context
	source       Source
	lastError    error
	report       *analytics.Report
	theme        Theme
	transactions []model.Transaction
	help         help.Model
	keymap       KeyMap
	buckets      table.Model
	config       Config
	period       analytics.Period
	series       Series
	width        int
	height       int
	loading      bool
	quitting     bool
}

// newModel creates a new model with the given configuration.
func newModel(ctx context.Context, src Source, cfg Config) Model {
	buckets := table.New(
		table.WithColumns(bucketColumns(cfg.Period, cfg.Width)),
		table.WithFocused(true),
		table.WithHeight(tableHeight(cfg.Height)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cfg.Theme.Border).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(cfg.Theme.Primary).
		Bold(true)
	buckets.SetStyles(styles)

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	return Model{
		ctx:     ctx,
		source:  src,
		config:  cfg,
		theme:   cfg.Theme,
		keymap:  DefaultKeyMap(),
		help:    h,
		buckets: buckets,
		period:  cfg.Period,
		series:  SeriesCumulative,
		width:   cfg.Width,
		height:  cfg.Height,
		loading: true,
	}
}

// Init loads the first report.
func (m Model) Init() tea.Cmd {
	return loadData(m.ctx, m.source, m.period)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.buckets.SetHeight(tableHeight(m.height))
		m.buckets.SetColumns(bucketColumns(m.period, m.width))
		return m, nil

	case dataLoadedMsg:
		// Drop results for a period the user already moved away from.
		if msg.period != m.period {
			return m, nil
		}
		m.loading = false
		m.lastError = msg.err
		m.report = msg.report
		m.transactions = msg.transactions
		m.buckets.SetColumns(bucketColumns(m.period, m.width))
		m.buckets.SetRows(bucketRows(m.report))
		m.buckets.GotoTop()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.NextPeriod):
		return m.switchPeriod(1)

	case key.Matches(msg, m.keymap.PrevPeriod):
		return m.switchPeriod(-1)

	case key.Matches(msg, m.keymap.ToggleSeries):
		if m.series == SeriesCumulative {
			m.series = SeriesRolling
		} else {
			m.series = SeriesCumulative
		}
		return m, nil

	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		return m, loadData(m.ctx, m.source, m.period)
	}

	var cmd tea.Cmd
	m.buckets, cmd = m.buckets.Update(msg)
	return m, cmd
}

func (m Model) switchPeriod(step int) (tea.Model, tea.Cmd) {
	idx := 0
	for i, p := range analytics.Periods {
		if p == m.period {
			idx = i
			break
		}
	}
	n := len(analytics.Periods)
	m.period = analytics.Periods[((idx+step)%n+n)%n]
	m.loading = true
	return m, loadData(m.ctx, m.source, m.period)
}

// Period returns the report period on display.
func (m Model) Period() analytics.Period {
	return m.period
}

// Series returns the series the chart draws.
func (m Model) Series() Series {
	return m.series
}

// Err returns the error from the last load, if any.
func (m Model) Err() error {
	return m.lastError
}

func tableHeight(termHeight int) int {
	// Title, tabs, summary box, chart and help take about 16 lines.
	return max(termHeight-16, 3)
}

func bucketColumns(period analytics.Period, width int) []table.Column {
	label := "Period"
	if period == analytics.PeriodCategory {
		label = "Category"
	}
	keyWidth := max(width/2-24, 12)
	return []table.Column{
		{Title: label, Width: keyWidth},
		{Title: "Count", Width: 7},
		{Title: "Total", Width: 12},
	}
}

func bucketRows(report *analytics.Report) []table.Row {
	if report == nil {
		return nil
	}
	rows := make([]table.Row, len(report.Buckets))
	for i, b := range report.Buckets {
		keyLabel := b.Key
		if report.Period == analytics.PeriodCategory {
			keyLabel = model.Category(b.Key).Title()
		}
		rows[i] = table.Row{keyLabel, fmt.Sprintf("%d", b.Count), fmt.Sprintf("%d", b.Total)}
	}
	return rows
}

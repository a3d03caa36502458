package tui

import (
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
)

// Config holds dashboard configuration.
type Config struct {
	Theme         Theme
	Period        analytics.Period
	RollingWindow time.Duration
	Width         int
	Height        int
	ShowHelp      bool
	AltScreen     bool
}

// Option is a functional option for configuring the dashboard.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:         DefaultTheme,
		Period:        analytics.PeriodMonthly,
		RollingWindow: analytics.DefaultRollingWindow,
		Width:         80,
		Height:        24,
		ShowHelp:      false,
		AltScreen:     true,
	}
}

// WithPeriod sets the report period shown first.
func WithPeriod(period analytics.Period) Option {
	return func(c *Config) {
		c.Period = period
	}
}

// WithRollingWindow sets the window of the rolling average series.
func WithRollingWindow(window time.Duration) Option {
	return func(c *Config) {
		if window > 0 {
			c.RollingWindow = window
		}
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithAltScreen toggles the alternate screen buffer.
func WithAltScreen(enabled bool) Option {
	return func(c *Config) {
		c.AltScreen = enabled
	}
}

package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrNoSource is returned by Run without a data source.
var ErrNoSource = errors.New("dashboard requires a data source")

// Run shows the dashboard until the user quits or ctx is canceled.
func Run(ctx context.Context, src Source, opts ...Option) error {
	if src == nil {
		return ErrNoSource
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	program := tea.NewProgram(newModel(ctx, src, cfg), programOpts...)
	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("dashboard error: %w", err)
	}

	if m, ok := final.(Model); ok && m.lastError != nil {
		return m.lastError
	}
	return nil
}

package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Views
	NextPeriod   key.Binding
	PrevPeriod   key.Binding
	ToggleSeries key.Binding

	// Application
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		NextPeriod: key.NewBinding(
			key.WithKeys("l", "right", "tab"),
			key.WithHelp("→/Tab", "next period"),
		),
		PrevPeriod: key.NewBinding(
			key.WithKeys("h", "left", "shift+tab"),
			key.WithHelp("←/S-Tab", "previous period"),
		),
		ToggleSeries: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cumulative/rolling"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/Esc", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPeriod, k.ToggleSeries, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.NextPeriod, k.PrevPeriod, k.ToggleSeries},
		{k.Refresh, k.Help, k.Quit},
	}
}

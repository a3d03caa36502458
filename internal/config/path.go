package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "fintrack"

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Dir returns the directory holding config.yaml and the Sheets token:
// $XDG_CONFIG_HOME/fintrack, or ~/.config/fintrack.
func Dir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir is data_dir when nothing else sets it:
// $XDG_DATA_HOME/fintrack, or ~/.local/share/fintrack.
func DefaultDataDir() string {
	if dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")); err == nil {
		return dir
	}
	return filepath.Join("~", ".local", "share", appName)
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}

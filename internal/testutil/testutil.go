// Package testutil provides shared helpers for package tests: a settable
// clock, store setup and a fluent transaction builder.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/storage"
)

// Clock is a manually advanced clock.
type Clock struct {
	t  time.Time
	mu sync.Mutex
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// NewJSONStore returns a JSON store rooted in a temp dir. Snapshot names
// come from a clock that ticks a millisecond per call, so saves never collide.
func NewJSONStore(t *testing.T) *storage.JSONStore {
	t.Helper()

	store, err := storage.NewJSONStore(filepath.Join(t.TempDir(), "users"))
	if err != nil {
		t.Fatalf("failed to create JSON store: %v", err)
	}
	tick := NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store.SetClock(func() time.Time {
		tick.Advance(time.Millisecond)
		return tick.Now()
	})
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewSQLiteStore returns a migrated SQLite store in a temp dir.
func NewSQLiteStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

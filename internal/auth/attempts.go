package auth

import (
	"sync"
	"time"
)

type attempt struct {
	last  time.Time
	count int
}

// AttemptTracker counts failed logins per username for the life of the process.
type AttemptTracker struct {
	now     func() time.Time
	entries map[string]attempt
	window  time.Duration
	max     int
	mu      sync.Mutex
}

// NewAttemptTracker creates a tracker that locks a user out after max
// failures inside window.
func NewAttemptTracker(max int, window time.Duration, now func() time.Time) *AttemptTracker {
	if now == nil {
		now = time.Now
	}
	return &AttemptTracker{
		now:     now,
		entries: make(map[string]attempt),
		window:  window,
		max:     max,
	}
}

// Locked reports whether username is locked out and for how much longer.
func (a *AttemptTracker) Locked(username string) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[username]
	if !ok || entry.count < a.max {
		return 0, false
	}
	elapsed := a.now().Sub(entry.last)
	if elapsed >= a.window {
		return 0, false
	}
	return a.window - elapsed, true
}

// Fail records a failed attempt. A stale counter restarts from one.
func (a *AttemptTracker) Fail(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	entry := a.entries[username]
	if entry.count > 0 && now.Sub(entry.last) > a.window {
		entry.count = 0
	}
	entry.count++
	entry.last = now
	a.entries[username] = entry
}

// Failures returns the current failure count for username.
func (a *AttemptTracker) Failures(username string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[username]
	if !ok || a.now().Sub(entry.last) > a.window {
		return 0
	}
	return entry.count
}

// Package session tracks the logged-in user and expires idle logins lazily.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

// DefaultTimeout is how long a login stays valid.
const DefaultTimeout = 1800 * time.Second

// Session errors. Both are session kind errors.
var (
	ErrNoSession      = fmt.Errorf("%w: not logged in", common.ErrSessionExpired)
	ErrSessionExpired = common.ErrSessionExpired
)

// Session is the context handed to operations on behalf of a user.
type Session struct {
	StartedAt time.Time
	Account   *model.UserAccount
}

// Username returns the account name.
func (s *Session) Username() string {
	return s.Account.Username
}

// Manager holds at most one active session.
type Manager struct {
	now     func() time.Time
	current *Session
	saver   service.Saver
	timeout time.Duration
	mu      sync.Mutex
}

// NewManager creates a session manager. A zero timeout uses DefaultTimeout.
func NewManager(timeout time.Duration, now func() time.Time) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{now: now, timeout: timeout}
}

// Login starts a session for account. saver is invoked on logout.
func (m *Manager) Login(account *model.UserAccount, saver service.Saver) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = &Session{Account: account, StartedAt: m.now()}
	m.saver = saver
	slog.Debug("Session started", "username", account.Username)
}

// IsActive reports whether a session exists and has not timed out.
// An expired session is logged out before returning false.
func (m *Manager) IsActive(ctx context.Context) bool {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return false
	}
	if m.now().Sub(m.current.StartedAt) <= m.timeout {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	slog.Info("Session expired", "timeout", m.timeout)
	if err := m.Logout(ctx); err != nil {
		common.LogError(err, "Failed to save data on session expiry", nil)
	}
	return false
}

// Current returns the active session.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	hadSession := m.current != nil
	m.mu.Unlock()

	if !hadSession {
		return nil, ErrNoSession
	}
	if !m.IsActive(ctx) {
		return nil, ErrSessionExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrSessionExpired
	}
	return m.current, nil
}

// Logout persists the user's data and clears the session. The session is
// cleared even when persisting fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	current, saver := m.current, m.saver
	m.current, m.saver = nil, nil
	m.mu.Unlock()

	if current == nil {
		return nil
	}

	var err error
	if saver != nil {
		if saveErr := saver.Save(ctx); saveErr != nil {
			err = fmt.Errorf("failed to save data for %s: %w", current.Account.Username, saveErr)
			if !errors.Is(saveErr, common.ErrPersistence) {
				err = fmt.Errorf("%w: %w", common.ErrPersistence, err)
			}
		}
	}

	slog.Debug("Session ended", "username", current.Account.Username)
	return err
}

// Remaining returns the time left before the active session expires.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return 0
	}
	left := m.timeout - m.now().Sub(m.current.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

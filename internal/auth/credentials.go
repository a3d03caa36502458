// Package auth creates accounts and verifies logins against stored PBKDF2 hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

// Authentication errors.
var (
	ErrInvalidUsername = fmt.Errorf("%w: username must be 4-20 letters or digits", common.ErrValidation)
	ErrWrongPassword   = fmt.Errorf("%w: incorrect password", common.ErrAuth)
	ErrLockedOut       = fmt.Errorf("%w: too many failed attempts", common.ErrAuth)
	ErrUserNotFound    = service.ErrUserNotFound
	ErrDuplicateUser   = service.ErrDuplicateUser
)

// LockedOutError is returned while a username is locked out.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	secs := int(math.Ceil(e.Remaining.Seconds()))
	return fmt.Sprintf("account locked, try again in %dm %ds", secs/60, secs%60)
}

func (e *LockedOutError) Unwrap() error {
	return ErrLockedOut
}

// AccountStore is the subset of service.UserStore used for credentials.
type AccountStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, account *model.UserAccount) error
	Load(ctx context.Context, username string) (*model.UserAccount, error)
	Save(ctx context.Context, account *model.UserAccount) error
}

// Options configures a CredentialStore.
type Options struct {
	Now           func() time.Time
	LockoutWindow time.Duration
	MaxAttempts   int
	Iterations    int
}

// DefaultOptions returns the standard lockout policy.
func DefaultOptions() Options {
	return Options{
		Now:           time.Now,
		LockoutWindow: 300 * time.Second,
		MaxAttempts:   3,
		Iterations:    DefaultIterations,
	}
}

// CredentialStore creates accounts and checks passwords.
type CredentialStore struct {
	store      AccountStore
	attempts   *AttemptTracker
	now        func() time.Time
	iterations int
}

// NewCredentialStore creates a credential store backed by store.
func NewCredentialStore(store AccountStore, opts Options) *CredentialStore {
	defaults := DefaultOptions()
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = defaults.LockoutWindow
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.Iterations <= 0 {
		opts.Iterations = defaults.Iterations
	}

	return &CredentialStore{
		store:      store,
		attempts:   NewAttemptTracker(opts.MaxAttempts, opts.LockoutWindow, opts.Now),
		now:        opts.Now,
		iterations: opts.Iterations,
	}
}

// NormalizeUsername trims and lowercases s and checks it is 4-20 ASCII letters or digits.
func NormalizeUsername(s string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) < 4 || len(name) > 20 {
		return "", ErrInvalidUsername
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", ErrInvalidUsername
		}
	}
	return name, nil
}

// CreateAccount registers a new user with an empty ledger.
func (c *CredentialStore) CreateAccount(ctx context.Context, username, password string) error {
	name, err := NormalizeUsername(username)
	if err != nil {
		return err
	}

	exists, err := c.store.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check for existing user: %w", err)
	}
	if exists {
		return ErrDuplicateUser
	}

	hash, err := HashPassword(password, c.iterations)
	if err != nil {
		return err
	}

	account := model.NewUserAccount(name, hash, c.now())
	if err := c.store.Create(ctx, account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	slog.Debug("Account created", "username", name)
	return nil
}

// Verify checks a login attempt and returns the account on success.
func (c *CredentialStore) Verify(ctx context.Context, username, password string) (*model.UserAccount, error) {
	name := strings.ToLower(strings.TrimSpace(username))

	if remaining, locked := c.attempts.Locked(name); locked {
		return nil, &LockedOutError{Remaining: remaining}
	}

	if _, err := NormalizeUsername(name); err != nil {
		return nil, ErrUserNotFound
	}

	account, err := c.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !VerifyPassword(account.PasswordHash, password, c.iterations) {
		c.attempts.Fail(name)
		slog.Debug("Login rejected", "username", name, "failures", c.attempts.Failures(name))
		return nil, ErrWrongPassword
	}

	now := c.now()
	account.LastLogin = &now
	if err := c.store.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return account, nil
}

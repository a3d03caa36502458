// Package engine wires the credential store, session manager, ledger,
// analytics and import/export adapters behind one Tracker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/fintrack/internal/activity"
	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/auth"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/importer"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/Veraticus/fintrack/internal/session"
	"github.com/Veraticus/fintrack/internal/storage"
	"github.com/shopspring/decimal"
)

// ReportExporter publishes the ledger and its report, e.g. to Google Sheets.
type ReportExporter interface {
	Write(ctx context.Context, txns []model.Transaction, report *analytics.Report) (string, error)
}

// SnapshotSource is implemented by stores that keep per-save snapshots.
type SnapshotSource interface {
	Snapshots(username string) (*storage.SnapshotManager, error)
}

// Engine errors.
var (
	ErrNoExporter           = fmt.Errorf("%w: no report exporter configured", common.ErrMissingConfig)
	ErrSnapshotsUnsupported = fmt.Errorf("%w: storage backend does not keep snapshots", common.ErrValidation)
	ErrExportExists         = fmt.Errorf("%w: export file already exists", common.ErrValidation)
)

// Config holds the tunables of a Tracker. Zero values use package defaults.
type Config struct {
	Now            func() time.Time
	Auth           auth.Options
	Limits         ledger.Limits
	Import         importer.Options
	SessionTimeout time.Duration
	KeepSnapshots  int
}

// Deps are the collaborators of a Tracker. Store is required.
type Deps struct {
	Store       service.UserStore
	Categorizer service.Categorizer
	Analytics   *analytics.Engine
	Activity    *activity.Log
	Exporter    ReportExporter
}

// Tracker is the single entry point for user operations. Every operation
// other than SignUp and Login requires an active session.
type Tracker struct {
	store       service.UserStore
	categorizer service.Categorizer
	analytics   *analytics.Engine
	activity    *activity.Log
	exporter    ReportExporter
	credentials *auth.CredentialStore
	sessions    *session.Manager
	confirmer   service.Confirmer
	ledger      *ledger.Ledger
	now         func() time.Time
	config      Config
	mu          sync.Mutex
}

// New creates a Tracker.
func New(deps Deps, config Config) (*Tracker, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store is required", common.ErrMissingConfig)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Auth.Now == nil {
		config.Auth.Now = config.Now
	}
	if config.Import.MaxBytes <= 0 {
		config.Import.MaxBytes = importer.DefaultMaxBytes
	}
	if deps.Analytics == nil {
		deps.Analytics = analytics.NewEngine()
	}

	return &Tracker{
		store:       deps.Store,
		categorizer: deps.Categorizer,
		analytics:   deps.Analytics,
		activity:    deps.Activity,
		exporter:    deps.Exporter,
		credentials: auth.NewCredentialStore(deps.Store, config.Auth),
		sessions:    session.NewManager(config.SessionTimeout, config.Now),
		now:         config.Now,
		config:      config,
	}, nil
}

// SetConfirmer sets the confirmer used for large transactions.
func (t *Tracker) SetConfirmer(c service.Confirmer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.confirmer = c
	if t.ledger != nil {
		t.ledger.SetConfirmer(c)
	}
}

// SignUp creates a new account.
func (t *Tracker) SignUp(ctx context.Context, username, password string) error {
	if err := t.credentials.CreateAccount(ctx, username, password); err != nil {
		t.activity.Failure(ctx, username, "sign up", err)
		return err
	}
	t.activity.Record(ctx, username, "sign up")
	return nil
}

// Login verifies the credentials, loads the ledger and starts a session.
// Any existing session is logged out first.
func (t *Tracker) Login(ctx context.Context, username, password string) (*session.Session, error) {
	if t.sessions.IsActive(ctx) {
		if err := t.Logout(ctx); err != nil {
			return nil, err
		}
	}

	account, err := t.credentials.Verify(ctx, username, password)
	if err != nil {
		t.activity.Failure(ctx, username, "login", err)
		return nil, err
	}

	if err := t.bind(account); err != nil {
		t.activity.Failure(ctx, account.Username, "login", err)
		return nil, err
	}

	t.activity.Record(ctx, account.Username, "login")
	return t.sessions.Current(ctx)
}

// bind loads account into a fresh ledger and starts a session for it.
func (t *Tracker) bind(account *model.UserAccount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	led := ledger.New(account, t.store, ledger.Options{
		Categorizer: t.categorizer,
		Confirmer:   t.confirmer,
		Now:         t.now,
		Limits:      t.config.Limits,
	})
	if err := led.Load(); err != nil {
		return err
	}

	t.ledger = led
	t.sessions.Login(account, led)
	return nil
}

// Logout saves the ledger and ends the session. The session ends even when
// saving fails.
func (t *Tracker) Logout(ctx context.Context) error {
	s, err := t.sessions.Current(ctx)
	if err != nil {
		t.clearLedger()
		return nil
	}
	username := s.Username()

	err = t.sessions.Logout(ctx)
	t.clearLedger()
	if err != nil {
		t.activity.Failure(ctx, username, "logout", err)
		return err
	}

	t.activity.Record(ctx, username, "logout")
	if t.config.KeepSnapshots > 0 {
		if _, pruneErr := t.pruneSnapshots(ctx, username, t.config.KeepSnapshots); pruneErr != nil && !errors.Is(pruneErr, ErrSnapshotsUnsupported) {
			slog.Warn("Failed to prune snapshots", "username", username, "error", pruneErr)
		}
	}
	return nil
}

// Active reports whether a session is active, expiring it if it timed out.
func (t *Tracker) Active(ctx context.Context) bool {
	_, _, err := t.active(ctx)
	return err == nil
}

// Session returns the active session.
func (t *Tracker) Session(ctx context.Context) (*session.Session, error) {
	s, _, err := t.active(ctx)
	return s, err
}

// SessionRemaining returns the time left in the active session.
func (t *Tracker) SessionRemaining() time.Duration {
	return t.sessions.Remaining()
}

func (t *Tracker) clearLedger() {
	t.mu.Lock()
	t.ledger = nil
	t.mu.Unlock()
}

// active checks the session and returns it with the user's ledger.
func (t *Tracker) active(ctx context.Context) (*session.Session, *ledger.Ledger, error) {
	t.mu.Lock()
	led := t.ledger
	t.mu.Unlock()
	if led == nil {
		return nil, nil, session.ErrNoSession
	}

	s, err := t.sessions.Current(ctx)
	if err != nil {
		t.clearLedger()
		t.activity.Record(ctx, "", "session expired")
		return nil, nil, common.ErrSessionExpired
	}
	return s, led, nil
}

// Add records a new transaction.
func (t *Tracker) Add(ctx context.Context, amount decimal.Decimal, description string, date time.Time) (model.Transaction, error) {
	s, led, err := t.active(ctx)
	if err != nil {
		return model.Transaction{}, err
	}

	txn, err := led.Add(ctx, amount, description, date)
	if err != nil {
		if errors.Is(err, common.ErrPersistence) {
			t.activity.Failure(ctx, s.Username(), "add transaction", err)
		}
		return txn, err
	}

	common.LogDebug("Transaction added", common.Fields{
		"username": s.Username(),
		"id":       txn.ID,
		"amount":   txn.Amount,
		"category": txn.Category,
	})
	return txn, nil
}

// Update rewrites a transaction.
func (t *Tracker) Update(ctx context.Context, id string, amount decimal.Decimal, description string, date time.Time) (model.Transaction, error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	return led.Update(ctx, id, amount, description, date)
}

// UpdateCategory changes the category of a transaction.
func (t *Tracker) UpdateCategory(ctx context.Context, id string, category model.Category) error {
	_, led, err := t.active(ctx)
	if err != nil {
		return err
	}
	return led.UpdateCategory(ctx, id, category)
}

// Delete removes a transaction.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	_, led, err := t.active(ctx)
	if err != nil {
		return err
	}
	return led.Delete(ctx, id)
}

// Transactions returns the ledger in insertion order.
func (t *Tracker) Transactions(ctx context.Context) ([]model.Transaction, error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return nil, err
	}
	return led.Transactions(), nil
}

// TodayTotal returns today's spend and the daily cap.
func (t *Tracker) TodayTotal(ctx context.Context) (spent, limit int64, err error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return 0, 0, err
	}
	return led.TodayTotal(), led.Limits().DailyCap, nil
}

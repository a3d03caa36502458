// Package ledger holds the logged-in user's transactions and enforces the
// spending rules on every change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/fintrack/internal/classification"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/shopspring/decimal"
)

// Limits are the spending rules applied to new transactions.
type Limits struct {
	DailyCap         int64
	LargeTransaction int64
	DescriptionMax   int
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		DailyCap:         100000,
		LargeTransaction: 50000,
		DescriptionMax:   200,
	}
}

// AccountSaver persists a user account.
type AccountSaver interface {
	Save(ctx context.Context, account *model.UserAccount) error
}

// Options configures a Ledger. Zero values fall back to defaults.
type Options struct {
	Categorizer service.Categorizer
	Confirmer   service.Confirmer
	Now         func() time.Time
	Limits      Limits
}

// Ledger is the ordered, in-memory transaction list of one user.
type Ledger struct {
	account     *model.UserAccount
	store       AccountSaver
	categorizer service.Categorizer
	confirmer   service.Confirmer
	now         func() time.Time
	txns        []model.Transaction
	unsaved     []model.Transaction
	limits      Limits
	mu          sync.Mutex
}

// New creates a ledger for account. Call Load before use.
func New(account *model.UserAccount, store AccountSaver, opts Options) *Ledger {
	if opts.Categorizer == nil {
		opts.Categorizer = classification.NewDefaultCategorizer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	defaults := DefaultLimits()
	if opts.Limits.DailyCap <= 0 {
		opts.Limits.DailyCap = defaults.DailyCap
	}
	if opts.Limits.LargeTransaction <= 0 {
		opts.Limits.LargeTransaction = defaults.LargeTransaction
	}
	if opts.Limits.DescriptionMax <= 0 {
		opts.Limits.DescriptionMax = defaults.DescriptionMax
	}

	return &Ledger{
		account:     account,
		store:       store,
		categorizer: opts.Categorizer,
		confirmer:   opts.Confirmer,
		now:         opts.Now,
		limits:      opts.Limits,
	}
}

// Load parses the account's stored transactions into the ledger.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txns := make([]model.Transaction, 0, len(l.account.Transactions))
	for i, stored := range l.account.Transactions {
		txn, err := stored.Parse()
		if err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, i+1, err)
		}
		txns = append(txns, txn)
	}

	l.txns = txns
	l.unsaved = nil
	return nil
}

// SetConfirmer replaces the large transaction confirmer.
func (l *Ledger) SetConfirmer(c service.Confirmer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmer = c
}

// Limits returns the limits in effect.
func (l *Ledger) Limits() Limits {
	return l.limits
}

// Add validates and records a new transaction, then persists the ledger.
// When persisting fails the transaction stays in memory and the error wraps
// common.ErrPersistence.
func (l *Ledger) Add(ctx context.Context, amount decimal.Decimal, description string, date time.Time) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validate(amount, description); err != nil {
		return model.Transaction{}, err
	}
	if err := l.checkDailyCap(amount, ""); err != nil {
		return model.Transaction{}, err
	}

	txn := model.Transaction{
		ID:          model.NewID(),
		Amount:      roundAmount(amount),
		Description: description,
		Date:        model.DateOf(date),
		Category:    l.categorizer.Categorize(description),
	}

	if amount.GreaterThan(decimal.NewFromInt(l.limits.LargeTransaction)) {
		if l.confirmer == nil {
			return model.Transaction{}, ErrCancelled
		}
		ok, err := l.confirmer.ConfirmLarge(ctx, txn.Amount, description)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		if !ok {
			return model.Transaction{}, ErrCancelled
		}
	}

	l.txns = append(l.txns, txn)
	l.unsaved = append(l.unsaved, txn)

	if err := l.saveLocked(ctx); err != nil {
		return txn, err
	}
	return txn, nil
}

// Update rewrites the amount, description and date of a transaction. The
// category is derived again from the new description.
func (l *Ledger) Update(ctx context.Context, id string, amount decimal.Decimal, description string, date time.Time) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return model.Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if err := l.validate(amount, description); err != nil {
		return model.Transaction{}, err
	}
	if err := l.checkDailyCap(amount, id); err != nil {
		return model.Transaction{}, err
	}

	txn := l.txns[idx]
	txn.Amount = roundAmount(amount)
	txn.Description = description
	txn.Date = model.DateOf(date)
	txn.Category = l.categorizer.Categorize(description)
	l.txns[idx] = txn

	return txn, l.saveLocked(ctx)
}

// UpdateCategory assigns category to the transaction with id.
func (l *Ledger) UpdateCategory(ctx context.Context, id string, category model.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownCategory, category)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	l.txns[idx].Category = category

	return l.saveLocked(ctx)
}

// Delete removes the transaction with id.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	l.txns = slices.Delete(l.txns, idx, idx+1)
	l.unsaved = slices.DeleteFunc(l.unsaved, func(t model.Transaction) bool { return t.ID == id })

	return l.saveLocked(ctx)
}

// Save writes the ledger into the account and persists it. Entries added
// since the previous save are appended to the account history.
func (l *Ledger) Save(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(ctx)
}

func (l *Ledger) saveLocked(ctx context.Context) error {
	stored := make([]model.StoredTransaction, len(l.txns))
	for i, txn := range l.txns {
		stored[i] = txn.Stored()
	}

	historyLen := len(l.account.TransactionHistory)
	l.account.Transactions = stored
	for _, txn := range l.unsaved {
		l.account.TransactionHistory = append(l.account.TransactionHistory, txn.Stored())
	}

	if err := l.store.Save(ctx, l.account); err != nil {
		l.account.TransactionHistory = l.account.TransactionHistory[:historyLen]
		slog.Error("Failed to save ledger", "username", l.account.Username, "error", err)
		if errors.Is(err, common.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	l.unsaved = nil
	return nil
}

// Transactions returns a copy of the ledger in insertion order.
func (l *Ledger) Transactions() []model.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.txns)
}

// Find returns the transaction with id.
func (l *Ledger) Find(id string) (model.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return model.Transaction{}, false
	}
	return l.txns[idx], true
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txns)
}

// TodayTotal returns the sum of transactions dated today.
func (l *Ledger) TodayTotal() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dayTotal(l.now(), "")
}

func (l *Ledger) validate(amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.RoundBank(0).IsPositive() {
		return fmt.Errorf("%w: %s rounds to zero", ErrInvalidAmount, amount)
	}
	if utf8.RuneCountInString(description) > l.limits.DescriptionMax {
		return fmt.Errorf("%w: exceeds %d characters", ErrDescriptionTooLong, l.limits.DescriptionMax)
	}
	return nil
}

// checkDailyCap compares today's total plus amount with the cap. skipID
// excludes a transaction being rewritten.
func (l *Ledger) checkDailyCap(amount decimal.Decimal, skipID string) error {
	total := l.dayTotal(l.now(), skipID)
	if decimal.NewFromInt(total).Add(amount).GreaterThan(decimal.NewFromInt(l.limits.DailyCap)) {
		return fmt.Errorf("%w: %d of %d already spent today", ErrDailyLimitExceeded, total, l.limits.DailyCap)
	}
	return nil
}

func (l *Ledger) dayTotal(day time.Time, skipID string) int64 {
	var total int64
	for _, txn := range l.txns {
		if txn.ID != skipID && model.SameDay(txn.Date, day) {
			total += txn.Amount
		}
	}
	return total
}

func (l *Ledger) indexOf(id string) int {
	return slices.IndexFunc(l.txns, func(t model.Transaction) bool { return t.ID == id })
}

// roundAmount rounds half to even, so 2.5 becomes 2 and 3.5 becomes 4.
func roundAmount(amount decimal.Decimal) int64 {
	return amount.RoundBank(0).IntPart()
}

// ParseAmount parses a user supplied amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(trimAmount(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used in stored records and CSV files.
const DateLayout = "2006-01-02"

// Transaction represents a single spending entry in the ledger.
type Transaction struct {
	Date        time.Time
	ID          string // Assigned at creation, never changes
	Description string
	Category    Category
	Amount      int64 // Whole currency units
}

// NewID returns a fresh transaction identifier.
func NewID() string {
	return uuid.New().String()
}

// Key returns the (date, description, amount) triple, for display only.
func (t Transaction) Key() string {
	return fmt.Sprintf("%s|%s|%d", t.Date.Format(DateLayout), t.Description, t.Amount)
}

// Stored converts the transaction to its persisted form.
func (t Transaction) Stored() StoredTransaction {
	return StoredTransaction{
		ID:          t.ID,
		Amount:      t.Amount,
		Description: t.Description,
		Date:        t.Date.Format(DateLayout),
		Category:    t.Category,
	}
}

// StoredTransaction is the persisted form of a transaction; dates are ISO strings.
type StoredTransaction struct {
	ID          string   `json:"id,omitempty"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Category    Category `json:"category"`
	Amount      int64    `json:"amount"`
}

// Parse converts a stored record back into a Transaction.
// Records written before ids existed get a new one.
func (s StoredTransaction) Parse() (Transaction, error) {
	date, err := ParseDate(s.Date)
	if err != nil {
		return Transaction{}, err
	}
	category := s.Category
	if !category.Valid() {
		category = CategoryOther
	}
	id := s.ID
	if id == "" {
		id = NewID()
	}
	return Transaction{
		ID:          id,
		Amount:      s.Amount,
		Description: s.Description,
		Date:        date,
		Category:    category,
	}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return date, nil
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// RawTransaction is an unparsed import row from a CSV or OFX file.
type RawTransaction struct {
	Amount      string
	Description string
	Date        string
	Category    string
	Source      string
	Line        int
}

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserAccount is the persisted record for one user.
type UserAccount struct {
	CreatedAt          time.Time           `json:"created_at"`
	LastLogin          *time.Time          `json:"last_login"`
	Username           string              `json:"username"`
	PasswordHash       string              `json:"password_hash"`
	Transactions       []StoredTransaction `json:"transactions"`
	TransactionHistory []StoredTransaction `json:"transaction_history"`
}

// NewUserAccount returns an account with empty transaction lists.
func NewUserAccount(username, passwordHash string, createdAt time.Time) *UserAccount {
	return &UserAccount{
		Username:           username,
		PasswordHash:       passwordHash,
		CreatedAt:          createdAt,
		Transactions:       []StoredTransaction{},
		TransactionHistory: []StoredTransaction{},
	}
}

// Clone returns a deep copy so callers can hand records across layers safely.
func (a *UserAccount) Clone() *UserAccount {
	if a == nil {
		return nil
	}
	cp := *a
	if a.LastLogin != nil {
		t := *a.LastLogin
		cp.LastLogin = &t
	}
	cp.Transactions = append([]StoredTransaction{}, a.Transactions...)
	cp.TransactionHistory = append([]StoredTransaction{}, a.TransactionHistory...)
	return &cp
}

// Layouts accepted for account timestamps. Older files carry naive ISO
// timestamps without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// UnmarshalJSON accepts both RFC 3339 and zone-less ISO timestamps.
func (a *UserAccount) UnmarshalJSON(data []byte) error {
	type plain UserAccount
	var raw struct {
		*plain
		CreatedAt string  `json:"created_at"`
		LastLogin *string `json:"last_login"`
	}
	raw.plain = (*plain)(a)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.CreatedAt != "" {
		t, err := parseTimestamp(raw.CreatedAt)
		if err != nil {
			return fmt.Errorf("created_at: %w", err)
		}
		a.CreatedAt = t
	}
	a.LastLogin = nil
	if raw.LastLogin != nil && *raw.LastLogin != "" {
		t, err := parseTimestamp(*raw.LastLogin)
		if err != nil {
			return fmt.Errorf("last_login: %w", err)
		}
		a.LastLogin = &t
	}
	if a.Transactions == nil {
		a.Transactions = []StoredTransaction{}
	}
	if a.TransactionHistory == nil {
		a.TransactionHistory = []StoredTransaction{}
	}
	return nil
}

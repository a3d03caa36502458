// Package storage persists user accounts as JSON snapshots or in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidUsername = fmt.Errorf("%w: invalid username", common.ErrValidation)
	ErrInvalidAccount  = fmt.Errorf("%w: invalid account", common.ErrValidation)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateUsername ensures a username is safe to use as a path component.
func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	for _, r := range username {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
		}
	}
	return nil
}

// validateAccount validates an account before it is written.
func validateAccount(account *model.UserAccount) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateUsername(account.Username); err != nil {
		return err
	}
	if account.PasswordHash == "" {
		return fmt.Errorf("%w: missing password hash", ErrInvalidAccount)
	}
	return nil
}

// validateSnapshotID rejects ids that could escape the snapshot directory.
func validateSnapshotID(id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: invalid snapshot id: cannot contain path separators", common.ErrValidation)
	}
	return nil
}

func persistErr(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrPersistence, action, err)
}

// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Package-level sentinels wrap one of these so callers can
// classify any failure with errors.Is.
var (
	// ErrValidation marks locally correctable input problems. No state changes.
	ErrValidation = errors.New("validation failed")
	// ErrLimitExceeded marks daily cap, description length and file size violations.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrAuth marks authentication failures.
	ErrAuth = errors.New("authentication failed")
	// ErrSessionExpired forces re-authentication.
	ErrSessionExpired = errors.New("session expired")
	// ErrPersistence marks I/O failures while saving or loading user data.
	ErrPersistence = errors.New("persistence failed")
)

// Common application errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Kind labels an error for display and logging.
type Kind string

// Error kind labels.
const (
	KindValidation Kind = "validation"
	KindLimit      Kind = "limit"
	KindAuth       Kind = "auth"
	KindSession    Kind = "session"
	KindPersist    Kind = "persistence"
	KindInternal   Kind = "internal"
)

// KindOf classifies err into one of the error kinds.
// Anything unrecognised is reported as KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrLimitExceeded):
		return KindLimit
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrSessionExpired):
		return KindSession
	case errors.Is(err, ErrPersistence):
		return KindPersist
	default:
		return KindInternal
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Friendly converts err into a UserError. Classified errors keep their own
// message; anything else becomes a generic failure so internals do not leak.
func Friendly(err error) error {
	if err == nil {
		return nil
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		return err
	}
	if KindOf(err) == KindInternal {
		return NewUserError("Something went wrong, see the log for details", err)
	}
	return &UserError{UserMessage: err.Error(), Err: err}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

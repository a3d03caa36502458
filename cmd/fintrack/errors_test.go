package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/Veraticus/fintrack/internal/auth"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want int
	}{
		{name: "validation", err: ledger.ErrInvalidAmount, want: exitInput},
		{name: "limit", err: fmt.Errorf("add: %w", ledger.ErrDailyLimitExceeded), want: exitInput},
		{name: "auth", err: auth.ErrWrongPassword, want: exitAuth},
		{name: "session", err: common.ErrSessionExpired, want: exitAuth},
		{name: "persistence", err: ledger.ErrCorruptRecord, want: exitFailure},
		{name: "internal", err: errors.New("boom"), want: exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Contains(t, errorMessage(ledger.ErrDailyLimitExceeded), "daily spending limit exceeded")
	assert.Contains(t, errorMessage(common.NewUserError("Pick another name", errors.New("taken"))), "Pick another name")

	msg := errorMessage(errors.New("nil pointer somewhere"))
	assert.Contains(t, msg, "Something went wrong")
	assert.NotContains(t, msg, "nil pointer")
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	p := cli.NewPrompter(&bytes.Buffer{}, &buf)

	assert.False(t, report(p, ledger.ErrInvalidAmount))
	assert.Contains(t, buf.String(), "amount must be positive")

	buf.Reset()
	assert.True(t, report(p, common.ErrSessionExpired))
	assert.Contains(t, buf.String(), "Session expired. Please log in again.")
}

package main

import (
	"errors"
	"log/slog"

	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/common"
)

// Exit codes.
const (
	exitFailure = 1
	exitInput   = 2
	exitAuth    = 3
)

// errorMessage converts err into the line shown to the user. Unclassified
// errors are logged in full and shown as a generic failure.
func errorMessage(err error) string {
	if common.KindOf(err) == common.KindInternal {
		common.LogError(err, "Command failed", nil)
	}
	var userErr *common.UserError
	if errors.As(common.Friendly(err), &userErr) {
		return cli.FormatError(userErr.UserMessage)
	}
	return cli.FormatError(err.Error())
}

func exitCode(err error) int {
	switch common.KindOf(err) {
	case common.KindValidation, common.KindLimit:
		return exitInput
	case common.KindAuth, common.KindSession:
		return exitAuth
	default:
		return exitFailure
	}
}

// report prints err for the interactive shell and says whether the session
// is gone.
func report(p *cli.Prompter, err error) (sessionLost bool) {
	p.Println(errorMessage(err))
	if common.KindOf(err) == common.KindSession {
		p.Println(cli.FormatWarning("Session expired. Please log in again."))
		return true
	}
	if common.KindOf(err) == common.KindPersist {
		slog.Error("Failed to persist changes", "error", err)
	}
	return false
}

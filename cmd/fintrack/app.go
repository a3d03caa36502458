package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/fintrack/internal/activity"
	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/auth"
	"github.com/Veraticus/fintrack/internal/classification"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/config"
	"github.com/Veraticus/fintrack/internal/engine"
	"github.com/Veraticus/fintrack/internal/importer"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/Veraticus/fintrack/internal/sheets"
	"github.com/Veraticus/fintrack/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app bundles everything a command needs for one run.
type app struct {
	cfg      *config.Config
	store    service.UserStore
	activity *activity.Log
	tracker  *engine.Tracker
	prompter *cli.Prompter
}

type appOptions struct {
	debitsOnly bool
}

// newApp loads configuration and wires the tracker for cmd.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.DataDir, cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	categorizer, err := classification.NewCategorizer(cfg.CategoryTable())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	activityLog, err := activity.Open(cfg.DataDir, activity.Options{})
	if err != nil {
		// The tracker still works without an activity log.
		slog.Warn("Activity log unavailable", "error", err)
	}

	analyticsEngine := analytics.NewEngine()
	analyticsEngine.AnomalyThreshold = cfg.Analytics.AnomalyThreshold
	analyticsEngine.ForecastMonths = cfg.Analytics.ForecastMonths

	tracker, err := engine.New(engine.Deps{
		Store:       store,
		Categorizer: categorizer,
		Analytics:   analyticsEngine,
		Activity:    activityLog,
		Exporter:    sheetsExporter{v: viper.GetViper()},
	}, engine.Config{
		Auth: auth.Options{
			LockoutWindow: cfg.Auth.LockoutWindow,
			MaxAttempts:   cfg.Auth.MaxAttempts,
			Iterations:    cfg.Auth.PBKDF2Iterations,
		},
		Limits: ledger.Limits{
			DailyCap:         cfg.Limits.DailySpendCap,
			LargeTransaction: cfg.Limits.LargeTransaction,
			DescriptionMax:   cfg.Limits.DescriptionMax,
		},
		Import: importer.Options{
			MaxBytes:   cfg.Limits.CSVMaxBytes,
			DebitsOnly: opts.debitsOnly,
		},
		SessionTimeout: cfg.Session.Timeout,
		KeepSnapshots:  cfg.Storage.KeepSnapshots,
	})
	if err != nil {
		_ = store.Close()
		_ = activityLog.Close()
		return nil, err
	}

	prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	tracker.SetConfirmer(prompter)

	return &app{
		cfg:      cfg,
		store:    store,
		activity: activityLog,
		tracker:  tracker,
		prompter: prompter,
	}, nil
}

// close logs out, saving the ledger, and releases storage.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.tracker.Logout(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	if err := a.activity.Close(); err != nil {
		slog.Warn("Failed to close activity log", "error", err)
	}
	return errors.Join(errs...)
}

func (a *app) out() io.Writer {
	return a.prompter.Writer()
}

// login authenticates with --user (or a prompt) and FINTRACK_PASSWORD
// (or a hidden prompt).
func (a *app) login(ctx context.Context) error {
	username := viper.GetString("user")
	if username == "" {
		var err error
		if username, err = a.prompter.Ask(ctx, "Username"); err != nil {
			return err
		}
	}

	password := viper.GetString("password")
	if password == "" {
		var err error
		if password, err = a.prompter.Password(ctx, "Password"); err != nil {
			return err
		}
	}

	s, err := a.tracker.Login(ctx, username, password)
	if err != nil {
		return err
	}
	slog.Debug("Logged in", "username", s.Username())
	return nil
}

// withSession runs fn for a logged-in user and logs out afterwards.
func withSession(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := a.login(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// sheetsExporter builds a Sheets writer from the current configuration on
// every export, so missing credentials only matter to export --sheets.
type sheetsExporter struct {
	v *viper.Viper
}

func (e sheetsExporter) Write(ctx context.Context, txns []model.Transaction, report *analytics.Report) (string, error) {
	cfg, err := config.LoadSheetsConfig(e.v)
	if err != nil {
		return "", err
	}
	writer, err := sheets.NewWriter(ctx, *cfg, slog.Default())
	if err != nil {
		return "", err
	}
	return writer.Write(ctx, txns, report)
}

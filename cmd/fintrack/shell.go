package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/engine"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/tui"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// errLoggedOut ends the menu loop after the user picks Logout.
var errLoggedOut = errors.New("logged out")

type menuItem struct {
	run   func(ctx context.Context, a *app) error
	label string
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := a.close(context.WithoutCancel(cmd.Context())); closeErr != nil && err == nil {
					err = closeErr
				}
			}()

			handler := cli.NewInterruptHandler(cmd.OutOrStdout())
			ctx := handler.HandleInterrupts(cmd.Context())
			defer handler.Stop()

			err = runShell(ctx, a)
			if handler.WasInterrupted() {
				return nil
			}
			return err
		},
	}
}

// runShell shows the login menu until the user exits or input ends.
func runShell(ctx context.Context, a *app) error {
	p := a.prompter
	for {
		choice, err := p.Choose(ctx, "\n=== Personal Finance Tracker ===", []string{"Login", "Sign up", "Exit"})
		if err != nil {
			if cli.IsClosed(err) {
				return nil
			}
			return err
		}

		switch choice {
		case 0:
			if err := a.login(ctx); err != nil {
				if cli.IsClosed(err) {
					return nil
				}
				report(p, err)
				continue
			}
			s, err := a.tracker.Session(ctx)
			if err != nil {
				report(p, err)
				continue
			}
			p.Println(cli.FormatSuccess(fmt.Sprintf("Welcome, %s!", s.Username())))
			if err := menuLoop(ctx, a); err != nil {
				if cli.IsClosed(err) {
					return nil
				}
				return err
			}
		case 1:
			if err := signupFlow(ctx, a); err != nil {
				if cli.IsClosed(err) {
					return nil
				}
				report(p, err)
			}
		case 2:
			p.Println("Goodbye!")
			return nil
		}
	}
}

func shellMenu() []menuItem {
	return []menuItem{
		{label: "Add transaction", run: addFlow},
		{label: "View transactions", run: listFlow},
		{label: "View report", run: reportFlow},
		{label: "Review anomalies", run: reviewAnomaliesFlow},
		{label: "Get recommendations", run: recommendFlow},
		{label: "Predict spending", run: predictFlow},
		{label: "Import file", run: importPromptFlow},
		{label: "Export data", run: exportPromptFlow},
		{label: "Snapshots", run: snapshotsFlow},
		{label: "Dashboard", run: dashboardFlow},
		{label: "Logout", run: logoutFlow},
	}
}

// menuLoop runs menu actions for the logged-in user. The session is checked
// before every action; it returns nil on logout or expiry.
func menuLoop(ctx context.Context, a *app) error {
	p := a.prompter
	items := shellMenu()
	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = item.label
	}

	for {
		if !a.tracker.Active(ctx) {
			p.Println(cli.FormatWarning("Session expired. Please log in again."))
			return nil
		}

		remaining := a.tracker.SessionRemaining().Round(time.Minute)
		choice, err := p.Choose(ctx, fmt.Sprintf("\n=== Finance Tracker (session: %s left) ===", remaining), labels)
		if err != nil {
			return err
		}

		if !a.tracker.Active(ctx) {
			p.Println(cli.FormatWarning("Session expired. Please log in again."))
			return nil
		}

		err = runAction(ctx, a, items[choice].run)
		switch {
		case err == nil:
		case errors.Is(err, errLoggedOut):
			return nil
		case cli.IsClosed(err), ctx.Err() != nil:
			return err
		case errors.Is(err, ledger.ErrCancelled):
			p.Println(cli.FormatWarning("Operation cancelled"))
		default:
			if sessionLost := report(p, err); sessionLost {
				return nil
			}
		}
	}
}

// runAction calls fn, turning a panic into an error so the menu survives.
func runAction(ctx context.Context, a *app, fn func(context.Context, *app) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic in menu action", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return fn(ctx, a)
}

func logoutFlow(ctx context.Context, a *app) error {
	if err := a.tracker.Logout(ctx); err != nil {
		return err
	}
	a.prompter.Println(cli.FormatSuccess("Logged out successfully!"))
	return errLoggedOut
}

// addFlow asks for transactions until the user stops.
func addFlow(ctx context.Context, a *app) error {
	p := a.prompter
	for {
		amount, err := askAmount(ctx, p)
		if err != nil {
			return err
		}

		description, err := p.Ask(ctx, "Description")
		if err != nil {
			return err
		}
		for description == "" {
			p.Println(cli.FormatError("Description cannot be empty"))
			if description, err = p.Ask(ctx, "Description"); err != nil {
				return err
			}
		}

		today := time.Now().Format(model.DateLayout)
		dateInput, err := p.AskDefault(ctx, "Date (YYYY-MM-DD)", today)
		if err != nil {
			return err
		}
		date, err := model.ParseDate(dateInput)
		if err != nil {
			p.Println(cli.FormatWarning("Invalid date format. Using today's date"))
			date = time.Now()
		}

		txn, err := a.tracker.Add(ctx, amount, description, date)
		switch {
		case errors.Is(err, ledger.ErrCancelled):
			p.Println(cli.FormatWarning("Transaction cancelled"))
		case err != nil:
			return err
		default:
			p.Println(cli.FormatSuccess(fmt.Sprintf("Added %s as %s", cli.FormatAmount(txn.Amount), txn.Category.Title())))
			p.Println(fmt.Sprintf("%s on %s", txn.Description, txn.Date.Format("02 Jan 2006")))
			if spent, limit, err := a.tracker.TodayTotal(ctx); err == nil {
				p.Println(cli.RenderToday(spent, limit))
			}
		}

		again, err := p.Confirm(ctx, "Add another?", false)
		if err != nil || !again {
			return err
		}
	}
}

// askAmount repeats the prompt until the answer is a positive number.
func askAmount(ctx context.Context, p *cli.Prompter) (decimal.Decimal, error) {
	for {
		input, err := p.Ask(ctx, "Amount")
		if err != nil {
			return decimal.Zero, err
		}
		d, err := ledger.ParseAmount(input)
		if err == nil && d.IsPositive() {
			return d, nil
		}
		if err == nil {
			p.Println(cli.FormatError("Amount must be positive"))
			continue
		}
		p.Println(cli.FormatError("Please enter a valid number"))
	}
}

func listFlow(ctx context.Context, a *app) error {
	txns, err := a.tracker.Transactions(ctx)
	if err != nil {
		return err
	}
	a.prompter.Println(cli.RenderTransactions(txns))
	return nil
}

func reportFlow(ctx context.Context, a *app) error {
	input, err := a.prompter.AskDefault(ctx, "Report period (daily/weekly/monthly/category)", string(analytics.PeriodMonthly))
	if err != nil {
		return err
	}
	period, err := analytics.ParsePeriod(input)
	if err != nil {
		return err
	}
	rep, err := a.tracker.Report(ctx, period)
	if err != nil {
		return err
	}
	a.prompter.Println(cli.RenderReport(rep))
	return nil
}

func recommendFlow(ctx context.Context, a *app) error {
	recs, err := a.tracker.Recommendations(ctx)
	if err != nil {
		return err
	}
	a.prompter.Println(cli.RenderRecommendations(recs))
	return nil
}

func predictFlow(ctx context.Context, a *app) error {
	input, err := a.prompter.AskDefault(ctx, "Months to predict (1-12)", strconv.Itoa(a.cfg.Analytics.ForecastMonths))
	if err != nil {
		return err
	}
	months, err := strconv.Atoi(input)
	if err != nil || months < 1 || months > 12 {
		return fmt.Errorf("%w: months must be between 1 and 12", common.ErrValidation)
	}
	preds, err := a.tracker.Forecast(ctx, months)
	if err != nil {
		return err
	}
	a.prompter.Println(cli.RenderPredictions(preds))
	return nil
}

func importPromptFlow(ctx context.Context, a *app) error {
	p := a.prompter
	p.Println(cli.FormatInfo("CSV files need amount, description and date columns; OFX and QFX statements are also accepted."))
	p.Println(cli.FormatInfo(fmt.Sprintf("Max size: %dKB", a.cfg.Limits.CSVMaxBytes/1024)))

	path, err := p.Ask(ctx, "Path to file")
	if err != nil {
		return err
	}
	path = strings.Trim(path, `"'`)
	if path == "" {
		return fmt.Errorf("%w: no file given", common.ErrValidation)
	}
	return importFlow(ctx, a, []string{path})
}

func exportPromptFlow(ctx context.Context, a *app) error {
	p := a.prompter
	choice, err := p.Choose(ctx, "Export format", []string{"CSV file", "Google Sheets"})
	if err != nil {
		return err
	}
	if choice == 1 {
		return exportSheetsFlow(ctx, a)
	}

	path, err := p.Ask(ctx, "Output path")
	if err != nil {
		return err
	}
	path = strings.Trim(path, `"'`)
	if path == "" {
		return fmt.Errorf("%w: no output path given", common.ErrValidation)
	}

	err = exportCSVFlow(ctx, a, path, false)
	if !errors.Is(err, engine.ErrExportExists) {
		return err
	}
	overwrite, err := p.Confirm(ctx, "File exists. Overwrite?", false)
	if err != nil || !overwrite {
		return err
	}
	return exportCSVFlow(ctx, a, path, true)
}

func snapshotsFlow(ctx context.Context, a *app) error {
	p := a.prompter
	snaps, err := a.tracker.Snapshots(ctx)
	if err != nil {
		return err
	}
	p.Println(cli.RenderSnapshots(snaps))
	if len(snaps) == 0 {
		return nil
	}

	choice, err := p.Choose(ctx, "Snapshots", []string{"Restore a snapshot", "Prune old snapshots", "Back"})
	if err != nil {
		return err
	}
	switch choice {
	case 0:
		id, err := p.Ask(ctx, "Snapshot ID")
		if err != nil {
			return err
		}
		ok, err := p.Confirm(ctx, fmt.Sprintf("Replace your transactions with snapshot %s?", id), false)
		if err != nil || !ok {
			return err
		}
		if err := a.tracker.RestoreSnapshot(ctx, id); err != nil {
			return err
		}
		p.Println(cli.FormatSuccess("Snapshot restored"))
	case 1:
		input, err := p.AskDefault(ctx, "Snapshots to keep", "10")
		if err != nil {
			return err
		}
		keep, err := strconv.Atoi(input)
		if err != nil || keep < 0 {
			return fmt.Errorf("%w: keep must be a non-negative number", common.ErrValidation)
		}
		removed, err := a.tracker.PruneSnapshots(ctx, keep)
		if err != nil {
			return err
		}
		p.Println(cli.FormatSuccess(fmt.Sprintf("Removed %d snapshots", removed)))
	}
	return nil
}

func dashboardFlow(ctx context.Context, a *app) error {
	return tui.Run(ctx, a.tracker)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/auth"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/engine"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/tui"
	"github.com/spf13/cobra"
)

func signupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a new account",
		Long: `Create a new account. Usernames are 4-20 letters or digits; passwords
need at least 8 characters with an uppercase letter, a digit and a symbol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			return signupFlow(cmd.Context(), a)
		},
	}
}

// signupFlow asks for a username and a confirmed strong password.
func signupFlow(ctx context.Context, a *app) error {
	raw, err := a.prompter.Ask(ctx, "Choose a username (4-20 letters or digits)")
	if err != nil {
		return err
	}
	username, err := auth.NormalizeUsername(raw)
	if err != nil {
		return err
	}

	password, err := a.prompter.Password(ctx, "Password")
	if err != nil {
		return err
	}
	if err := auth.CheckPasswordStrength(password); err != nil {
		return err
	}
	confirm, err := a.prompter.Password(ctx, "Confirm password")
	if err != nil {
		return err
	}
	if confirm != password {
		return fmt.Errorf("%w: passwords don't match", common.ErrValidation)
	}

	if err := a.tracker.SignUp(ctx, username, password); err != nil {
		return err
	}
	a.prompter.Println(cli.FormatSuccess(fmt.Sprintf("Account %q created. You can now log in.", username)))
	return nil
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <amount> <description...>",
		Short: "Record a transaction",
		Long: `Record a transaction. The amount is rounded to whole units and the
category is derived from the description.`,
		Example: `  fintrack add 450 Swiggy dinner
  fintrack add 1200 "Uber to airport" --date 2024-06-01`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ledger.ParseAmount(args[0])
			if err != nil {
				return err
			}
			description := strings.Join(args[1:], " ")

			dateFlag, _ := cmd.Flags().GetString("date")
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				date := time.Now()
				if dateFlag != "" {
					if date, err = model.ParseDate(dateFlag); err != nil {
						return fmt.Errorf("%w: %v", ledger.ErrInvalidDate, err)
					}
				}
				txn, err := a.tracker.Add(ctx, amount, description, date)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.FormatSuccess(fmt.Sprintf("Added %s as %s", cli.FormatAmount(txn.Amount), txn.Category.Title())))
				spent, limit, err := a.tracker.TodayTotal(ctx)
				if err == nil {
					a.prompter.Println(cli.RenderToday(spent, limit))
				}
				return nil
			})
		},
	}
	cmd.Flags().String("date", "", "transaction date (YYYY-MM-DD, default today)")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				txns, err := a.tracker.Transactions(ctx)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.RenderTransactions(txns))
				return nil
			})
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show a spending report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			periodFlag, _ := cmd.Flags().GetString("period")
			format, _ := cmd.Flags().GetString("format")
			period, err := analytics.ParsePeriod(periodFlag)
			if err != nil {
				return err
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("%w: unknown format %q", common.ErrValidation, format)
			}

			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				rep, err := a.tracker.Report(ctx, period)
				if err != nil {
					return err
				}
				if format == "json" {
					enc := json.NewEncoder(a.out())
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				a.prompter.Println(cli.RenderReport(rep))
				return nil
			})
		},
	}
	cmd.Flags().StringP("period", "p", string(analytics.PeriodMonthly), "report period (daily, weekly, monthly, category)")
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	return cmd
}

func anomaliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List unusually large transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			review, _ := cmd.Flags().GetBool("review")
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if review {
					return reviewAnomaliesFlow(ctx, a)
				}
				txns, err := a.tracker.Anomalies(ctx)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.RenderAnomalies(txns))
				return nil
			})
		},
	}
	cmd.Flags().Bool("review", false, "review each anomaly interactively")
	return cmd
}

// reviewAnomaliesFlow walks through each flagged transaction and applies
// keep, recategorize, delete or skip.
func reviewAnomaliesFlow(ctx context.Context, a *app) error {
	txns, err := a.tracker.Anomalies(ctx)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		a.prompter.Println(cli.FormatSuccess("No unusual transactions found"))
		return nil
	}

	a.prompter.Println(cli.FormatInfo(fmt.Sprintf("Found %d unusual transactions", len(txns))))
	categories := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		categories[i] = c.Title()
	}

	for i, t := range txns {
		a.prompter.Println(fmt.Sprintf("\n%d. %s  %s  %s  %s", i+1,
			t.Date.Format(model.DateLayout), t.Description, t.Category.Title(), cli.FormatAmount(t.Amount)))

		choice, err := a.prompter.Choose(ctx, "What should happen to it?",
			[]string{"Keep", "Change category", "Delete", "Skip"})
		if err != nil {
			return err
		}

		switch choice {
		case 0:
			err = a.tracker.ReviewAnomaly(ctx, t.ID, engine.ReviewKeep, "")
		case 1:
			var idx int
			if idx, err = a.prompter.Choose(ctx, "New category", categories); err != nil {
				return err
			}
			err = a.tracker.ReviewAnomaly(ctx, t.ID, engine.ReviewRecategorize, model.Categories[idx])
			if err == nil {
				a.prompter.Println(cli.FormatSuccess("Category updated"))
			}
		case 2:
			err = a.tracker.ReviewAnomaly(ctx, t.ID, engine.ReviewDelete, "")
			if err == nil {
				a.prompter.Println(cli.FormatSuccess("Transaction deleted"))
			}
		}
		if err != nil {
			return err
		}
	}

	a.prompter.Println(cli.FormatInfo("Anomaly review complete"))
	return nil
}

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Predict spending for the coming months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			months, _ := cmd.Flags().GetInt("months")
			if months < 0 || months > 12 {
				return fmt.Errorf("%w: months must be between 1 and 12", common.ErrValidation)
			}
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				preds, err := a.tracker.Forecast(ctx, months)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.RenderPredictions(preds))
				return nil
			})
		},
	}
	cmd.Flags().IntP("months", "m", 0, "months to predict, 1-12 (default from analytics.forecast_months)")
	return cmd
}

func recommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Show savings recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				recs, err := a.tracker.Recommendations(ctx)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.RenderRecommendations(recs))
				return nil
			})
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Import transactions from CSV, OFX or QFX files",
		Long: `Import transactions from bank exports.

CSV files need amount, description and date columns (category is optional).
OFX and QFX statements are read with their payee as description. Invalid rows
are skipped and reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debitsOnly, _ := cmd.Flags().GetBool("debits-only")
			return withSession(cmd, appOptions{debitsOnly: debitsOnly}, func(ctx context.Context, a *app) error {
				return importFlow(ctx, a, args)
			})
		},
	}
	cmd.Flags().Bool("debits-only", false, "skip credits in OFX/QFX statements")
	return cmd
}

func importFlow(ctx context.Context, a *app, paths []string) error {
	started := false
	res, err := a.tracker.Import(ctx, paths, func(done, total int) {
		if !started {
			a.prompter.StartProgress(total, "Importing transactions...")
			started = true
		}
		a.prompter.Progress(done)
	})
	a.prompter.FinishProgress()
	if err != nil {
		return err
	}
	a.prompter.Println(cli.RenderImportResult(res))
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export transactions to CSV or Google Sheets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toSheets, _ := cmd.Flags().GetBool("sheets")
			force, _ := cmd.Flags().GetBool("force")
			if !toSheets && len(args) == 0 {
				return fmt.Errorf("%w: an output file is required unless --sheets is set", common.ErrValidation)
			}

			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if toSheets {
					return exportSheetsFlow(ctx, a)
				}
				return exportCSVFlow(ctx, a, args[0], force)
			})
		},
	}
	cmd.Flags().Bool("sheets", false, "export to Google Sheets instead of a file")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func exportCSVFlow(ctx context.Context, a *app, path string, overwrite bool) error {
	n, err := a.tracker.ExportCSV(ctx, path, overwrite)
	if err != nil {
		return err
	}
	a.prompter.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d transactions to %s", n, engine.ExportPath(path))))
	return nil
}

func exportSheetsFlow(ctx context.Context, a *app) error {
	id, err := a.tracker.ExportSheets(ctx)
	if err != nil {
		return err
	}
	a.prompter.Println(cli.FormatSuccess("Exported to Google Sheets"))
	a.prompter.Println(cli.FormatInfo("https://docs.google.com/spreadsheets/d/" + id))
	return nil
}

func snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage saved session snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				snaps, err := a.tracker.Snapshots(ctx)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.RenderSnapshots(snaps))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the ledger with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				ok, err := a.prompter.Confirm(ctx, fmt.Sprintf("Replace your transactions with snapshot %s?", args[0]), false)
				if err != nil || !ok {
					return err
				}
				if err := a.tracker.RestoreSnapshot(ctx, args[0]); err != nil {
					return err
				}
				a.prompter.Println(cli.FormatSuccess("Snapshot restored"))
				return nil
			})
		},
	})

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keep, _ := cmd.Flags().GetInt("keep")
			if keep < 0 {
				return fmt.Errorf("%w: --keep cannot be negative", common.ErrValidation)
			}
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				removed, err := a.tracker.PruneSnapshots(ctx, keep)
				if err != nil {
					return err
				}
				a.prompter.Println(cli.FormatSuccess("Removed " + strconv.Itoa(removed) + " snapshots"))
				return nil
			})
		},
	}
	prune.Flags().Int("keep", 10, "number of snapshots to keep")
	cmd.AddCommand(prune)

	return cmd
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive spending dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			periodFlag, _ := cmd.Flags().GetString("period")
			period, err := analytics.ParsePeriod(periodFlag)
			if err != nil {
				return err
			}
			return withSession(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				return tui.Run(ctx, a.tracker, tui.WithPeriod(period))
			})
		},
	}
	cmd.Flags().StringP("period", "p", string(analytics.PeriodMonthly), "initial report period")
	return cmd
}

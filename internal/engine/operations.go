package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/importer"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/storage"
)

// Report analyzes the ledger grouped by period.
func (t *Tracker) Report(ctx context.Context, period analytics.Period) (*analytics.Report, error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return nil, err
	}
	return t.analytics.GenerateReport(led.Transactions(), period)
}

// Anomalies returns transactions whose amount is an outlier.
func (t *Tracker) Anomalies(ctx context.Context) ([]model.Transaction, error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return nil, err
	}
	return t.analytics.DetectAnomalies(led.Transactions()), nil
}

// Forecast predicts monthly spend. months <= 0 uses the engine default.
func (t *Tracker) Forecast(ctx context.Context, months int) ([]analytics.Prediction, error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = t.analytics.ForecastMonths
	}
	return t.analytics.PredictSpending(led.Transactions(), months)
}

// Recommendations returns savings advice for categories over their thresholds.
func (t *Tracker) Recommendations(ctx context.Context) ([]analytics.Recommendation, error) {
	_, led, err := t.active(ctx)
	if err != nil {
		return nil, err
	}
	return t.analytics.Recommendations(led.Transactions()), nil
}

// ReviewAction is the outcome of reviewing an anomaly.
type ReviewAction int

// Review actions.
const (
	ReviewKeep ReviewAction = iota
	ReviewRecategorize
	ReviewDelete
)

// ReviewAnomaly applies the user's decision about a flagged transaction.
// category is only used by ReviewRecategorize.
func (t *Tracker) ReviewAnomaly(ctx context.Context, id string, action ReviewAction, category model.Category) error {
	s, led, err := t.active(ctx)
	if err != nil {
		return err
	}
	if _, ok := led.Find(id); !ok {
		return fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
	}

	switch action {
	case ReviewKeep:
		return nil
	case ReviewRecategorize:
		err = led.UpdateCategory(ctx, id, category)
	case ReviewDelete:
		err = led.Delete(ctx, id)
	default:
		return fmt.Errorf("%w: unknown review action %d", common.ErrValidation, action)
	}
	if err == nil {
		t.activity.Record(ctx, s.Username(), "review anomaly", slog.String("id", id))
	}
	return err
}

// Import reads CSV, OFX and QFX files and appends their valid rows. onRow,
// if set, is called with the rows processed so far and the total.
func (t *Tracker) Import(ctx context.Context, paths []string, onRow func(done, total int)) (ledger.ImportResult, error) {
	s, led, err := t.active(ctx)
	if err != nil {
		return ledger.ImportResult{}, err
	}
	names := baseNames(paths)

	rows, err := importer.ReadFiles(ctx, paths, t.config.Import)
	if err != nil {
		t.activity.Failure(ctx, s.Username(), "import", err, slog.String("files", names))
		return ledger.ImportResult{}, err
	}

	var progress func(int)
	if onRow != nil {
		total := len(rows)
		progress = func(done int) { onRow(done, total) }
	}

	result, err := led.ImportRows(ctx, rows, progress)
	if err != nil {
		t.activity.Failure(ctx, s.Username(), "import", err, slog.String("files", names))
		return result, err
	}

	t.activity.Record(ctx, s.Username(), "import",
		slog.String("files", names),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

// ExportPath appends .csv when path has no extension of that name.
func ExportPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return path
	}
	return path + ".csv"
}

// ExportCSV writes the ledger to path, creating parent directories. An
// existing file is only replaced when overwrite is set. It returns the
// number of rows written.
func (t *Tracker) ExportCSV(ctx context.Context, path string, overwrite bool) (int, error) {
	s, led, err := t.active(ctx)
	if err != nil {
		return 0, err
	}
	txns := led.Transactions()
	if len(txns) == 0 {
		return 0, analytics.ErrNoTransactions
	}

	path = ExportPath(path)
	if !overwrite {
		if _, statErr := os.Stat(path); statErr == nil {
			return 0, fmt.Errorf("%w: %s", ErrExportExists, path)
		}
	}

	if err := writeExport(path, txns); err != nil {
		err = fmt.Errorf("%w: export %s: %v", common.ErrPersistence, path, err)
		t.activity.Failure(ctx, s.Username(), "export", err)
		return 0, err
	}

	t.activity.Record(ctx, s.Username(), "export", slog.String("path", path), slog.Int("rows", len(txns)))
	return len(txns), nil
}

func writeExport(path string, txns []model.Transaction) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return err
	}
	if err := importer.WriteCSV(f, txns); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ExportSheets publishes the ledger and a monthly report through the exporter.
func (t *Tracker) ExportSheets(ctx context.Context) (string, error) {
	s, led, err := t.active(ctx)
	if err != nil {
		return "", err
	}
	if t.exporter == nil {
		return "", ErrNoExporter
	}

	txns := led.Transactions()
	report, err := t.analytics.GenerateReport(txns, analytics.PeriodMonthly)
	if err != nil {
		return "", err
	}

	id, err := t.exporter.Write(ctx, txns, report)
	if err != nil {
		t.activity.Failure(ctx, s.Username(), "export sheets", err)
		return "", err
	}
	t.activity.Record(ctx, s.Username(), "export sheets", slog.String("spreadsheet_id", id))
	return id, nil
}

// Snapshots lists the saved snapshots of the logged-in user, newest first.
func (t *Tracker) Snapshots(ctx context.Context) ([]storage.SnapshotInfo, error) {
	s, _, err := t.active(ctx)
	if err != nil {
		return nil, err
	}
	sm, err := t.snapshotManager(s.Username())
	if err != nil {
		return nil, err
	}
	return sm.List(ctx)
}

// RestoreSnapshot replaces the ledger with snapshot id. The session restarts
// with the restored ledger.
func (t *Tracker) RestoreSnapshot(ctx context.Context, id string) error {
	s, _, err := t.active(ctx)
	if err != nil {
		return err
	}
	username := s.Username()
	sm, err := t.snapshotManager(username)
	if err != nil {
		return err
	}

	restored, err := sm.Restore(ctx, id)
	if err != nil {
		t.activity.Failure(ctx, username, "restore snapshot", err)
		return err
	}
	if err := t.bind(restored); err != nil {
		return err
	}

	t.activity.Record(ctx, username, "restore snapshot", slog.String("id", id))
	return nil
}

// PruneSnapshots keeps the newest keep snapshots and returns how many were removed.
func (t *Tracker) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	s, _, err := t.active(ctx)
	if err != nil {
		return 0, err
	}
	return t.pruneSnapshots(ctx, s.Username(), keep)
}

func (t *Tracker) pruneSnapshots(ctx context.Context, username string, keep int) (int, error) {
	sm, err := t.snapshotManager(username)
	if err != nil {
		return 0, err
	}
	return sm.Prune(ctx, keep)
}

func (t *Tracker) snapshotManager(username string) (*storage.SnapshotManager, error) {
	src, ok := t.store.(SnapshotSource)
	if !ok {
		return nil, ErrSnapshotsUnsupported
	}
	return src.Snapshots(username)
}

func baseNames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ",")
}

// IsSessionError reports whether err requires the user to log in again.
func IsSessionError(err error) bool {
	return errors.Is(err, common.ErrSessionExpired)
}

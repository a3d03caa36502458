package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/activity"
	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/auth"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/ledger"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/Veraticus/fintrack/internal/session"
	"github.com/Veraticus/fintrack/internal/sheets"
	"github.com/Veraticus/fintrack/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "Secret#123"

var start = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	tracker  *Tracker
	clock    *testutil.Clock
	exporter *sheets.MockWriter
	dataDir  string
}

func newFixture(t *testing.T, store service.UserStore) *fixture {
	t.Helper()

	clock := testutil.NewClock(start)
	dataDir := t.TempDir()
	log, err := activity.Open(dataDir, activity.Options{Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	exporter := sheets.NewMockWriter()
	tracker, err := New(Deps{
		Store:    store,
		Activity: log,
		Exporter: exporter,
	}, Config{
		Now:  clock.Now,
		Auth: auth.Options{Iterations: 1000},
	})
	require.NoError(t, err)

	return &fixture{tracker: tracker, clock: clock, exporter: exporter, dataDir: dataDir}
}

func loggedIn(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, testutil.NewJSONStore(t))
	ctx := context.Background()
	require.NoError(t, f.tracker.SignUp(ctx, "alice", password))
	_, err := f.tracker.Login(ctx, "alice", password)
	require.NoError(t, err)
	return f
}

func (f *fixture) add(t *testing.T, amount int64, description string, daysAgo int) model.Transaction {
	t.Helper()
	txn, err := f.tracker.Add(context.Background(), decimal.NewFromInt(amount), description, model.DateOf(start).AddDate(0, 0, -daysAgo))
	require.NoError(t, err)
	return txn
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Deps{}, Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestTracker_SignUpLoginLogout(t *testing.T) {
	store := testutil.NewJSONStore(t)
	f := newFixture(t, store)
	ctx := context.Background()

	require.NoError(t, f.tracker.SignUp(ctx, "  Alice ", password))
	assert.ErrorIs(t, f.tracker.SignUp(ctx, "alice", password), service.ErrDuplicateUser)

	_, err := f.tracker.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrWrongPassword)
	assert.False(t, f.tracker.Active(ctx))

	s, err := f.tracker.Login(ctx, "ALICE", password)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username())
	assert.True(t, f.tracker.Active(ctx))

	f.add(t, 450, "Swiggy dinner", 0)
	require.NoError(t, f.tracker.Logout(ctx))
	assert.False(t, f.tracker.Active(ctx))

	account, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, account.Transactions, 1)
	assert.Equal(t, model.CategoryFood, account.Transactions[0].Category)
	assert.Len(t, account.TransactionHistory, 1)
	require.NotNil(t, account.LastLogin)

	data, err := os.ReadFile(filepath.Join(f.dataDir, activity.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"sign up"`)
	assert.Contains(t, string(data), `"action":"logout"`)
}

func TestTracker_RequiresSession(t *testing.T) {
	f := newFixture(t, testutil.NewJSONStore(t))
	ctx := context.Background()

	ops := map[string]func() error{
		"add": func() error {
			_, err := f.tracker.Add(ctx, decimal.NewFromInt(1), "x", start)
			return err
		},
		"transactions": func() error { _, err := f.tracker.Transactions(ctx); return err },
		"report":       func() error { _, err := f.tracker.Report(ctx, analytics.PeriodDaily); return err },
		"anomalies":    func() error { _, err := f.tracker.Anomalies(ctx); return err },
		"forecast":     func() error { _, err := f.tracker.Forecast(ctx, 3); return err },
		"recommend":    func() error { _, err := f.tracker.Recommendations(ctx); return err },
		"import":       func() error { _, err := f.tracker.Import(ctx, nil, nil); return err },
		"export":       func() error { _, err := f.tracker.ExportCSV(ctx, "x.csv", true); return err },
		"sheets":       func() error { _, err := f.tracker.ExportSheets(ctx); return err },
		"delete":       func() error { return f.tracker.Delete(ctx, "id") },
		"snapshots":    func() error { _, err := f.tracker.Snapshots(ctx); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			assert.ErrorIs(t, err, common.ErrSessionExpired)
			assert.True(t, IsSessionError(err))
		})
	}
}

func TestTracker_SessionExpiry(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()
	f.add(t, 100, "Uber ride", 0)

	f.clock.Advance(session.DefaultTimeout + time.Second)

	_, err := f.tracker.Transactions(ctx)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.False(t, f.tracker.Active(ctx))

	_, err = f.tracker.Login(ctx, "alice", password)
	require.NoError(t, err)
	txns, err := f.tracker.Transactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestTracker_LargeTransactionNeedsConfirmation(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()

	_, err := f.tracker.Add(ctx, decimal.NewFromInt(60000), "Flight tickets", start)
	assert.ErrorIs(t, err, ledger.ErrCancelled)

	var asked int64
	f.tracker.SetConfirmer(service.ConfirmFunc(func(_ context.Context, amount int64, _ string) (bool, error) {
		asked = amount
		return true, nil
	}))
	txn, err := f.tracker.Add(ctx, decimal.NewFromInt(60000), "Flight tickets", start)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), asked)
	assert.Equal(t, model.CategoryTravel, txn.Category)

	spent, limit, err := f.tracker.TodayTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), spent)
	assert.Equal(t, int64(100000), limit)
}

func TestTracker_AnalyticsAndReview(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		f.add(t, 100, "Zomato lunch", i+1)
	}
	outlier := f.add(t, 9000, "Amazon order", 0)

	anomalies, err := f.tracker.Anomalies(ctx)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, outlier.ID, anomalies[0].ID)

	report, err := f.tracker.Report(ctx, analytics.PeriodCategory)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), report.Statistics.Total)
	assert.Len(t, report.Anomalies, 1)
	assert.NotEmpty(t, report.Forecast)

	recs, err := f.tracker.Recommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.CategoryShopping, recs[0].Category)

	forecast, err := f.tracker.Forecast(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, forecast, 3)

	require.NoError(t, f.tracker.ReviewAnomaly(ctx, outlier.ID, ReviewKeep, ""))
	require.NoError(t, f.tracker.ReviewAnomaly(ctx, outlier.ID, ReviewRecategorize, model.CategoryHousing))
	txns, err := f.tracker.Transactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryHousing, txns[len(txns)-1].Category)

	require.NoError(t, f.tracker.ReviewAnomaly(ctx, outlier.ID, ReviewDelete, ""))
	txns, err = f.tracker.Transactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txns, 9)

	err = f.tracker.ReviewAnomaly(ctx, outlier.ID, ReviewKeep, "")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestTracker_Import(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()
	dir := t.TempDir()

	csvPath := testutil.WriteFile(t, dir, "march.csv",
		"amount,description,date\n450,Swiggy dinner,2024-03-01\n-5,Refund,2024-03-02\n1200,Uber airport,2024-03-03\n")

	var calls, lastTotal int
	result, err := f.tracker.Import(ctx, []string{csvPath}, func(done, total int) {
		calls++
		lastTotal = total
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.Skipped[0].Line)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, lastTotal)

	_, err = f.tracker.Import(ctx, []string{filepath.Join(dir, "missing.csv")}, nil)
	assert.Error(t, err)
}

func TestTracker_ExportCSV(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := f.tracker.ExportCSV(ctx, filepath.Join(dir, "out"), false)
	assert.ErrorIs(t, err, analytics.ErrNoTransactions)

	f.add(t, 450, "Swiggy dinner", 0)
	n, err := f.tracker.ExportCSV(ctx, filepath.Join(dir, "nested", "out"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(dir, "nested", "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "amount,description,date,category\n450,Swiggy dinner,2024-06-15,food\n", string(data))

	_, err = f.tracker.ExportCSV(ctx, filepath.Join(dir, "nested", "out.csv"), false)
	assert.ErrorIs(t, err, ErrExportExists)
	_, err = f.tracker.ExportCSV(ctx, filepath.Join(dir, "nested", "out.csv"), true)
	assert.NoError(t, err)
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, "a.csv", ExportPath("a"))
	assert.Equal(t, "a.CSV", ExportPath("a.CSV"))
	assert.Equal(t, "a.txt.csv", ExportPath("a.txt"))
}

func TestTracker_ExportSheets(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()
	f.add(t, 450, "Swiggy dinner", 0)

	id, err := f.tracker.ExportSheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock-sheet", id)
	require.Len(t, f.exporter.GetWriteCalls(), 1)
	assert.Equal(t, analytics.PeriodMonthly, f.exporter.LastReport.Period)
	assert.Len(t, f.exporter.LastTransactions, 1)

	f.exporter.SetWriteError(errors.New("quota"))
	_, err = f.tracker.ExportSheets(ctx)
	assert.Error(t, err)

	plain, err := New(Deps{Store: testutil.NewJSONStore(t)}, Config{Auth: auth.Options{Iterations: 1000}})
	require.NoError(t, err)
	require.NoError(t, plain.SignUp(ctx, "bobby", password))
	_, err = plain.Login(ctx, "bobby", password)
	require.NoError(t, err)
	_, err = plain.ExportSheets(ctx)
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestTracker_Snapshots(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()

	// Login records last_login, which is the first snapshot.
	f.add(t, 450, "Swiggy dinner", 0)
	snaps, err := f.tracker.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	first := snaps[0].ID
	assert.Equal(t, 1, snaps[0].Transactions)

	f.add(t, 300, "Zomato lunch", 0)
	f.add(t, 200, "Ola cab", 0)

	require.NoError(t, f.tracker.RestoreSnapshot(ctx, first))
	txns, err := f.tracker.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Swiggy dinner", txns[0].Description)

	removed, err := f.tracker.PruneSnapshots(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestTracker_SnapshotsUnsupported(t *testing.T) {
	f := newFixture(t, testutil.NewSQLiteStore(t))
	ctx := context.Background()
	require.NoError(t, f.tracker.SignUp(ctx, "carol", password))
	_, err := f.tracker.Login(ctx, "carol", password)
	require.NoError(t, err)

	_, err = f.tracker.Snapshots(ctx)
	assert.ErrorIs(t, err, ErrSnapshotsUnsupported)
}

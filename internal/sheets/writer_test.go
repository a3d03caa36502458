package sheets

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

type fakeAPI struct {
	existing   map[string]int64
	updates    map[string][][]any
	createErr  error
	updateErrs []error
	batches    [][]*sheets.Request
	cleared    []string
	created    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{existing: map[string]int64{}, updates: map[string][][]any{}}
}

func (f *fakeAPI) tabs(_ context.Context, _ string) (map[string]int64, error) {
	out := make(map[string]int64, len(f.existing))
	for k, v := range f.existing {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAPI) create(_ context.Context, _, _ string, tabs []string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	f.created++
	for i, name := range tabs {
		f.existing[name] = int64(i + 10)
	}
	return "sheet-1", "https://example.invalid/sheet-1", nil
}

func (f *fakeAPI) batchUpdate(_ context.Context, _ string, requests []*sheets.Request) error {
	f.batches = append(f.batches, requests)
	for _, r := range requests {
		if r.AddSheet != nil {
			f.existing[r.AddSheet.Properties.Title] = int64(len(f.existing) + 100)
		}
	}
	return nil
}

func (f *fakeAPI) clear(_ context.Context, _, rng string) error {
	f.cleared = append(f.cleared, rng)
	return nil
}

func (f *fakeAPI) update(_ context.Context, _, rng string, values [][]any) error {
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	f.updates[rng] = values
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ServiceAccountPath = "/unused.json"
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func sampleLedger() []model.Transaction {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	return []model.Transaction{
		{ID: "a", Amount: 450, Description: "Swiggy dinner", Date: day(1), Category: model.CategoryFood},
		{ID: "b", Amount: 1200, Description: "Uber airport", Date: day(3), Category: model.CategoryTransport},
		{ID: "c", Amount: 300, Description: "Zomato lunch", Date: day(3), Category: model.CategoryFood},
	}
}

func sampleReport(t *testing.T, txns []model.Transaction) *analytics.Report {
	t.Helper()
	report, err := analytics.NewEngine().GenerateReport(txns, analytics.PeriodMonthly)
	require.NoError(t, err)
	return report
}

func TestWriter_CreatesSpreadsheetAndWritesTabs(t *testing.T) {
	api := newFakeAPI()
	w := newWriter(api, testConfig(), slog.Default())
	txns := sampleLedger()

	id, err := w.Write(context.Background(), txns, sampleReport(t, txns))
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)
	assert.Equal(t, 1, api.created)
	assert.ElementsMatch(t, []string{"Transactions!A:Z", "Summary!A:Z"}, api.cleared)

	rows := api.updates["Transactions!A1"]
	require.Len(t, rows, 4)
	assert.Equal(t, []any{"Date", "Description", "Category", "Amount", "ID"}, rows[0])
	// Newest first, same-day rows keep ledger order.
	assert.Equal(t, "b", rows[1][4])
	assert.Equal(t, "c", rows[2][4])
	assert.Equal(t, "a", rows[3][4])
	assert.Equal(t, "Transport", rows[1][2])

	summary := api.updates["Summary!A1"]
	require.NotEmpty(t, summary)
	assert.Equal(t, []any{"Total Spent", int64(1950)}, summary[3])
	assert.Contains(t, summary, []any{"2024-03", 3, int64(1950)})
	assert.Contains(t, summary, []any{"Food", 2, 750.0, 38.5})

	// Second export reuses the spreadsheet.
	_, err = w.Write(context.Background(), txns, sampleReport(t, txns))
	require.NoError(t, err)
	assert.Equal(t, 1, api.created)
}

func TestWriter_AddsMissingTabs(t *testing.T) {
	api := newFakeAPI()
	api.existing["Sheet1"] = 0
	cfg := testConfig()
	cfg.SpreadsheetID = "existing"
	cfg.EnableFormatting = false
	w := newWriter(api, cfg, nil)
	txns := sampleLedger()

	id, err := w.Write(context.Background(), txns, sampleReport(t, txns))
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
	assert.Zero(t, api.created)
	require.Len(t, api.batches, 1)
	assert.Len(t, api.batches[0], 2)
	assert.Contains(t, api.existing, TransactionsTab)
	assert.Contains(t, api.existing, SummaryTab)
}

func TestWriter_BatchesRows(t *testing.T) {
	api := newFakeAPI()
	cfg := testConfig()
	cfg.BatchSize = 2
	w := newWriter(api, cfg, nil)
	txns := sampleLedger()

	_, err := w.Write(context.Background(), txns, sampleReport(t, txns))
	require.NoError(t, err)
	assert.Len(t, api.updates["Transactions!A1"], 2)
	assert.Len(t, api.updates["Transactions!A3"], 2)
}

func TestWriter_Retries(t *testing.T) {
	txns := sampleLedger()

	t.Run("transient failure is retried", func(t *testing.T) {
		api := newFakeAPI()
		api.updateErrs = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}}
		w := newWriter(api, testConfig(), nil)

		_, err := w.Write(context.Background(), txns, sampleReport(t, txns))
		require.NoError(t, err)
		assert.NotEmpty(t, api.updates["Transactions!A1"])
	})

	t.Run("client error is permanent", func(t *testing.T) {
		api := newFakeAPI()
		api.updateErrs = []error{&googleapi.Error{Code: http.StatusForbidden}, nil, nil}
		w := newWriter(api, testConfig(), nil)

		_, err := w.Write(context.Background(), txns, sampleReport(t, txns))
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrMaxRetries)
		assert.Empty(t, api.updates)
	})

	t.Run("create failure", func(t *testing.T) {
		api := newFakeAPI()
		api.createErr = errors.New("quota")
		w := newWriter(api, testConfig(), nil)

		_, err := w.Write(context.Background(), txns, sampleReport(t, txns))
		assert.ErrorIs(t, err, common.ErrMaxRetries)
	})
}

func TestWriter_RequiresReport(t *testing.T) {
	w := newWriter(newFakeAPI(), testConfig(), nil)
	_, err := w.Write(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSummaryValues_ForecastError(t *testing.T) {
	txns := sampleLedger()
	report := sampleReport(t, txns)
	require.NotEmpty(t, report.ForecastError)

	values := summaryValues(txns, report)
	assert.Contains(t, values, []any{report.ForecastError})
	assert.Contains(t, values, []any{"None detected"})
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(&googleapi.Error{Code: http.StatusTooManyRequests}), common.ErrRateLimit)

	var re *common.RetryableError
	require.ErrorAs(t, classify(&googleapi.Error{Code: http.StatusNotFound}), &re)
	assert.False(t, re.Retryable)

	plain := errors.New("network")
	assert.Same(t, plain, classify(plain))
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, SaveToken(path, token))
	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

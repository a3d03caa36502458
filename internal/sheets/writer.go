package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// spreadsheetAPI is the subset of the Sheets API the writer needs.
type spreadsheetAPI interface {
	tabs(ctx context.Context, spreadsheetID string) (map[string]int64, error)
	create(ctx context.Context, title, timeZone string, tabs []string) (id, url string, err error)
	batchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) error
	clear(ctx context.Context, spreadsheetID, rng string) error
	update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// Writer exports transactions and a report to a spreadsheet.
type Writer struct {
	api    spreadsheetAPI
	logger *slog.Logger
	config Config
}

// NewWriter creates a new Google Sheets writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriter(&serviceAPI{srv: srv}, config, logger), nil
}

func newWriter(api spreadsheetAPI, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{api: api, config: config, logger: logger}
}

// Write replaces the Transactions and Summary tabs with txns and report.
// It returns the spreadsheet ID written to.
func (w *Writer) Write(ctx context.Context, txns []model.Transaction, report *analytics.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("%w: report is required", common.ErrValidation)
	}

	w.logger.Info("starting sheets export",
		"transactions", len(txns),
		"period", report.Period)

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var spreadsheetID string
	var tabIDs map[string]int64
	err := common.WithRetry(ctx, func() error {
		var err error
		spreadsheetID, tabIDs, err = w.prepareSpreadsheet(ctx)
		return classify(err)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to prepare spreadsheet: %w", err)
	}

	tabs := []struct {
		name   string
		values [][]any
	}{
		{TransactionsTab, transactionValues(txns)},
		{SummaryTab, summaryValues(txns, report)},
	}

	for _, tab := range tabs {
		err = common.WithRetry(ctx, func() error {
			if err := w.api.clear(ctx, spreadsheetID, tab.name+"!A:Z"); err != nil {
				return classify(err)
			}
			return classify(w.writeData(ctx, spreadsheetID, tab.name, tab.values))
		}, retryOpts)
		if err != nil {
			return "", fmt.Errorf("failed to write %s tab: %w", tab.name, err)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return classify(w.api.batchUpdate(ctx, spreadsheetID, formatRequests(tabIDs)))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("sheets export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(tabs[0].values)+len(tabs[1].values))

	return spreadsheetID, nil
}

// prepareSpreadsheet opens the configured spreadsheet, adding missing tabs,
// or creates a new one.
func (w *Writer) prepareSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	wanted := []string{TransactionsTab, SummaryTab}

	if w.config.SpreadsheetID == "" {
		id, url, err := w.api.create(ctx, w.config.SpreadsheetName, w.config.TimeZone, wanted)
		if err != nil {
			return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
		}
		w.logger.Info("created new spreadsheet", "id", id, "url", url)
		// Later exports reuse the spreadsheet for the life of the writer.
		w.config.SpreadsheetID = id
	}

	id := w.config.SpreadsheetID
	existing, err := w.api.tabs(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", id, err)
	}

	var add []*sheets.Request
	for _, name := range wanted {
		if _, ok := existing[name]; !ok {
			add = append(add, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
			})
		}
	}
	if len(add) == 0 {
		return id, existing, nil
	}

	if err := w.api.batchUpdate(ctx, id, add); err != nil {
		return "", nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	existing, err = w.api.tabs(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return id, existing, nil
}

// writeData writes values to a tab in batches to stay under API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		rng := fmt.Sprintf("%s!A%d", tab, i+1)
		if err := w.api.update(ctx, spreadsheetID, rng, values[i:end]); err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", tab, "start_row", i+1, "rows", end-i)
	}
	return nil
}

// classify marks client errors other than rate limiting as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", common.ErrRateLimit, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return common.Permanent(err)
	default:
		return err
	}
}

func formatRequests(tabIDs map[string]int64) []*sheets.Request {
	bold := &sheets.CellData{
		UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
	}

	var requests []*sheets.Request
	if id, ok := tabIDs[TransactionsTab]; ok {
		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range:  &sheets.GridRange{SheetId: id, StartRowIndex: 0, EndRowIndex: 1},
					Cell:   bold,
					Fields: "userEnteredFormat.textFormat",
				},
			},
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{SheetId: id, StartRowIndex: 1, StartColumnIndex: 3, EndColumnIndex: 4},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							NumberFormat: &sheets.NumberFormat{Type: "NUMBER", Pattern: "#,##0"},
						},
					},
					Fields: "userEnteredFormat.numberFormat",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:        id,
						GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		)
	}
	if id, ok := tabIDs[SummaryTab]; ok {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: id, StartRowIndex: 0, EndRowIndex: 1},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true, FontSize: 14}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		})
	}
	for _, id := range tabIDs {
		requests = append(requests, &sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{SheetId: id, Dimension: "COLUMNS", StartIndex: 0, EndIndex: 5},
			},
		})
	}
	return requests
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// serviceAPI adapts *sheets.Service to spreadsheetAPI.
type serviceAPI struct {
	srv *sheets.Service
}

func (s *serviceAPI) tabs(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	ss, err := s.srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			out[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return out, nil
}

func (s *serviceAPI) create(ctx context.Context, title, timeZone string, tabs []string) (string, string, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title, TimeZone: timeZone},
	}
	for _, name := range tabs {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: name},
		})
	}
	created, err := s.srv.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", "", err
	}
	return created.SpreadsheetId, created.SpreadsheetUrl, nil
}

func (s *serviceAPI) batchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	_, err := s.srv.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.srv.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s *serviceAPI) update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := s.srv.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

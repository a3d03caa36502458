// Package importer reads transaction files from disk and writes ledger exports.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/ofx"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBytes caps the size of an import file.
const DefaultMaxBytes int64 = 1 << 20

// Import errors.
var (
	ErrFileTooLarge      = fmt.Errorf("%w: file too large", common.ErrLimitExceeded)
	ErrMissingColumns    = fmt.Errorf("%w: CSV needs amount, description, date columns", common.ErrValidation)
	ErrNotRegularFile    = fmt.Errorf("%w: not a regular file", common.ErrValidation)
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", common.ErrValidation)
)

// Header is the column order of exported CSV files.
var Header = []string{"amount", "description", "date", "category"}

var requiredColumns = []string{"amount", "description", "date"}

// OpenFile opens path for reading after checking it is a regular file no
// larger than maxBytes. Symlinks are refused.
func OpenFile(path string, maxBytes int64) (*os.File, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, path, info.Size(), maxBytes)
	}

	f, err := os.Open(path) //nolint:gosec // user chosen import file
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// ReadCSV reads rows keyed by header name. Columns may appear in any order
// and a category column is optional. Line numbers are 1-based with the
// header on line 1.
func ReadCSV(r io.Reader) ([]model.RawTransaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingColumns
		}
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []model.RawTransaction
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, model.RawTransaction{
			Line:        line,
			Amount:      field(record, "amount"),
			Description: field(record, "description"),
			Date:        field(record, "date"),
			Category:    field(record, "category"),
		})
	}

	return rows, nil
}

// WriteCSV writes txns in order with the standard header.
func WriteCSV(w io.Writer, txns []model.Transaction) error {
	stored := make([]model.StoredTransaction, len(txns))
	for i, t := range txns {
		stored[i] = t.Stored()
	}
	return WriteStoredCSV(w, stored)
}

// WriteStoredCSV writes persisted records with the standard header.
func WriteStoredCSV(w io.Writer, txns []model.StoredTransaction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, t := range txns {
		record := []string{strconv.FormatInt(t.Amount, 10), t.Description, t.Date, string(t.Category)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Options configures ReadFiles.
type Options struct {
	MaxBytes   int64
	DebitsOnly bool
}

// ReadFile parses one CSV, OFX or QFX file chosen by extension.
func ReadFile(ctx context.Context, path string, opts Options) ([]model.RawTransaction, error) {
	f, err := OpenFile(path, opts.MaxBytes)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var rows []model.RawTransaction
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = ReadCSV(f)
	case ".ofx", ".qfx":
		rows, err = ofx.NewParser(ofx.Options{DebitsOnly: opts.DebitsOnly}).ParseFile(ctx, f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	source := filepath.Base(path)
	for i := range rows {
		rows[i].Source = source
	}
	return rows, nil
}

// ReadFiles parses paths concurrently and returns their rows in argument
// order. The first failure cancels the rest.
func ReadFiles(ctx context.Context, paths []string, opts Options) ([]model.RawTransaction, error) {
	results := make([][]model.RawTransaction, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			rows, err := ReadFile(ctx, path, opts)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.RawTransaction
	for _, rows := range results {
		all = append(all, rows...)
	}
	return all, nil
}

package ledger

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/fintrack/internal/model"
	"github.com/shopspring/decimal"
)

// SkippedRow records an import row that failed validation.
type SkippedRow struct {
	Source string
	Reason string
	Line   int
}

// ImportResult summarizes an import.
type ImportResult struct {
	Skipped  []SkippedRow
	Imported int
}

// ImportRows validates rows and appends the valid ones in order, persisting
// once at the end. Invalid rows are skipped and reported. A single row may not
// exceed the daily cap, but imported rows do not count against it and skip
// large transaction confirmation. onRow, if set, is called after each row is
// processed. When ctx is cancelled nothing is appended.
func (l *Ledger) ImportRows(ctx context.Context, rows []model.RawTransaction, onRow func(done int)) (ImportResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result ImportResult
	var valid []model.Transaction
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return ImportResult{}, err
		}

		txn, reason := l.parseRow(row)
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedRow{Source: row.Source, Line: row.Line, Reason: reason})
		} else {
			valid = append(valid, txn)
		}

		if onRow != nil {
			onRow(i + 1)
		}
	}
	// A cancel during the last callback still discards the batch.
	if err := ctx.Err(); err != nil {
		return ImportResult{}, err
	}

	result.Imported = len(valid)
	if result.Imported == 0 {
		return result, nil
	}
	l.txns = append(l.txns, valid...)
	l.unsaved = append(l.unsaved, valid...)
	return result, l.saveLocked(ctx)
}

func (l *Ledger) parseRow(row model.RawTransaction) (model.Transaction, string) {
	amount, err := ParseAmount(row.Amount)
	if err != nil {
		return model.Transaction{}, fmt.Sprintf("invalid amount %q", row.Amount)
	}
	if !amount.IsPositive() {
		return model.Transaction{}, "amount must be positive"
	}
	if amount.GreaterThan(decimal.NewFromInt(l.limits.DailyCap)) {
		return model.Transaction{}, fmt.Sprintf("amount exceeds the daily cap of %d", l.limits.DailyCap)
	}
	if !amount.RoundBank(0).IsPositive() {
		return model.Transaction{}, "amount rounds to zero"
	}

	description := strings.TrimSpace(row.Description)
	if utf8.RuneCountInString(description) > l.limits.DescriptionMax {
		return model.Transaction{}, fmt.Sprintf("description exceeds %d characters", l.limits.DescriptionMax)
	}

	date, err := model.ParseDate(row.Date)
	if err != nil {
		return model.Transaction{}, err.Error()
	}

	category, err := model.ParseCategory(row.Category)
	if err != nil {
		category = l.categorizer.Categorize(description)
	}

	return model.Transaction{
		ID:          model.NewID(),
		Amount:      roundAmount(amount),
		Description: description,
		Date:        date,
		Category:    category,
	}, ""
}

// trimAmount strips currency symbols, thousands separators and spaces.
func trimAmount(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\t', '₹', '$', '€', '£':
			return -1
		}
		return r
	}, s)
}

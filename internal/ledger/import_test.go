package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_ImportRows(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, nil)

	rows := []model.RawTransaction{
		{Line: 2, Amount: "450", Description: "Zomato", Date: "2024-06-01"},
		{Line: 3, Amount: "abc", Description: "bad amount", Date: "2024-06-01"},
		{Line: 4, Amount: "-3", Description: "refund", Date: "2024-06-01"},
		{Line: 5, Amount: "120", Description: "bus", Date: "06/01/2024"},
		{Line: 6, Amount: "99999", Description: "gift for mum", Date: "2024-06-02", Category: "Shopping"},
		{Line: 7, Amount: "80", Description: "uber", Date: "2024-06-03", Category: "pets"},
	}

	var progress []int
	result, err := l.ImportRows(ctx, rows, func(done int) { progress = append(progress, done) })
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Skipped, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{result.Skipped[0].Line, result.Skipped[1].Line, result.Skipped[2].Line})
	assert.Contains(t, result.Skipped[1].Reason, "positive")
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, progress)

	txns := l.Transactions()
	require.Len(t, txns, 3)
	assert.Equal(t, model.CategoryFood, txns[0].Category)
	assert.Equal(t, model.CategoryShopping, txns[1].Category, "known category column is kept")
	assert.Equal(t, int64(99999), txns[1].Amount, "imports skip the daily cap and confirmation")
	assert.Equal(t, model.CategoryTransport, txns[2].Category, "unknown category column is derived")

	require.Len(t, store.saved, 1, "import persists once")
	assert.Len(t, store.last().TransactionHistory, 3)
}

func TestLedger_ImportRowsNothingValid(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, nil)

	result, err := l.ImportRows(ctx, []model.RawTransaction{{Line: 2, Amount: "0", Description: "x", Date: "2024-06-01"}}, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Len(t, result.Skipped, 1)
	assert.Empty(t, store.saved)
}

func TestLedger_ImportRowsSaveFailure(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, nil)
	store.err = errors.New("disk full")

	result, err := l.ImportRows(ctx, []model.RawTransaction{{Line: 2, Amount: "10", Description: "tea", Date: "2024-06-01"}}, nil)
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_ImportRowsAmountBounds(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, nil)

	rows := []model.RawTransaction{
		{Line: 2, Amount: "18446744073709551617", Description: "huge", Date: "2024-06-01"},
		{Line: 3, Amount: "9223372036854775808", Description: "max int", Date: "2024-06-01"},
		{Line: 4, Amount: "100001", Description: "over cap", Date: "2024-06-01"},
		{Line: 5, Amount: "0.4", Description: "dust", Date: "2024-06-01"},
		{Line: 6, Amount: "0.5", Description: "half", Date: "2024-06-01"},
		{Line: 7, Amount: "100000", Description: "at cap", Date: "2024-06-01"},
	}

	result, err := l.ImportRows(ctx, rows, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Skipped, 5)
	for _, s := range result.Skipped[:3] {
		assert.Contains(t, s.Reason, "daily cap", "line %d", s.Line)
	}
	for _, s := range result.Skipped[3:] {
		assert.Contains(t, s.Reason, "rounds to zero", "line %d", s.Line)
	}

	txns := l.Transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, int64(100000), txns[0].Amount)
	for _, txn := range txns {
		assert.Positive(t, txn.Amount)
	}
}

func TestLedger_ImportRowsCancelled(t *testing.T) {
	rows := []model.RawTransaction{
		{Line: 2, Amount: "450", Description: "Zomato", Date: "2024-06-01"},
		{Line: 3, Amount: "300", Description: "uber", Date: "2024-06-02"},
	}

	tests := []struct {
		name     string
		cancelAt int
	}{
		{name: "mid import", cancelAt: 1},
		{name: "after last row", cancelAt: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			l, store := newLedger(t, nil)

			result, err := l.ImportRows(ctx, rows, func(done int) {
				if done == tt.cancelAt {
					cancel()
				}
			})
			require.ErrorIs(t, err, context.Canceled)
			assert.Zero(t, result.Imported)
			assert.Zero(t, l.Len())
			assert.Empty(t, store.saved)

			// Nothing from the cancelled batch leaks into the next save.
			_, err = l.Add(context.Background(), dec("50"), "tea", today)
			require.NoError(t, err)
			require.NotEmpty(t, store.saved)
			assert.Len(t, store.last().Transactions, 1)
			assert.Len(t, store.last().TransactionHistory, 1)
		})
	}
}

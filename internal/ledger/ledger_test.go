package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

type fakeStore struct {
	err   error
	saved []*model.UserAccount
}

func (f *fakeStore) Save(_ context.Context, account *model.UserAccount) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, account.Clone())
	return nil
}

func (f *fakeStore) last() *model.UserAccount {
	return f.saved[len(f.saved)-1]
}

func newLedger(t *testing.T, confirmer service.Confirmer) (*Ledger, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	account := model.NewUserAccount("alice", "hash", today)
	l := New(account, store, Options{
		Confirmer: confirmer,
		Now:       func() time.Time { return today },
	})
	require.NoError(t, l.Load())
	return l, store
}

func approve(ok bool) service.Confirmer {
	return service.ConfirmFunc(func(context.Context, int64, string) (bool, error) { return ok, nil })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedger_AddValidation(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("x", 201)

	tests := []struct {
		name        string
		amount      string
		description string
		wantErr     error
	}{
		{name: "zero amount", amount: "0", description: "coffee", wantErr: ErrInvalidAmount},
		{name: "negative amount", amount: "-5", description: "coffee", wantErr: ErrInvalidAmount},
		{name: "amount checked before description", amount: "0", description: long, wantErr: ErrInvalidAmount},
		{name: "description too long", amount: "10", description: long, wantErr: ErrDescriptionTooLong},
		{name: "description at limit", amount: "10", description: strings.Repeat("é", 200)},
		{name: "single day over cap", amount: "100001", description: "car", wantErr: ErrDailyLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store := newLedger(t, approve(true))
			_, err := l.Add(ctx, dec(tt.amount), tt.description, today)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, l.Len())
				assert.Empty(t, store.saved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, l.Len())
		})
	}
}

func TestLedger_AddCategorizesAndPersists(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, nil)

	txn, err := l.Add(ctx, dec("450"), "Swiggy dinner", today)
	require.NoError(t, err)

	assert.Equal(t, model.CategoryFood, txn.Category)
	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), txn.Date)

	require.Len(t, store.saved, 1)
	saved := store.last()
	require.Len(t, saved.Transactions, 1)
	assert.Equal(t, "2024-06-15", saved.Transactions[0].Date)
	assert.Equal(t, txn.ID, saved.Transactions[0].ID)
}

func TestLedger_BankersRounding(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		amount string
		want   int64
	}{
		{amount: "2.5", want: 2},
		{amount: "3.5", want: 4},
		{amount: "10.49", want: 10},
		{amount: "10.51", want: 11},
		{amount: "1.5", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			l, _ := newLedger(t, nil)
			txn, err := l.Add(ctx, dec(tt.amount), "misc", today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, txn.Amount)
		})
	}
}

func TestLedger_RejectsAmountsRoundingToZero(t *testing.T) {
	ctx := context.Background()

	for _, amount := range []string{"0.4", "0.5"} {
		t.Run(amount, func(t *testing.T) {
			l, store := newLedger(t, nil)
			_, err := l.Add(ctx, dec(amount), "misc", today)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Zero(t, l.Len())
			assert.Empty(t, store.saved)
		})
	}
}

func TestLedger_DailyCap(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, approve(true))

	_, err := l.Add(ctx, dec("60000"), "laptop from amazon", today)
	require.NoError(t, err)

	// Another day does not count towards today's total.
	_, err = l.Add(ctx, dec("40000"), "rent", today.AddDate(0, 0, -1))
	require.NoError(t, err)

	_, err = l.Add(ctx, dec("40000"), "rent", today)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), l.TodayTotal())

	_, err = l.Add(ctx, dec("1"), "tea", today)
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.ErrorIs(t, err, common.ErrLimitExceeded)
}

func TestLedger_LargeTransactionConfirmation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		confirmer service.Confirmer
		amount    string
		wantErr   error
		wantAsked bool
	}{
		{name: "at threshold needs no confirmation", amount: "50000", confirmer: nil},
		{name: "declined", amount: "50001", confirmer: approve(false), wantErr: ErrCancelled},
		{name: "no confirmer", amount: "50001", confirmer: nil, wantErr: ErrCancelled},
		{name: "approved", amount: "75000", confirmer: approve(true)},
		{
			name:   "confirmer error",
			amount: "60000",
			confirmer: service.ConfirmFunc(func(context.Context, int64, string) (bool, error) {
				return false, errors.New("stdin closed")
			}),
			wantErr: ErrCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store := newLedger(t, tt.confirmer)
			_, err := l.Add(ctx, dec(tt.amount), "flight", today)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, l.Len())
				assert.Empty(t, store.saved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, l.Len())
		})
	}
}

func TestLedger_SaveFailureKeepsTransaction(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, nil)
	store.err = errors.New("read-only file system")

	txn, err := l.Add(ctx, dec("100"), "uber", today)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, model.CategoryTransport, txn.Category)

	store.err = nil
	require.NoError(t, l.Save(ctx))
	saved := store.last()
	assert.Len(t, saved.Transactions, 1)
	assert.Len(t, saved.TransactionHistory, 1, "history gets the entry once the save succeeds")
}

func TestLedger_HistoryIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, nil)

	first, err := l.Add(ctx, dec("100"), "uber", today)
	require.NoError(t, err)
	_, err = l.Add(ctx, dec("200"), "netflix", today)
	require.NoError(t, err)
	assert.Len(t, store.last().TransactionHistory, 2)

	require.NoError(t, l.UpdateCategory(ctx, first.ID, model.CategoryTravel))
	require.NoError(t, l.Delete(ctx, first.ID))
	require.NoError(t, l.Save(ctx))

	saved := store.last()
	assert.Len(t, saved.Transactions, 1)
	assert.Len(t, saved.TransactionHistory, 2)
	assert.Equal(t, model.CategoryTransport, saved.TransactionHistory[0].Category)
}

func TestLedger_EditByID(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, nil)

	a, err := l.Add(ctx, dec("100"), "coffee", today)
	require.NoError(t, err)
	// Same date, description and amount: a distinct transaction.
	b, err := l.Add(ctx, dec("100"), "coffee", today)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	require.NoError(t, l.UpdateCategory(ctx, b.ID, model.CategoryFood))
	got, ok := l.Find(a.ID)
	require.True(t, ok)
	assert.Equal(t, model.CategoryOther, got.Category)
	got, _ = l.Find(b.ID)
	assert.Equal(t, model.CategoryFood, got.Category)

	updated, err := l.Update(ctx, a.ID, dec("300"), "movie night", today.AddDate(0, 0, -2))
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.Amount)
	assert.Equal(t, model.CategoryEntertainment, updated.Category)

	require.NoError(t, l.Delete(ctx, b.ID))
	assert.Equal(t, 1, l.Len())

	assert.ErrorIs(t, l.Delete(ctx, b.ID), ErrTransactionNotFound)
	assert.ErrorIs(t, l.UpdateCategory(ctx, "missing", model.CategoryFood), ErrTransactionNotFound)
	assert.ErrorIs(t, l.UpdateCategory(ctx, a.ID, "pets"), model.ErrUnknownCategory)
	_, err = l.Update(ctx, "missing", dec("1"), "x", today)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestLedger_UpdateExcludesItselfFromDailyCap(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, approve(true))

	txn, err := l.Add(ctx, dec("90000"), "hotel", today)
	require.NoError(t, err)

	_, err = l.Update(ctx, txn.ID, dec("95000"), "hotel", today)
	require.NoError(t, err)

	_, err = l.Update(ctx, txn.ID, dec("100001"), "hotel", today)
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
}

func TestLedger_Load(t *testing.T) {
	account := model.NewUserAccount("alice", "hash", today)
	account.Transactions = []model.StoredTransaction{
		{ID: "1", Amount: 10, Description: "a", Date: "2024-01-01", Category: model.CategoryFood},
		{Amount: 20, Description: "legacy", Date: "2024-01-02", Category: model.CategoryHousing},
	}

	l := New(account, &fakeStore{}, Options{})
	require.NoError(t, l.Load())
	txns := l.Transactions()
	require.Len(t, txns, 2)
	assert.Equal(t, "1", txns[0].ID)
	assert.NotEmpty(t, txns[1].ID)

	account.Transactions = append(account.Transactions, model.StoredTransaction{Amount: 1, Date: "yesterday"})
	err := l.Load()
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1,250.50", want: "1250.5"},
		{in: " ₹450 ", want: "450"},
		{in: "12e2", want: "1200"},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

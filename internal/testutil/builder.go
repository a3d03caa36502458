package testutil

import (
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/model"
)

// TxnBuilder builds transaction slices for analytics and export tests.
//
//	txns := testutil.NewTxnBuilder(t).
//		Add("2024-03-01", 450, "Swiggy dinner", model.CategoryFood).
//		Repeat("2024-03-02", 5, 100, "Uber", model.CategoryTransport).
//		Build()
type TxnBuilder struct {
	t    *testing.T
	txns []model.Transaction
}

// NewTxnBuilder starts an empty builder.
func NewTxnBuilder(t *testing.T) *TxnBuilder {
	return &TxnBuilder{t: t}
}

// Add appends one transaction dated date (YYYY-MM-DD).
func (b *TxnBuilder) Add(date string, amount int64, description string, category model.Category) *TxnBuilder {
	b.t.Helper()

	d, err := model.ParseDate(date)
	if err != nil {
		b.t.Fatalf("bad test date %q: %v", date, err)
	}
	b.txns = append(b.txns, model.Transaction{
		ID:          model.NewID(),
		Amount:      amount,
		Description: description,
		Date:        d,
		Category:    category,
	})
	return b
}

// Repeat appends n identical transactions on consecutive days starting at date.
func (b *TxnBuilder) Repeat(date string, n int, amount int64, description string, category model.Category) *TxnBuilder {
	b.t.Helper()

	start, err := model.ParseDate(date)
	if err != nil {
		b.t.Fatalf("bad test date %q: %v", date, err)
	}
	for i := 0; i < n; i++ {
		b.Add(start.AddDate(0, 0, i).Format(model.DateLayout), amount, description, category)
	}
	return b
}

// Monthly appends one transaction on the first of each month for amounts.
func (b *TxnBuilder) Monthly(firstMonth string, description string, category model.Category, amounts ...int64) *TxnBuilder {
	b.t.Helper()

	start, err := time.Parse("2006-01", firstMonth)
	if err != nil {
		b.t.Fatalf("bad test month %q: %v", firstMonth, err)
	}
	for i, amount := range amounts {
		b.Add(start.AddDate(0, i, 0).Format(model.DateLayout), amount, description, category)
	}
	return b
}

// Build returns a copy of the accumulated transactions.
func (b *TxnBuilder) Build() []model.Transaction {
	out := make([]model.Transaction, len(b.txns))
	copy(out, b.txns)
	return out
}

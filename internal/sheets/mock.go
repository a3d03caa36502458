package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/fintrack/internal/analytics"
	"github.com/Veraticus/fintrack/internal/model"
)

// MockWriter records exports in memory for tests.
type MockWriter struct {
	WriteFunc        func(ctx context.Context, txns []model.Transaction, report *analytics.Report) (string, error)
	LastReport       *analytics.Report
	WriteCalls       []WriteCall
	LastTransactions []model.Transaction
	WriteCallCount   int
	mu               sync.Mutex
}

// WriteCall represents a single call to Write.
type WriteCall struct {
	Error        error
	Report       *analytics.Report
	Transactions []model.Transaction
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Write records the call and returns the result of WriteFunc, or "mock-sheet".
func (m *MockWriter) Write(ctx context.Context, txns []model.Transaction, report *analytics.Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastTransactions = txns
	m.LastReport = report

	id := "mock-sheet"
	var err error
	if m.WriteFunc != nil {
		id, err = m.WriteFunc(ctx, txns, report)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Transactions: txns,
		Report:       report,
		Error:        err,
	})

	return id, err
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// SetWriteError configures the mock to fail every Write call with err.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ []model.Transaction, _ *analytics.Report) (string, error) {
		return "", err
	}
}

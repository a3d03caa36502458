package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(username string) *model.UserAccount {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return model.NewUserAccount(username, "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdefcafe", created)
}

func stored(id string, amount int64, desc, date string, cat model.Category) model.StoredTransaction {
	return model.StoredTransaction{ID: id, Amount: amount, Description: desc, Date: date, Category: cat}
}

// runStoreContract exercises the behaviour every backend shares.
func runStoreContract(t *testing.T, open func(t *testing.T) service.UserStore) {
	ctx := context.Background()

	t.Run("create and load", func(t *testing.T) {
		store := open(t)
		account := newAccount("alice")

		exists, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, store.Create(ctx, account))

		exists, err = store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, exists)

		loaded, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", loaded.Username)
		assert.Equal(t, account.PasswordHash, loaded.PasswordHash)
		assert.True(t, account.CreatedAt.Equal(loaded.CreatedAt))
		assert.Nil(t, loaded.LastLogin)
		assert.Empty(t, loaded.Transactions)
		assert.Empty(t, loaded.TransactionHistory)
	})

	t.Run("duplicate user", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.Create(ctx, newAccount("alice")))
		err := store.Create(ctx, newAccount("alice"))
		assert.ErrorIs(t, err, service.ErrDuplicateUser)
	})

	t.Run("unknown user", func(t *testing.T) {
		store := open(t)
		_, err := store.Load(ctx, "nobody")
		assert.ErrorIs(t, err, service.ErrUserNotFound)

		_, err = store.Load(ctx, "../etc")
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})

	t.Run("save keeps order and appends history", func(t *testing.T) {
		store := open(t)
		account := newAccount("bob1")
		require.NoError(t, store.Create(ctx, account))

		login := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
		account.LastLogin = &login
		account.Transactions = []model.StoredTransaction{
			stored("b", 200, "netflix", "2024-05-02", model.CategoryEntertainment),
			stored("a", 100, "uber", "2024-05-01", model.CategoryTransport),
		}
		account.TransactionHistory = append([]model.StoredTransaction{}, account.Transactions...)
		require.NoError(t, store.Save(ctx, account))

		account.Transactions = account.Transactions[:1]
		account.TransactionHistory = append(account.TransactionHistory, stored("c", 300, "rent", "2024-05-03", model.CategoryHousing))
		account.Transactions = append(account.Transactions, account.TransactionHistory[2])
		require.NoError(t, store.Save(ctx, account))

		loaded, err := store.Load(ctx, "bob1")
		require.NoError(t, err)
		require.NotNil(t, loaded.LastLogin)
		assert.True(t, login.Equal(*loaded.LastLogin))
		assert.Equal(t, account.Transactions, loaded.Transactions)
		assert.Equal(t, account.TransactionHistory, loaded.TransactionHistory)
	})

	t.Run("invalid account", func(t *testing.T) {
		store := open(t)
		err := store.Save(ctx, &model.UserAccount{Username: "x/y", PasswordHash: "h"})
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.ErrorIs(t, store.Save(ctx, nil), ErrNilParameter)
	})
}

func TestJSONStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) service.UserStore {
		store, err := NewJSONStore(filepath.Join(t.TempDir(), "user_data"))
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) service.UserStore {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fintrack.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestSQLiteStore_SaveUnknownUser(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	err = store.Save(context.Background(), newAccount("ghost"))
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fintrack.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	account := newAccount("carol")
	account.Transactions = []model.StoredTransaction{stored("1", 10, "tea", "2024-01-01", model.CategoryOther)}
	require.NoError(t, store.Create(ctx, account))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loaded, err := store.Load(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, loaded.Transactions, 1)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(BackendJSON, dir, "")
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, store)

	store, err = Open(BackendSQLite, dir, "")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	assert.FileExists(t, filepath.Join(dir, "fintrack.db"))
	require.NoError(t, store.Close())

	_, err = Open("postgres", dir, "")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.UserStore on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore migrates and opens the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, persistErr("create database directory", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, persistErr("migrate database", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, persistErr("open database", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, persistErr("ping database", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists reports whether username has a record.
func (s *SQLiteStore) Exists(ctx context.Context, username string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateUsername(username); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, persistErr("check user", err)
	}
	return true, nil
}

// Create inserts a new user with its transactions.
func (s *SQLiteStore) Create(ctx context.Context, account *model.UserAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, account.Username).Scan(&one)
		if err == nil {
			return service.ErrDuplicateUser
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return persistErr("check user", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, created_at, last_login) VALUES (?, ?, ?, ?)`,
			account.Username, account.PasswordHash, formatTime(account.CreatedAt), formatTimePtr(account.LastLogin))
		if err != nil {
			return persistErr("insert user", err)
		}
		return s.writeTransactionsTx(ctx, tx, account)
	})
}

// Load reads a user and its transactions.
func (s *SQLiteStore) Load(ctx context.Context, username string) (*model.UserAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, service.ErrUserNotFound
	}

	var (
		account   model.UserAccount
		createdAt string
		lastLogin sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, created_at, last_login FROM users WHERE username = ?`, username).
		Scan(&account.Username, &account.PasswordHash, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrUserNotFound
	}
	if err != nil {
		return nil, persistErr("load user", err)
	}

	if account.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, persistErr("parse created_at", err)
	}
	if lastLogin.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastLogin.String)
		if err != nil {
			return nil, persistErr("parse last_login", err)
		}
		account.LastLogin = &t
	}

	account.Transactions, err = s.queryTransactions(ctx,
		`SELECT id, amount, description, date, category FROM transactions WHERE username = ? ORDER BY position`, username)
	if err != nil {
		return nil, persistErr("load transactions", err)
	}
	account.TransactionHistory, err = s.queryTransactions(ctx,
		`SELECT COALESCE(transaction_id, ''), amount, description, date, category FROM transaction_history WHERE username = ? ORDER BY seq`, username)
	if err != nil {
		return nil, persistErr("load history", err)
	}

	return &account, nil
}

// Save replaces the user's live transactions and appends the part of the
// history not yet stored, in one SQL transaction.
func (s *SQLiteStore) Save(ctx context.Context, account *model.UserAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ?, last_login = ? WHERE username = ?`,
			account.PasswordHash, formatTimePtr(account.LastLogin), account.Username)
		if err != nil {
			return persistErr("update user", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return service.ErrUserNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE username = ?`, account.Username); err != nil {
			return persistErr("clear transactions", err)
		}
		return s.writeTransactionsTx(ctx, tx, account)
	})
}

func (s *SQLiteStore) writeTransactionsTx(ctx context.Context, tx *sql.Tx, account *model.UserAccount) error {
	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (id, username, position, amount, description, date, category) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return persistErr("prepare insert", err)
	}
	defer func() { _ = insert.Close() }()

	for i, t := range account.Transactions {
		id := t.ID
		if id == "" {
			id = model.NewID()
		}
		if _, err := insert.ExecContext(ctx, id, account.Username, i, t.Amount, t.Description, t.Date, string(t.Category)); err != nil {
			return persistErr("insert transaction", err)
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transaction_history WHERE username = ?`, account.Username).Scan(&stored); err != nil {
		return persistErr("count history", err)
	}
	if stored >= len(account.TransactionHistory) {
		return nil
	}

	appendHistory, err := tx.PrepareContext(ctx,
		`INSERT INTO transaction_history (username, seq, transaction_id, amount, description, date, category) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return persistErr("prepare history insert", err)
	}
	defer func() { _ = appendHistory.Close() }()

	for i := stored; i < len(account.TransactionHistory); i++ {
		t := account.TransactionHistory[i]
		if _, err := appendHistory.ExecContext(ctx, account.Username, i, t.ID, t.Amount, t.Description, t.Date, string(t.Category)); err != nil {
			return persistErr("insert history", err)
		}
	}
	return nil
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query, username string) ([]model.StoredTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []model.StoredTransaction{}
	for rows.Next() {
		var t model.StoredTransaction
		var category string
		if err := rows.Scan(&t.ID, &t.Amount, &t.Description, &t.Date, &category); err != nil {
			return nil, err
		}
		t.Category = model.Category(category)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

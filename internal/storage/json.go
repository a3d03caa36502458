package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/fintrack/internal/importer"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

const (
	latestFile      = "latest_data.json"
	dataDir         = "data"
	timestampLayout = "20060102_150405.000000"
	dirPerm         = 0o700
	filePerm        = 0o600
)

// JSONStore keeps one directory per user under root:
//
//	user_<name>/latest_data.json              current record, overwritten atomically
//	user_<name>/data/session_<ts>.json        snapshot written on every save
//	user_<name>/data/transactions_<ts>.csv    CSV copy of the snapshot
type JSONStore struct {
	now  func() time.Time
	root string
	mu   sync.Mutex
}

// NewJSONStore creates the root directory if needed.
func NewJSONStore(root string) (*JSONStore, error) {
	if err := validateString(root, "root"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, persistErr("create data directory", err)
	}
	if err := os.Chmod(root, dirPerm); err != nil {
		return nil, persistErr("restrict data directory", err)
	}
	return &JSONStore{root: root, now: time.Now}, nil
}

// SetClock replaces the clock used to name snapshots.
func (s *JSONStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Root returns the store directory.
func (s *JSONStore) Root() string {
	return s.root
}

func (s *JSONStore) userDir(username string) string {
	return filepath.Join(s.root, "user_"+username)
}

// Exists reports whether username has a record.
func (s *JSONStore) Exists(ctx context.Context, username string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateUsername(username); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(s.userDir(username), latestFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, persistErr("check user", err)
	}
}

// Create writes the first record for a new user.
func (s *JSONStore) Create(ctx context.Context, account *model.UserAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.userDir(account.Username)
	if _, err := os.Stat(filepath.Join(dir, latestFile)); err == nil {
		return service.ErrDuplicateUser
	}
	if err := os.MkdirAll(filepath.Join(dir, dataDir), dirPerm); err != nil {
		return persistErr("create user directory", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, latestFile), account); err != nil {
		return persistErr("write account", err)
	}
	return nil
}

// Load reads the latest record for username.
func (s *JSONStore) Load(ctx context.Context, username string) (*model.UserAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, service.ErrUserNotFound
	}

	account, err := readAccount(filepath.Join(s.userDir(username), latestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, service.ErrUserNotFound
	}
	if err != nil {
		return nil, persistErr("read account", err)
	}
	return account, nil
}

// Save overwrites the latest record and writes a timestamped snapshot with
// its CSV copy.
func (s *JSONStore) Save(ctx context.Context, account *model.UserAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.userDir(account.Username), dataDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return persistErr("create snapshot directory", err)
	}

	stamp := s.uniqueStamp(dir)
	if err := writeJSONAtomic(filepath.Join(dir, "session_"+stamp+".json"), account); err != nil {
		return persistErr("write snapshot", err)
	}
	if err := writeJSONAtomic(filepath.Join(s.userDir(account.Username), latestFile), account); err != nil {
		return persistErr("write account", err)
	}
	if len(account.Transactions) > 0 {
		if err := writeCSV(filepath.Join(dir, "transactions_"+stamp+".csv"), account.Transactions); err != nil {
			return persistErr("write CSV snapshot", err)
		}
	}

	slog.Debug("Saved user data", "username", account.Username, "snapshot", stamp)
	return nil
}

// Close is a no-op for the file store.
func (s *JSONStore) Close() error {
	return nil
}

// Snapshots returns the snapshot manager for username.
func (s *JSONStore) Snapshots(username string) (*SnapshotManager, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	return &SnapshotManager{store: s, username: username}, nil
}

// uniqueStamp returns a timestamp not yet used for a snapshot in dir.
func (s *JSONStore) uniqueStamp(dir string) string {
	base := s.now().Format(timestampLayout)
	stamp := base
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, "session_"+stamp+".json")); errors.Is(err, fs.ErrNotExist) {
			return stamp
		}
		stamp = fmt.Sprintf("%s_%d", base, i)
	}
}

func readAccount(path string) (*model.UserAccount, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from a validated username
	if err != nil {
		return nil, err
	}
	var account model.UserAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &account, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			slog.Error("failed to remove temporary file", "path", tmp, "error", rmErr)
		}
		return err
	}
	return os.Chmod(path, filePerm)
}

func writeCSV(path string, txns []model.StoredTransaction) error {
	var buf bytes.Buffer
	if err := importer.WriteStoredCSV(&buf, txns); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/fintrack/internal/model"
)

// ErrSnapshotNotFound is returned for unknown snapshot ids.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotInfo describes one saved session snapshot.
type SnapshotInfo struct {
	CreatedAt    time.Time
	ID           string
	FileSize     int64
	Transactions int
	HasCSV       bool
}

// SnapshotManager lists, restores and prunes a user's session snapshots.
type SnapshotManager struct {
	store    *JSONStore
	username string
}

func (sm *SnapshotManager) dir() string {
	return filepath.Join(sm.store.userDir(sm.username), dataDir)
}

func (sm *SnapshotManager) jsonPath(id string) string {
	return filepath.Join(sm.dir(), "session_"+id+".json")
}

func (sm *SnapshotManager) csvPath(id string) string {
	return filepath.Join(sm.dir(), "transactions_"+id+".csv")
}

// List returns the snapshots newest first.
func (sm *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(sm.dir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("read snapshot directory", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "session_"), ".json")

		info, err := sm.describe(id)
		if err != nil {
			slog.Debug("Skipping unreadable snapshot", "id", id, "error", err)
			continue
		}
		snapshots = append(snapshots, info)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].ID > snapshots[j].ID
		}
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

func (sm *SnapshotManager) describe(id string) (SnapshotInfo, error) {
	stat, err := os.Stat(sm.jsonPath(id))
	if err != nil {
		return SnapshotInfo{}, err
	}
	account, err := readAccount(sm.jsonPath(id))
	if err != nil {
		return SnapshotInfo{}, err
	}

	created, err := time.ParseInLocation(timestampLayout, stampPrefix(id), time.Local)
	if err != nil {
		created = stat.ModTime()
	}
	_, csvErr := os.Stat(sm.csvPath(id))

	return SnapshotInfo{
		ID:           id,
		CreatedAt:    created,
		FileSize:     stat.Size(),
		Transactions: len(account.Transactions),
		HasCSV:       csvErr == nil,
	}, nil
}

// Restore replaces the latest record with snapshot id. The password hash and
// last login of the current record are kept.
func (sm *SnapshotManager) Restore(ctx context.Context, id string) (*model.UserAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSnapshotID(id); err != nil {
		return nil, err
	}

	sm.store.mu.Lock()
	defer sm.store.mu.Unlock()

	snapshot, err := readAccount(sm.jsonPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, persistErr("read snapshot", err)
	}

	latestPath := filepath.Join(sm.store.userDir(sm.username), latestFile)
	current, err := readAccount(latestPath)
	if err != nil {
		return nil, persistErr("read account", err)
	}

	snapshot.Username = current.Username
	snapshot.PasswordHash = current.PasswordHash
	snapshot.LastLogin = current.LastLogin
	snapshot.CreatedAt = current.CreatedAt

	if err := writeJSONAtomic(latestPath, snapshot); err != nil {
		return nil, persistErr("write account", err)
	}

	slog.Info("Restored snapshot", "username", sm.username, "id", id)
	return snapshot, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were removed.
func (sm *SnapshotManager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	snapshots, err := sm.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(snapshots) <= keep {
		return 0, nil
	}

	sm.store.mu.Lock()
	defer sm.store.mu.Unlock()

	removed := 0
	for _, snap := range snapshots[keep:] {
		if err := os.Remove(sm.jsonPath(snap.ID)); err != nil {
			return removed, persistErr("remove snapshot", err)
		}
		if err := os.Remove(sm.csvPath(snap.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to remove CSV snapshot", "id", snap.ID, "error", err)
		}
		removed++
	}
	return removed, nil
}

// stampPrefix drops the collision suffix added by uniqueStamp.
func stampPrefix(id string) string {
	if len(id) > len(timestampLayout) {
		return id[:len(timestampLayout)]
	}
	return id
}

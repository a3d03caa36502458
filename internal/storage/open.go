package storage

import (
	"fmt"
	"path/filepath"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/service"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the configured backend. An empty dbPath puts the SQLite
// database inside dataDir.
func Open(backend, dataDir, dbPath string) (service.UserStore, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(dataDir)
	case BackendSQLite:
		if dbPath == "" {
			dbPath = filepath.Join(dataDir, "fintrack.db")
		}
		return NewSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("%w: storage backend %q", common.ErrInvalidConfig, backend)
	}
}

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backend identifiers.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open selects a backend by name. dataDir is ignored for the memory backend.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB:
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: leveldb requires a data directory")
		}
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case BackendBolt:
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: bolt requires a data directory")
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
		return NewBoltDB(filepath.Join(dataDir, "state.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

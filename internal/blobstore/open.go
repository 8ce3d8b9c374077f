package blobstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chanpulse/pkg/livecache"
)

const (
	// DriverMemory keeps envelopes for the lifetime of the process.
	DriverMemory = "memory"
	// DriverSQLite keeps envelopes in a SQLite file.
	DriverSQLite = "sqlite"
)

// Store is a blob store that may hold resources.
type Store interface {
	livecache.BlobStore
	Close() error
}

// Pruner is implemented by stores that can drop envelopes captured before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Pruner = (*SQLite)(nil)

// Open opens the store selected by driver. Path is required for sqlite.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		store, err := OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open blob store %s: %w", DriverSQLite, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("open blob store: unsupported driver %q", driver)
	}
}

// Close releases nothing; it lets Memory satisfy Store.
func (m *Memory) Close() error {
	return nil
}

package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"chanpulse/internal/blobstore/migrations"
	"chanpulse/pkg/livecache"

	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// SQLite persists envelopes in a single SQLite table keyed by cache key.
type SQLite struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens a SQLite envelope store and applies embedded migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads the envelope stored under key.
func (s *SQLite) Get(ctx context.Context, key string) (livecache.Envelope, bool, error) {
	if err := ctx.Err(); err != nil {
		return livecache.Envelope{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return livecache.Envelope{}, false, fmt.Errorf("storage is not configured")
	}

	var (
		capturedAt int64
		payload    []byte
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT captured_at, payload FROM envelopes WHERE cache_key = ?`,
		key,
	)
	if err := row.Scan(&capturedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return livecache.Envelope{}, false, nil
		}
		return livecache.Envelope{}, false, fmt.Errorf("get envelope %s: %w", key, err)
	}

	return livecache.Envelope{CapturedAt: fromMillis(capturedAt), Payload: payload}, true, nil
}

// Put upserts the envelope stored under key.
func (s *SQLite) Put(ctx context.Context, key string, envelope livecache.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}
	payload := envelope.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO envelopes (cache_key, captured_at, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   captured_at = excluded.captured_at,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		key,
		toMillis(envelope.CapturedAt),
		payload,
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put envelope %s: %w", key, err)
	}

	return nil
}

// Remove deletes the envelope stored under key. Missing keys are not an error.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM envelopes WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("remove envelope %s: %w", key, err)
	}

	return nil
}

// Prune deletes envelopes captured before cutoff and reports how many were removed.
func (s *SQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM envelopes WHERE captured_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune envelopes: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune envelopes: %w", err)
	}

	return removed, nil
}

// applyMigrations executes every embedded *.sql file at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file,
			toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}

	return nil
}

func extractUpMigration(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"

	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, downMarker)
	if downIdx == -1 || downIdx < upIdx {
		return content[upIdx+len(upMarker):]
	}
	return content[upIdx+len(upMarker) : downIdx]
}

var (
	_ livecache.BlobStore = (*SQLite)(nil)
	_ livecache.BlobStore = (*Memory)(nil)
)

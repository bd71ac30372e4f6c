// Package store persists instance bindings and the pause/resume journal in
// SQLite. WAL mode keeps reads concurrent with the single writer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// FileName is the database file created inside the data directory
const FileName = "autopaused.db"

// Store wraps a SQLite connection with WAL mode and migrations.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dir/autopaused.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := filepath.Join(dir, FileName) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bindings (
			instance_id   TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			provider      TEXT NOT NULL,
			gpu_type      TEXT NOT NULL DEFAULT '',
			instance_type TEXT NOT NULL DEFAULT '',
			region        TEXT NOT NULL DEFAULT '',
			hourly_rate   REAL NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_owner ON bindings(owner_id)`,

		`CREATE TABLE IF NOT EXISTS pause_events (
			id             TEXT PRIMARY KEY,
			kind           TEXT NOT NULL,
			instance_id    TEXT NOT NULL,
			owner_id       TEXT NOT NULL,
			reason         TEXT NOT NULL DEFAULT '',
			at             INTEGER NOT NULL,
			hourly_rate    REAL NOT NULL DEFAULT 0,
			paused_seconds REAL NOT NULL DEFAULT 0,
			savings        REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_instance ON pause_events(instance_id, at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_owner ON pause_events(owner_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec %q: %w", m[:40], err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/YumaSeno/AIDeveloper/internal/config"
	_ "modernc.org/sqlite"
)

// Store is a queryable SQLite mirror of runs. The JSONL event log stays the
// source of truth; nothing here is read back by the scheduler.
type Store struct {
	db *sql.DB
}

func New(cfg config.StoreConfig) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL lets the web server read while the scheduler writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			project     TEXT NOT NULL,
			resumed     BOOLEAN DEFAULT FALSE,
			status      TEXT DEFAULT 'running',
			started_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project, started_at)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			run_id                TEXT NOT NULL REFERENCES runs(id),
			name                  TEXT NOT NULL,
			role                  TEXT NOT NULL,
			project_role          TEXT,
			detailed_instructions TEXT,
			kind                  TEXT NOT NULL,
			added_at              DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			project        TEXT NOT NULL,
			idx            INTEGER NOT NULL,
			run_id         TEXT NOT NULL,
			log_type       TEXT NOT NULL,
			sender         TEXT,
			recipient      TEXT,
			target_type    TEXT,
			special_action TEXT,
			is_error       BOOLEAN DEFAULT FALSE,
			data           TEXT NOT NULL,
			created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (project, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_sender ON entries(project, sender)`,
		`CREATE TABLE IF NOT EXISTS phase_transitions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL REFERENCES runs(id),
			from_phase TEXT,
			to_phase   TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

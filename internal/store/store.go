// Package store is the persisted ledger for estates: members, inventory,
// claims, distributions, milestones, alerts, audit entries, intent notes,
// suggestions, and conversation state. It is the leaf dependency for every
// other component. SQLite only; callers never see the backend.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database. A single writer at a time; the mutex
// serializes mutating operations so sweeps and distributions never interleave.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the SQLite database at the given path, creating the
// schema if needed. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS estates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		deceased_name TEXT NOT NULL,
		executor_name TEXT NOT NULL,
		executor_email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS family_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		join_code TEXT UNIQUE,
		status TEXT NOT NULL DEFAULT 'invited',
		invited_at TEXT,
		joined_at TEXT,
		last_nudge_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_members_estate ON family_members(estate_id);

	CREATE TABLE IF NOT EXISTS inventory_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		name TEXT NOT NULL,
		description TEXT,
		location TEXT,
		category TEXT,
		estimated_value REAL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'unclaimed',
		added_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_estate ON inventory_items(estate_id);

	CREATE TABLE IF NOT EXISTS claims (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES inventory_items(id),
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		member_id INTEGER NOT NULL,
		member_name TEXT NOT NULL,
		claim_type TEXT NOT NULL DEFAULT 'want',
		priority INTEGER DEFAULT 1,
		note TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_claims_item ON claims(item_id);

	CREATE TABLE IF NOT EXISTS distributions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL UNIQUE REFERENCES inventory_items(id),
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		winner_member_id INTEGER NOT NULL,
		winner_name TEXT NOT NULL,
		method TEXT NOT NULL,
		value REAL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS milestones (
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		key TEXT NOT NULL,
		label TEXT NOT NULL,
		target_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		completed_at TEXT,
		notes TEXT,
		PRIMARY KEY (estate_id, key)
	);

	CREATE TABLE IF NOT EXISTS timeline_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		detail TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_estate ON timeline_alerts(estate_id, active);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		item_id INTEGER,
		actor_id INTEGER,
		actor_name TEXT NOT NULL,
		action_type TEXT NOT NULL,
		public_summary TEXT NOT NULL,
		metadata TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_estate ON audit_log(estate_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_item ON audit_log(item_id);

	CREATE TABLE IF NOT EXISTS intent_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES inventory_items(id),
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		member_id INTEGER NOT NULL,
		member_name TEXT NOT NULL,
		content TEXT NOT NULL,
		visibility TEXT NOT NULL DEFAULT 'private',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_item ON intent_notes(item_id);

	CREATE TABLE IF NOT EXISTS item_suggestions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		estate_id INTEGER NOT NULL REFERENCES estates(id),
		name TEXT NOT NULL,
		description TEXT,
		suggested_by_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS estate_schedules (
		estate_id INTEGER PRIMARY KEY REFERENCES estates(id),
		target_end_date TEXT,
		urgency TEXT NOT NULL DEFAULT 'normal',
		legal_deadlines TEXT,
		notes TEXT,
		onboarding_complete INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS conversation_state (
		channel TEXT PRIMARY KEY,
		state TEXT NOT NULL DEFAULT 'idle',
		last_message TEXT,
		answers TEXT,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// formatTime renders a timestamp for storage. Zero times become empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime is lenient: malformed or empty timestamps come back as the zero
// time so a single bad row never aborts a caller iterating many.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

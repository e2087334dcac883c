// Package store provides SQLite-based persistence for novelty ledgers.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for expected conditions.
var (
	// ErrLedgerNotFound is returned when no ledger exists for a key.
	ErrLedgerNotFound = errors.New("ledger not found")

	// ErrVersionConflict is returned when a compare-and-swap update lost
	// the race against a concurrent writer.
	ErrVersionConflict = errors.New("ledger version conflict")
)

// Store represents the SQLite database store.
type Store struct {
	db *sql.DB
}

// New creates a new store connection.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isConstraintErr reports whether err is a SQLite constraint violation.
// On the ledgers primary key that means a concurrent insert won the race;
// any other error is a genuine storage failure and must stay distinguishable.
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// Initialize creates the database schema.
func (s *Store) Initialize() error {
	schema := `
	-- Per-key novelty ledgers. all_hashes only ever grows; version is the
	-- optimistic-concurrency token for compare-and-swap updates.
	CREATE TABLE IF NOT EXISTS ledgers (
		key TEXT PRIMARY KEY,
		all_hashes JSON NOT NULL,
		latest_hashes JSON NOT NULL,
		version INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/mechmon/internal/models"
)

// LedgerStore defines the contract for novelty ledger persistence.
// Updates use compare-and-swap semantics so that two classifications for
// the same key never lose each other's hashes.
type LedgerStore interface {
	// GetLedger returns the ledger for a key.
	// Returns ErrLedgerNotFound if none exists.
	GetLedger(ctx context.Context, key string) (*models.NoveltyLedger, error)

	// PutLedger writes the ledger if its stored version still equals
	// expectedVersion (0 meaning "no ledger exists yet"). On success the
	// ledger's Version is advanced to expectedVersion+1.
	// Returns ErrVersionConflict when the precondition fails.
	PutLedger(ctx context.Context, ledger *models.NoveltyLedger, expectedVersion int64) error
}

// GetLedger retrieves the novelty ledger for a key.
func (s *Store) GetLedger(ctx context.Context, key string) (*models.NoveltyLedger, error) {
	var (
		allJSON    []byte
		latestJSON []byte
		version    int64
		updatedAt  time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT all_hashes, latest_hashes, version, updated_at FROM ledgers WHERE key = ?`,
		key,
	).Scan(&allJSON, &latestJSON, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLedgerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger %s: %w", key, err)
	}

	ledger := &models.NoveltyLedger{Key: key, Version: version, UpdatedAt: updatedAt}
	if err := json.Unmarshal(allJSON, &ledger.AllSeen); err != nil {
		return nil, fmt.Errorf("decode ledger %s all_hashes: %w", key, err)
	}
	if err := json.Unmarshal(latestJSON, &ledger.Latest); err != nil {
		return nil, fmt.Errorf("decode ledger %s latest_hashes: %w", key, err)
	}
	return ledger, nil
}

// PutLedger inserts or updates a ledger with compare-and-swap semantics.
func (s *Store) PutLedger(ctx context.Context, ledger *models.NoveltyLedger, expectedVersion int64) error {
	allJSON, err := json.Marshal(ledger.AllSeen)
	if err != nil {
		return fmt.Errorf("encode ledger %s all_hashes: %w", ledger.Key, err)
	}
	latestJSON, err := json.Marshal(ledger.Latest)
	if err != nil {
		return fmt.Errorf("encode ledger %s latest_hashes: %w", ledger.Key, err)
	}

	now := time.Now().UTC()

	if expectedVersion == 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO ledgers (key, all_hashes, latest_hashes, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)`,
			ledger.Key, allJSON, latestJSON, now,
		)
		if err != nil {
			// A unique-constraint failure means another writer created
			// the ledger first.
			if isConstraintErr(err) {
				return fmt.Errorf("insert ledger %s: %w", ledger.Key, ErrVersionConflict)
			}
			return fmt.Errorf("insert ledger %s: %w", ledger.Key, err)
		}
		ledger.Version = 1
		ledger.UpdatedAt = now
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ledgers SET all_hashes = ?, latest_hashes = ?, version = version + 1, updated_at = ?
		 WHERE key = ? AND version = ?`,
		allJSON, latestJSON, now, ledger.Key, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update ledger %s: %w", ledger.Key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ledger %s: %w", ledger.Key, err)
	}
	if affected == 0 {
		return fmt.Errorf("ledger %s expected version %d: %w", ledger.Key, expectedVersion, ErrVersionConflict)
	}
	ledger.Version = expectedVersion + 1
	ledger.UpdatedAt = now
	return nil
}

// DeleteLedger removes the ledger for a key. Used on explicit unsubscribe.
func (s *Store) DeleteLedger(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledgers WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete ledger %s: %w", key, err)
	}
	return nil
}

// ListLedgerKeys returns all keys with a ledger, sorted.
func (s *Store) ListLedgerKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM ledgers ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list ledger keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan ledger key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

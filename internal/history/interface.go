// Package history provides the append-only store of snapshots and
// statistics documents, addressed by entity identity and timestamp.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/kilupskalvis/mechmon/internal/models"
)

// Sentinel errors for expected conditions.
var (
	// ErrNotFound is returned when a snapshot or document does not exist.
	ErrNotFound = errors.New("not found")
)

// Store defines the contract for history persistence. Implementations own
// the ordering of stored records; callers never derive order from storage
// key names.
type Store interface {
	// Snapshots
	LatestSnapshot(ctx context.Context, entityID string) (*models.Snapshot, error)
	SnapshotAt(ctx context.Context, entityID string, ts time.Time) (*models.Snapshot, error)
	PutSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// Statistics documents
	LatestDocument(ctx context.Context, entityID string) (*models.StatsDocument, error)
	// NthLatestDocument returns the n-th most recent document, n == 0
	// being the latest.
	NthLatestDocument(ctx context.Context, entityID string, n int) (*models.StatsDocument, error)
	DocumentAt(ctx context.Context, entityID string, ts time.Time) (*models.StatsDocument, error)
	// PutDocument persists a document keyed by (entity, timestamp).
	// Re-writing the same key overwrites the previous document.
	PutDocument(ctx context.Context, doc *models.StatsDocument) error

	// ListDocuments returns document references for an entity, newest
	// first. A limit of 0 means no limit.
	ListDocuments(ctx context.Context, entityID string, limit int) ([]DocumentRef, error)

	// Entities returns all entity IDs with at least one snapshot.
	Entities(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// DocumentRef is a lightweight listing entry for a stored document.
type DocumentRef struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	BlobHash  string    `json:"blob_hash"`
}

// Info summarizes the contents of a history store.
type Info struct {
	EntityCount   int `json:"entity_count"`
	SnapshotCount int `json:"snapshot_count"`
	DocumentCount int `json:"document_count"`
	BlobCount     int `json:"blob_count"`
}

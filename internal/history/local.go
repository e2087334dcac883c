package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/mechmon/internal/history/blobstore"
	"github.com/kilupskalvis/mechmon/internal/history/index"
	"github.com/kilupskalvis/mechmon/internal/models"
)

// Local implements Store with a bbolt reference index and a filesystem
// blob store for the serialized payloads.
type Local struct {
	index *index.BoltIndex
	blobs blobstore.BlobStore
}

// NewLocal opens a local history store rooted at the given directory.
func NewLocal(root string) (*Local, error) {
	blobs, err := blobstore.NewFSStore(filepath.Join(root, "blobs"))
	if err != nil {
		return nil, err
	}
	ix, err := index.NewBoltIndex(filepath.Join(root, "index.db"))
	if err != nil {
		return nil, err
	}
	return &Local{index: ix, blobs: blobs}, nil
}

// Close releases the underlying index.
func (l *Local) Close() error {
	return l.index.Close()
}

// Index exposes the reference index for retention pruning.
func (l *Local) Index() *index.BoltIndex {
	return l.index
}

// Blobs exposes the blob store for retention pruning.
func (l *Local) Blobs() blobstore.BlobStore {
	return l.blobs
}

func (l *Local) putBlob(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	hash := models.PayloadHash(data)
	if err := l.blobs.Put(ctx, hash, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store payload blob: %w", err)
	}
	return hash, nil
}

func (l *Local) getBlob(ctx context.Context, hash string, v any) error {
	r, err := l.blobs.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return fmt.Errorf("blob %s: %w", hash, ErrNotFound)
		}
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read payload blob %s: %w", hash, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload blob %s: %w", hash, err)
	}
	return nil
}

// PutSnapshot stores a snapshot keyed by (entity, timestamp).
func (l *Local) PutSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	hash, err := l.putBlob(ctx, snapshot)
	if err != nil {
		return err
	}
	return l.index.PutRef(ctx, index.KindSnapshot, snapshot.EntityID, snapshot.Timestamp, hash)
}

// LatestSnapshot returns the most recent snapshot for the entity.
// Returns ErrNotFound if the entity has no snapshots.
func (l *Local) LatestSnapshot(ctx context.Context, entityID string) (*models.Snapshot, error) {
	ref, err := l.index.LatestRef(ctx, index.KindSnapshot, entityID)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s models.Snapshot
	if err := l.getBlob(ctx, ref.BlobHash, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SnapshotAt returns the snapshot stored for an exact timestamp.
func (l *Local) SnapshotAt(ctx context.Context, entityID string, ts time.Time) (*models.Snapshot, error) {
	hash, err := l.index.RefAt(ctx, index.KindSnapshot, entityID, ts)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s models.Snapshot
	if err := l.getBlob(ctx, hash, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PutDocument persists a statistics document. Re-writing the same
// (entity, timestamp) overwrites the previous document.
func (l *Local) PutDocument(ctx context.Context, doc *models.StatsDocument) error {
	hash, err := l.putBlob(ctx, doc)
	if err != nil {
		return err
	}
	return l.index.PutRef(ctx, index.KindDocument, doc.EntityID, doc.Timestamp, hash)
}

// LatestDocument returns the most recent statistics document for the entity.
func (l *Local) LatestDocument(ctx context.Context, entityID string) (*models.StatsDocument, error) {
	return l.NthLatestDocument(ctx, entityID, 0)
}

// NthLatestDocument returns the n-th most recent document, n == 0 being
// the latest.
func (l *Local) NthLatestDocument(ctx context.Context, entityID string, n int) (*models.StatsDocument, error) {
	ref, err := l.index.NthLatestRef(ctx, index.KindDocument, entityID, n)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var d models.StatsDocument
	if err := l.getBlob(ctx, ref.BlobHash, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DocumentAt returns the document stored for an exact timestamp.
func (l *Local) DocumentAt(ctx context.Context, entityID string, ts time.Time) (*models.StatsDocument, error) {
	hash, err := l.index.RefAt(ctx, index.KindDocument, entityID, ts)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var d models.StatsDocument
	if err := l.getBlob(ctx, hash, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns document references for the entity, newest first.
func (l *Local) ListDocuments(ctx context.Context, entityID string, limit int) ([]DocumentRef, error) {
	refs, err := l.index.ListRefs(ctx, index.KindDocument, entityID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, DocumentRef{EntityID: entityID, Timestamp: r.Timestamp, BlobHash: r.BlobHash})
	}
	return out, nil
}

// Entities returns all entity IDs with at least one snapshot.
func (l *Local) Entities(ctx context.Context) ([]string, error) {
	return l.index.Entities(ctx, index.KindSnapshot)
}

// Stats summarizes the store contents.
func (l *Local) Stats(ctx context.Context) (*Info, error) {
	entities, err := l.index.Entities(ctx, index.KindSnapshot)
	if err != nil {
		return nil, err
	}
	snaps, err := l.index.Count(ctx, index.KindSnapshot)
	if err != nil {
		return nil, err
	}
	docs, err := l.index.Count(ctx, index.KindDocument)
	if err != nil {
		return nil, err
	}
	blobs, err := l.blobs.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		EntityCount:   len(entities),
		SnapshotCount: snaps,
		DocumentCount: docs,
		BlobCount:     blobs,
	}, nil
}

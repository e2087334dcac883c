// Package index provides the ordered (entity, timestamp) -> blob reference
// index backing the local history store. Ordering is owned entirely by the
// index; callers never reconstruct it from key names.
package index

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when no reference exists for the request.
var ErrNotFound = errors.New("not found")

// Kind selects which reference namespace to operate on.
type Kind string

const (
	KindSnapshot Kind = "snapshots"
	KindDocument Kind = "documents"
)

var kinds = []Kind{KindSnapshot, KindDocument}

// Ref is one indexed reference to a stored payload blob.
type Ref struct {
	Timestamp time.Time
	BlobHash  string
}

// BoltIndex implements the history reference index using bbolt. Each kind is
// a top-level bucket holding one nested bucket per entity, keyed by the
// timestamp encoded as big-endian UnixNano so cursor order is time order.
type BoltIndex struct {
	db *bolt.DB
}

// NewBoltIndex opens or creates a bbolt index at the given path.
func NewBoltIndex(dbPath string) (*BoltIndex, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, k := range kinds {
			if _, err := tx.CreateBucketIfNotExists([]byte(k)); err != nil {
				return fmt.Errorf("create bucket %s: %w", k, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltIndex{db: db}, nil
}

// Close releases the bbolt database.
func (ix *BoltIndex) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// tsKey encodes a timestamp as a sortable fixed-width key.
func tsKey(ts time.Time) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(ts.UnixNano()))
	return key[:]
}

func tsFromKey(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key))).UTC()
}

// PutRef records a reference. Writing the same (kind, entity, timestamp)
// twice overwrites the previous reference, which is what makes pipeline
// re-runs idempotent.
func (ix *BoltIndex) PutRef(_ context.Context, kind Kind, entityID string, ts time.Time, blobHash string) error {
	return ix.db.Update(func(tx *bolt.Tx) error {
		eb, err := tx.Bucket([]byte(kind)).CreateBucketIfNotExists([]byte(entityID))
		if err != nil {
			return fmt.Errorf("create entity bucket %s: %w", entityID, err)
		}
		return eb.Put(tsKey(ts), []byte(blobHash))
	})
}

// RefAt returns the reference stored for an exact timestamp.
// Returns ErrNotFound if missing.
func (ix *BoltIndex) RefAt(_ context.Context, kind Kind, entityID string, ts time.Time) (string, error) {
	var hash string
	err := ix.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket([]byte(kind)).Bucket([]byte(entityID))
		if eb == nil {
			return ErrNotFound
		}
		v := eb.Get(tsKey(ts))
		if v == nil {
			return ErrNotFound
		}
		hash = string(v)
		return nil
	})
	return hash, err
}

// NthLatestRef returns the n-th most recent reference for the entity,
// with n == 0 being the latest. Returns ErrNotFound when the entity has
// fewer than n+1 references.
func (ix *BoltIndex) NthLatestRef(_ context.Context, kind Kind, entityID string, n int) (Ref, error) {
	var ref Ref
	err := ix.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket([]byte(kind)).Bucket([]byte(entityID))
		if eb == nil {
			return ErrNotFound
		}
		c := eb.Cursor()
		k, v := c.Last()
		for i := 0; i < n && k != nil; i++ {
			k, v = c.Prev()
		}
		if k == nil {
			return ErrNotFound
		}
		ref = Ref{Timestamp: tsFromKey(k), BlobHash: string(v)}
		return nil
	})
	return ref, err
}

// LatestRef returns the most recent reference for the entity.
func (ix *BoltIndex) LatestRef(ctx context.Context, kind Kind, entityID string) (Ref, error) {
	return ix.NthLatestRef(ctx, kind, entityID, 0)
}

// ListRefs returns references for the entity, newest first. A limit of 0
// means no limit.
func (ix *BoltIndex) ListRefs(_ context.Context, kind Kind, entityID string, limit int) ([]Ref, error) {
	var refs []Ref
	err := ix.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket([]byte(kind)).Bucket([]byte(entityID))
		if eb == nil {
			return nil
		}
		c := eb.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			refs = append(refs, Ref{Timestamp: tsFromKey(k), BlobHash: string(v)})
			if limit > 0 && len(refs) >= limit {
				break
			}
		}
		return nil
	})
	return refs, err
}

// Entities returns the IDs of all entities with at least one reference of
// the given kind.
func (ix *BoltIndex) Entities(_ context.Context, kind Kind) ([]string, error) {
	var ids []string
	err := ix.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(kind)).ForEachBucket(func(name []byte) error {
			ids = append(ids, string(name))
			return nil
		})
	})
	return ids, err
}

// Count returns the number of references of the given kind across all entities.
func (ix *BoltIndex) Count(_ context.Context, kind Kind) (int, error) {
	var count int
	err := ix.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		return b.ForEachBucket(func(name []byte) error {
			count += b.Bucket(name).Stats().KeyN
			return nil
		})
	})
	return count, err
}

// ReferencedHashes returns every blob hash referenced by any index entry.
// Used by retention pruning to decide which blobs are safe to delete.
func (ix *BoltIndex) ReferencedHashes(_ context.Context) (map[string]bool, error) {
	refs := make(map[string]bool)
	err := ix.db.View(func(tx *bolt.Tx) error {
		for _, kind := range kinds {
			b := tx.Bucket([]byte(kind))
			if err := b.ForEachBucket(func(name []byte) error {
				return b.Bucket(name).ForEach(func(_, v []byte) error {
					refs[string(v)] = true
					return nil
				})
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return refs, err
}

package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *BoltIndex {
	t.Helper()
	ix, err := NewBoltIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func ts(day int) time.Time {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
}

func TestBoltIndex_PutAndLatest(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "rasmachine", ts(1), "hash-a"))
	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "rasmachine", ts(3), "hash-c"))
	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "rasmachine", ts(2), "hash-b"))

	ref, err := ix.LatestRef(ctx, KindSnapshot, "rasmachine")
	require.NoError(t, err)
	assert.Equal(t, "hash-c", ref.BlobHash)
	assert.True(t, ref.Timestamp.Equal(ts(3)))
}

func TestBoltIndex_NthLatest(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.PutRef(ctx, KindDocument, "marm", ts(1), "h1"))
	require.NoError(t, ix.PutRef(ctx, KindDocument, "marm", ts(2), "h2"))
	require.NoError(t, ix.PutRef(ctx, KindDocument, "marm", ts(3), "h3"))

	ref, err := ix.NthLatestRef(ctx, KindDocument, "marm", 1)
	require.NoError(t, err)
	assert.Equal(t, "h2", ref.BlobHash)

	ref, err = ix.NthLatestRef(ctx, KindDocument, "marm", 2)
	require.NoError(t, err)
	assert.Equal(t, "h1", ref.BlobHash)

	_, err = ix.NthLatestRef(ctx, KindDocument, "marm", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltIndex_LatestRef_NoEntity(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	_, err := ix.LatestRef(ctx, KindSnapshot, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltIndex_RefAt(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "rasmachine", ts(1), "h1"))

	hash, err := ix.RefAt(ctx, KindSnapshot, "rasmachine", ts(1))
	require.NoError(t, err)
	assert.Equal(t, "h1", hash)

	_, err = ix.RefAt(ctx, KindSnapshot, "rasmachine", ts(2))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltIndex_PutRef_OverwritesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.PutRef(ctx, KindDocument, "marm", ts(1), "old"))
	require.NoError(t, ix.PutRef(ctx, KindDocument, "marm", ts(1), "new"))

	refs, err := ix.ListRefs(ctx, KindDocument, "marm", 0)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "new", refs[0].BlobHash)
}

func TestBoltIndex_ListRefs_NewestFirst(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	for day := 1; day <= 5; day++ {
		require.NoError(t, ix.PutRef(ctx, KindSnapshot, "skcm", ts(day), "h"))
	}

	refs, err := ix.ListRefs(ctx, KindSnapshot, "skcm", 3)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.True(t, refs[0].Timestamp.After(refs[1].Timestamp))
	assert.True(t, refs[1].Timestamp.After(refs[2].Timestamp))
}

func TestBoltIndex_EntitiesAndCount(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "a", ts(1), "h1"))
	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "b", ts(1), "h2"))
	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "b", ts(2), "h3"))

	ids, err := ix.Entities(ctx, KindSnapshot)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	count, err := ix.Count(ctx, KindSnapshot)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBoltIndex_ReferencedHashes(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.PutRef(ctx, KindSnapshot, "a", ts(1), "snap-hash"))
	require.NoError(t, ix.PutRef(ctx, KindDocument, "a", ts(1), "doc-hash"))

	refs, err := ix.ReferencedHashes(ctx)
	require.NoError(t, err)
	assert.True(t, refs["snap-hash"])
	assert.True(t, refs["doc-hash"])
	assert.False(t, refs["unreferenced"])
}

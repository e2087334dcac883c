package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestFSStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := []byte(`{"kind":"model","scalars":{"number_of_statements":2}}`)
	hash := hashBytes(data)

	err := s.Put(ctx, hash, bytes.NewReader(data))
	require.NoError(t, err)

	reader, err := s.Get(ctx, hash)
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStore_Has(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	has, err := s.Has(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, has)

	data := []byte("payload")
	hash := hashBytes(data)
	require.NoError(t, s.Put(ctx, hash, bytes.NewReader(data)))

	has, err = s.Has(ctx, hash)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestFSStore_Put_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := []byte("payload")
	hash := hashBytes(data)

	require.NoError(t, s.Put(ctx, hash, bytes.NewReader(data)))
	require.NoError(t, s.Put(ctx, hash, bytes.NewReader(data))) // no-op
}

func TestFSStore_Put_HashMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := []byte("payload")
	wrongHash := "0000000000000000000000000000000000000000000000000000000000000000"

	err := s.Put(ctx, wrongHash, bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestFSStore_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFSStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := []byte("payload")
	hash := hashBytes(data)
	require.NoError(t, s.Put(ctx, hash, bytes.NewReader(data)))

	err := s.Delete(ctx, hash)
	require.NoError(t, err)

	has, err := s.Has(ctx, hash)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestFSStore_Delete_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Should not error when deleting non-existent blob
	err := s.Delete(ctx, "nonexistent")
	assert.NoError(t, err)
}

func TestFSStore_TotalCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	count, err := s.TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 3; i++ {
		data := []byte{byte(i), byte(i + 1), byte(i + 2)}
		hash := hashBytes(data)
		require.NoError(t, s.Put(ctx, hash, bytes.NewReader(data)))
	}

	count, err = s.TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFSStore_ListHashes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hashes, err := s.ListHashes(ctx)
	require.NoError(t, err)
	assert.Empty(t, hashes)

	var expected []string
	for i := 0; i < 3; i++ {
		data := []byte{byte(i), byte(i + 10), byte(i + 20)}
		hash := hashBytes(data)
		require.NoError(t, s.Put(ctx, hash, bytes.NewReader(data)))
		expected = append(expected, hash)
	}

	hashes, err = s.ListHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 3)
	for _, exp := range expected {
		assert.Contains(t, hashes, exp)
	}
}

func TestFSStore_ListHashes_AfterDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data1 := []byte("blob1")
	hash1 := hashBytes(data1)
	data2 := []byte("blob2")
	hash2 := hashBytes(data2)

	require.NoError(t, s.Put(ctx, hash1, bytes.NewReader(data1)))
	require.NoError(t, s.Put(ctx, hash2, bytes.NewReader(data2)))

	require.NoError(t, s.Delete(ctx, hash1))

	hashes, err := s.ListHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
	assert.Equal(t, hash2, hashes[0])
}

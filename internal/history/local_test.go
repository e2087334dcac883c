package history

import (
	"context"
	"testing"
	"time"

	"github.com/kilupskalvis/mechmon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func snapshotAt(entity string, day int, hashes ...string) *models.Snapshot {
	return &models.Snapshot{
		Kind:      models.KindModel,
		EntityID:  entity,
		Timestamp: time.Date(2026, 4, day, 6, 0, 0, 0, time.UTC),
		ContentSets: map[string]models.HashSet{
			models.SetStatements: models.NewHashSet(hashes...),
		},
		Scalars: map[string]float64{
			"number_of_statements": float64(len(hashes)),
		},
	}
}

func TestLocal_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	snap := snapshotAt("rasmachine", 1, "h1", "h2")
	require.NoError(t, l.PutSnapshot(ctx, snap))

	got, err := l.LatestSnapshot(ctx, "rasmachine")
	require.NoError(t, err)
	assert.Equal(t, models.KindModel, got.Kind)
	assert.True(t, got.Timestamp.Equal(snap.Timestamp))
	assert.True(t, got.ContentSets[models.SetStatements].Equal(models.NewHashSet("h1", "h2")))
	assert.Equal(t, 2.0, got.Scalars["number_of_statements"])
}

func TestLocal_LatestSnapshot_PicksNewest(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	require.NoError(t, l.PutSnapshot(ctx, snapshotAt("rasmachine", 1, "h1")))
	require.NoError(t, l.PutSnapshot(ctx, snapshotAt("rasmachine", 3, "h1", "h2", "h3")))
	require.NoError(t, l.PutSnapshot(ctx, snapshotAt("rasmachine", 2, "h1", "h2")))

	got, err := l.LatestSnapshot(ctx, "rasmachine")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Scalars["number_of_statements"])
}

func TestLocal_LatestSnapshot_NotFound(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	_, err := l.LatestSnapshot(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_SnapshotAt(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	snap := snapshotAt("rasmachine", 1, "h1")
	require.NoError(t, l.PutSnapshot(ctx, snap))

	got, err := l.SnapshotAt(ctx, "rasmachine", snap.Timestamp)
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(snap.Timestamp))

	_, err = l.SnapshotAt(ctx, "rasmachine", snap.Timestamp.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_DocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	ts := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	doc := &models.StatsDocument{
		EntityID:  "rasmachine",
		Kind:      models.KindModel,
		Timestamp: ts,
		Summary:   models.Summary{Scalars: map[string]float64{"number_of_statements": 2}},
		Delta: map[string]models.Delta{
			models.SetStatements: {
				ContentSet: models.SetStatements,
				Added:      models.NewHashSet("h1", "h2"),
				Removed:    models.NewHashSet(),
			},
		},
		TimeSeries: map[string][]models.TimePoint{
			"number_of_statements": {{Timestamp: ts, Value: 2}},
		},
	}
	require.NoError(t, l.PutDocument(ctx, doc))

	got, err := l.LatestDocument(ctx, "rasmachine")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Summary.Scalars["number_of_statements"])
	require.Len(t, got.TimeSeries["number_of_statements"], 1)
	assert.True(t, got.TimeSeries["number_of_statements"][0].Timestamp.Equal(ts))
	assert.True(t, got.Delta[models.SetStatements].Added.Equal(models.NewHashSet("h1", "h2")))
}

func TestLocal_PutDocument_OverwritesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	ts := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	doc := &models.StatsDocument{
		EntityID:  "rasmachine",
		Kind:      models.KindModel,
		Timestamp: ts,
		Summary:   models.Summary{Scalars: map[string]float64{"m": 1}},
	}
	require.NoError(t, l.PutDocument(ctx, doc))

	doc2 := *doc
	doc2.Summary = models.Summary{Scalars: map[string]float64{"m": 2}}
	require.NoError(t, l.PutDocument(ctx, &doc2))

	refs, err := l.ListDocuments(ctx, "rasmachine", 0)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	got, err := l.LatestDocument(ctx, "rasmachine")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Summary.Scalars["m"])
}

func TestLocal_NthLatestDocument(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	for day := 1; day <= 3; day++ {
		doc := &models.StatsDocument{
			EntityID:  "marm",
			Kind:      models.KindModel,
			Timestamp: time.Date(2026, 4, day, 6, 0, 0, 0, time.UTC),
			Summary:   models.Summary{Scalars: map[string]float64{"day": float64(day)}},
		}
		require.NoError(t, l.PutDocument(ctx, doc))
	}

	got, err := l.NthLatestDocument(ctx, "marm", 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Summary.Scalars["day"])

	_, err = l.NthLatestDocument(ctx, "marm", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_EntitiesAndStats(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	require.NoError(t, l.PutSnapshot(ctx, snapshotAt("a", 1, "h1")))
	require.NoError(t, l.PutSnapshot(ctx, snapshotAt("b", 1, "h2")))

	ids, err := l.Entities(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	info, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.EntityCount)
	assert.Equal(t, 2, info.SnapshotCount)
	assert.Equal(t, 0, info.DocumentCount)
}

func TestLocal_IdenticalSnapshotsShareBlob(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	snap := snapshotAt("a", 1, "h1")
	require.NoError(t, l.PutSnapshot(ctx, snap))
	require.NoError(t, l.PutSnapshot(ctx, snap))

	info, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.BlobCount)
}

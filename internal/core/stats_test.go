package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *history.Local {
	t.Helper()
	h, err := history.NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func modelSnapshot(entity string, day int, hashes ...string) *models.Snapshot {
	return &models.Snapshot{
		Kind:      models.KindModel,
		EntityID:  entity,
		Timestamp: time.Date(2026, 5, day, 6, 0, 0, 0, time.UTC),
		ContentSets: map[string]models.HashSet{
			models.SetStatements: models.NewHashSet(hashes...),
		},
		Scalars: map[string]float64{
			MetricStatements: float64(len(hashes)),
		},
	}
}

func TestGenerator_NoSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	g := NewGenerator(h, nil)

	doc, err := g.Run(ctx, "rasmachine")
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Nil(t, doc)
	assert.Equal(t, StateAborted, g.State())
}

func TestGenerator_FirstRun(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 1, "h1", "h2")))

	g := NewGenerator(h, nil)
	doc, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, g.State())

	// First-run delta: everything added, nothing removed.
	d := doc.Delta[models.SetStatements]
	assert.True(t, d.Added.Equal(models.NewHashSet("h1", "h2")))
	assert.Empty(t, d.Removed)

	// Series starts with exactly one point.
	require.Len(t, doc.TimeSeries[MetricStatements], 1)
	assert.Equal(t, 2.0, doc.TimeSeries[MetricStatements][0].Value)

	// And it was persisted.
	stored, err := h.LatestDocument(ctx, "rasmachine")
	require.NoError(t, err)
	assert.True(t, stored.Timestamp.Equal(doc.Timestamp))
}

func TestGenerator_SecondRun(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	g := NewGenerator(h, nil)

	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 1, "h1", "h2")))
	_, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 2, "h2", "h3")))
	doc, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	d := doc.Delta[models.SetStatements]
	assert.True(t, d.Added.Equal(models.NewHashSet("h3")))
	assert.True(t, d.Removed.Equal(models.NewHashSet("h1")))

	// The previous document's series is embedded plus one new point.
	require.Len(t, doc.TimeSeries[MetricStatements], 2)
	assert.Equal(t, 2.0, doc.TimeSeries[MetricStatements][0].Value)
	assert.Equal(t, 2.0, doc.TimeSeries[MetricStatements][1].Value)
}

// Re-running against unchanged history must produce a byte-identical
// document: no duplicate time-series points, and the delta is computed
// against the run before, never against the same timestamp.
func TestGenerator_IdempotentRerun(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	g := NewGenerator(h, nil)

	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 1, "h1")))
	_, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 2, "h1", "h2")))
	first, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	second, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	require.Len(t, second.TimeSeries[MetricStatements], 2)
	assert.True(t, second.Delta[models.SetStatements].Added.Equal(models.NewHashSet("h2")))

	refs, err := h.ListDocuments(ctx, "rasmachine", 0)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestGenerator_TimeSeriesGrowth(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	g := NewGenerator(h, nil)

	const runs = 5
	for day := 1; day <= runs; day++ {
		hashes := make([]string, day)
		for i := range hashes {
			hashes[i] = fmt.Sprintf("h%d", i)
		}
		require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", day, hashes...)))
		doc, err := g.Run(ctx, "rasmachine")
		require.NoError(t, err)
		require.Len(t, doc.TimeSeries[MetricStatements], day)
	}

	final, err := h.LatestDocument(ctx, "rasmachine")
	require.NoError(t, err)
	points := final.TimeSeries[MetricStatements]
	require.Len(t, points, runs)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Timestamp.After(points[i-1].Timestamp))
	}
}

// A document whose snapshot cannot be located is storage corruption, not
// a first run; the pipeline surfaces it instead of masking it with an
// empty delta.
func TestGenerator_HistoryInconsistency(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	orphan := &models.StatsDocument{
		EntityID:  "rasmachine",
		Kind:      models.KindModel,
		Timestamp: time.Date(2026, 4, 28, 6, 0, 0, 0, time.UTC),
		Summary:   models.Summary{Scalars: map[string]float64{MetricStatements: 1}},
	}
	require.NoError(t, h.PutDocument(ctx, orphan))
	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 1, "h1")))

	g := NewGenerator(h, nil)
	doc, err := g.Run(ctx, "rasmachine")
	assert.ErrorIs(t, err, ErrHistoryInconsistent)
	assert.Nil(t, doc)
	assert.Equal(t, StateAborted, g.State())

	// Nothing was persisted for the aborted run.
	refs, err := h.ListDocuments(ctx, "rasmachine", 0)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestGenerator_NewContentSetMidStream(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	g := NewGenerator(h, nil)

	require.NoError(t, h.PutSnapshot(ctx, modelSnapshot("rasmachine", 1, "h1")))
	_, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	next := modelSnapshot("rasmachine", 2, "h1")
	next.ContentSets[models.SetRawPapers] = models.NewHashSet("p1", "p2")
	next.Scalars[MetricRawPapers] = 2
	require.NoError(t, h.PutSnapshot(ctx, next))

	doc, err := g.Run(ctx, "rasmachine")
	require.NoError(t, err)

	d := doc.Delta[models.SetRawPapers]
	assert.True(t, d.Added.Equal(models.NewHashSet("p1", "p2")))
	assert.Empty(t, d.Removed)

	// The new metric starts its own series.
	require.Len(t, doc.TimeSeries[MetricRawPapers], 1)
	require.Len(t, doc.TimeSeries[MetricStatements], 2)
}

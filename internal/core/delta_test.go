package core

import (
	"testing"
	"time"

	"github.com/kilupskalvis/mechmon/internal/models"
	"github.com/stretchr/testify/assert"
)

func snapWithSet(name string, hashes ...string) *models.Snapshot {
	return &models.Snapshot{
		Kind:      models.KindModel,
		EntityID:  "rasmachine",
		Timestamp: time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC),
		ContentSets: map[string]models.HashSet{
			name: models.NewHashSet(hashes...),
		},
	}
}

func TestDiff_FirstRun(t *testing.T) {
	latest := snapWithSet(models.SetStatements, "h1", "h2")

	d := Diff(models.SetStatements, latest, nil)

	assert.True(t, d.Added.Equal(models.NewHashSet("h1", "h2")))
	assert.Empty(t, d.Removed)
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	previous := snapWithSet(models.SetStatements, "h1", "h2")
	latest := snapWithSet(models.SetStatements, "h2", "h3")

	d := Diff(models.SetStatements, latest, previous)

	assert.True(t, d.Added.Equal(models.NewHashSet("h3")))
	assert.True(t, d.Removed.Equal(models.NewHashSet("h1")))
}

func TestDiff_NoChange(t *testing.T) {
	previous := snapWithSet(models.SetStatements, "h1")
	latest := snapWithSet(models.SetStatements, "h1")

	d := Diff(models.SetStatements, latest, previous)

	assert.True(t, d.IsEmpty())
}

// A first run must not look like "no change": the delta carries the whole
// latest set as added.
func TestDiff_FirstRunNotEmpty(t *testing.T) {
	latest := snapWithSet(models.SetStatements, "h1")

	d := Diff(models.SetStatements, latest, nil)
	assert.False(t, d.IsEmpty())
}

func TestDiff_Symmetry(t *testing.T) {
	a := snapWithSet(models.SetAppliedTests, "t1", "t2", "t3")
	b := snapWithSet(models.SetAppliedTests, "t2", "t4")

	ab := Diff(models.SetAppliedTests, b, a)
	ba := Diff(models.SetAppliedTests, a, b)

	assert.True(t, ab.Added.Equal(ba.Removed))
	assert.True(t, ab.Removed.Equal(ba.Added))
}

// A content set present in latest but absent in previous behaves like a
// first run for that set only.
func TestDiff_NewContentSetMidStream(t *testing.T) {
	previous := snapWithSet(models.SetAppliedTests, "t1")
	latest := snapWithSet(models.SetAppliedTests, "t1")
	latest.ContentSets[models.PassedTestsSet("signed_graph")] = models.NewHashSet("t1")

	d := Diff(models.PassedTestsSet("signed_graph"), latest, previous)

	assert.True(t, d.Added.Equal(models.NewHashSet("t1")))
	assert.Empty(t, d.Removed)
}

// A content set that disappeared reports everything as removed.
func TestDiff_DisappearedContentSet(t *testing.T) {
	previous := snapWithSet(models.PassedTestsSet("pysb"), "t1", "t2")
	latest := snapWithSet(models.SetAppliedTests, "t1")

	d := Diff(models.PassedTestsSet("pysb"), latest, previous)

	assert.Empty(t, d.Added)
	assert.True(t, d.Removed.Equal(models.NewHashSet("t1", "t2")))
}

func TestDiff_AddedRemovedDisjoint(t *testing.T) {
	previous := snapWithSet(models.SetStatements, "h1", "h2", "h3")
	latest := snapWithSet(models.SetStatements, "h2", "h3", "h4")

	d := Diff(models.SetStatements, latest, previous)
	for h := range d.Added {
		assert.False(t, d.Removed.Contains(h))
	}
}

// Package core implements the domain logic for mechmon: snapshot
// construction, delta computation, the statistics pipeline, and novelty
// classification.
package core

import "github.com/kilupskalvis/mechmon/internal/models"

// Diff computes the added/removed hash sets for one named content set
// between the latest snapshot and the previous one.
//
// A nil previous snapshot models the first run ever for the entity: the
// whole latest set is added and nothing is removed. A content set present
// in latest but absent in previous (a checker variant introduced
// mid-stream) behaves the same way for that set only.
func Diff(name string, latest, previous *models.Snapshot) models.Delta {
	latestSet := latest.ContentSet(name)

	var prevSet models.HashSet
	if previous != nil {
		prevSet = previous.ContentSet(name)
	}

	d := models.Delta{ContentSet: name}
	if prevSet == nil {
		if latestSet == nil {
			d.Added = models.NewHashSet()
		} else {
			d.Added = latestSet.Clone()
		}
		d.Removed = models.NewHashSet()
		return d
	}
	if latestSet == nil {
		latestSet = models.NewHashSet()
	}

	d.Added = latestSet.Subtract(prevSet)
	d.Removed = prevSet.Subtract(latestSet)
	return d
}

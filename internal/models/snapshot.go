// Package models defines the core data structures used throughout mechmon
// including snapshots, deltas, statistics documents, and novelty ledgers.
package models

import (
	"encoding/json"
	"time"
)

// SnapshotKind identifies what kind of pipeline run a snapshot captures.
type SnapshotKind string

const (
	// KindModel is a capture of an assembled model state.
	KindModel SnapshotKind = "model"
	// KindTestRun is a capture of one mechanistic test run against a model.
	KindTestRun SnapshotKind = "test_run"
)

// NameCount is one entry of a distribution, e.g. ("Activation", 42).
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is an immutable record of one model state or test run. Content
// sets and scalar metrics are fully materialized at construction time so
// that later comparisons never touch the raw payload again.
type Snapshot struct {
	Kind      SnapshotKind `json:"kind"`
	EntityID  string       `json:"entity_id"`
	Timestamp time.Time    `json:"timestamp"`

	// ContentSets maps a content set name to the hashes it contains.
	ContentSets map[string]HashSet `json:"content_sets"`

	// Scalars are single-number metrics, the ones folded into time series.
	Scalars map[string]float64 `json:"scalars"`

	// Distributions are composite metrics, sorted by descending count.
	Distributions map[string][]NameCount `json:"distributions,omitempty"`

	// RawPayload is the externally produced run output, retained opaquely
	// for human-readable rendering. Never interpreted by the engine.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// ContentSet returns the named hash set, or nil if the snapshot does not
// carry that set (e.g. a checker variant introduced after this snapshot).
func (s *Snapshot) ContentSet(name string) HashSet {
	return s.ContentSets[name]
}

// ContentSetNames returns the names of all content sets present, sorted.
func (s *Snapshot) ContentSetNames() []string {
	names := make(HashSet, len(s.ContentSets))
	for name := range s.ContentSets {
		names.Add(name)
	}
	return names.Sorted()
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/models"
)

// State tracks the progress of one stats pipeline run.
type State int

const (
	StateInit State = iota
	StateLoadedLatest
	StateLoadedPrevious
	StateComputed
	StatePersisted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLoadedLatest:
		return "loaded_latest"
	case StateLoadedPrevious:
		return "loaded_previous"
	case StateComputed:
		return "computed"
	case StatePersisted:
		return "persisted"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Generator runs the statistics pipeline for one entity at a time: load the
// latest snapshot, load the previous snapshot and document, compute deltas,
// fold scalars into the time series, persist one document.
//
// All stages are strictly sequential and never retried here; retries belong
// to the storage collaborator.
type Generator struct {
	history history.Store
	logger  *slog.Logger
	state   State
}

// NewGenerator creates a stats generator over the given history store.
func NewGenerator(h history.Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{history: h, logger: logger, state: StateInit}
}

// State returns the state reached by the last Run call.
func (g *Generator) State() State {
	return g.state
}

// Run executes one pipeline run for the entity and returns the persisted
// document.
//
// Returns ErrNoSnapshot when the entity has nothing to report on (benign;
// no document is produced) and ErrHistoryInconsistent when a previous
// document exists but its snapshot cannot be located.
//
// Running twice against the same history state persists a byte-identical
// document: the (entity, timestamp) write overwrites, and a re-run for an
// already-reported timestamp diffs against the document before it, never
// against itself.
func (g *Generator) Run(ctx context.Context, entityID string) (*models.StatsDocument, error) {
	g.state = StateInit

	latest, err := g.history.LatestSnapshot(ctx, entityID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			g.state = StateAborted
			g.logger.Info("no snapshot for entity, nothing to report", "entity", entityID)
			return nil, ErrNoSnapshot
		}
		g.state = StateAborted
		return nil, fmt.Errorf("load latest snapshot for %s: %w", entityID, err)
	}
	g.state = StateLoadedLatest

	prevDoc, prevSnap, err := g.loadPrevious(ctx, entityID, latest)
	if err != nil {
		g.state = StateAborted
		return nil, err
	}
	g.state = StateLoadedPrevious

	doc := g.compute(latest, prevDoc, prevSnap)
	g.state = StateComputed

	if err := g.history.PutDocument(ctx, doc); err != nil {
		g.state = StateAborted
		return nil, fmt.Errorf("persist document for %s: %w", entityID, err)
	}
	g.state = StatePersisted

	g.logger.Info("statistics document persisted",
		"entity", entityID,
		"timestamp", doc.Timestamp,
		"content_sets", len(doc.Delta),
	)
	return doc, nil
}

// loadPrevious finds the statistics document immediately preceding the
// latest snapshot, and the snapshot that document was computed from.
//
// When the latest snapshot's timestamp already has a persisted document
// (a re-run), the previous document is the one before it; diffing a
// snapshot against itself would always yield an empty delta.
func (g *Generator) loadPrevious(ctx context.Context, entityID string, latest *models.Snapshot) (*models.StatsDocument, *models.Snapshot, error) {
	prevDoc, err := g.history.LatestDocument(ctx, entityID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, nil, nil // first run ever for this entity
		}
		return nil, nil, fmt.Errorf("load previous document for %s: %w", entityID, err)
	}

	if prevDoc.Timestamp.Equal(latest.Timestamp) {
		prevDoc, err = g.history.NthLatestDocument(ctx, entityID, 1)
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return nil, nil, nil
			}
			return nil, nil, fmt.Errorf("load previous document for %s: %w", entityID, err)
		}
	}

	if prevDoc.Timestamp.After(latest.Timestamp) {
		g.logger.Error("existing document is newer than latest snapshot",
			"entity", entityID,
			"document_timestamp", prevDoc.Timestamp,
			"snapshot_timestamp", latest.Timestamp,
		)
		return nil, nil, fmt.Errorf("document at %s postdates latest snapshot for %s: %w",
			prevDoc.Timestamp, entityID, ErrHistoryInconsistent)
	}

	prevSnap, err := g.history.SnapshotAt(ctx, entityID, prevDoc.Timestamp)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			// A document without its snapshot is storage corruption or a
			// retention bug; computing deltas against nothing would mask it.
			g.logger.Error("snapshot missing for existing document",
				"entity", entityID,
				"timestamp", prevDoc.Timestamp,
			)
			return nil, nil, fmt.Errorf("snapshot at %s missing for %s: %w",
				prevDoc.Timestamp, entityID, ErrHistoryInconsistent)
		}
		return nil, nil, fmt.Errorf("load previous snapshot for %s: %w", entityID, err)
	}

	return prevDoc, prevSnap, nil
}

// compute assembles the new document from the latest snapshot, the previous
// document's time series, and the delta against the previous snapshot.
func (g *Generator) compute(latest *models.Snapshot, prevDoc *models.StatsDocument, prevSnap *models.Snapshot) *models.StatsDocument {
	// Diff every content set present in either snapshot, so a checker
	// variant that disappears still reports its removals.
	names := models.NewHashSet(latest.ContentSetNames()...)
	if prevSnap != nil {
		names.Union(models.NewHashSet(prevSnap.ContentSetNames()...))
	}

	deltas := make(map[string]models.Delta, len(names))
	for _, name := range names.Sorted() {
		deltas[name] = Diff(name, latest, prevSnap)
	}

	series := make(map[string][]models.TimePoint, len(latest.Scalars))
	if prevDoc != nil {
		for metric, points := range prevDoc.TimeSeries {
			series[metric] = append([]models.TimePoint(nil), points...)
		}
	}
	metrics := make([]string, 0, len(latest.Scalars))
	for metric := range latest.Scalars {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)
	for _, metric := range metrics {
		series[metric] = append(series[metric], models.TimePoint{
			Timestamp: latest.Timestamp,
			Value:     latest.Scalars[metric],
		})
	}

	return &models.StatsDocument{
		EntityID:  latest.EntityID,
		Kind:      latest.Kind,
		Timestamp: latest.Timestamp,
		Summary: models.Summary{
			Scalars:       latest.Scalars,
			Distributions: latest.Distributions,
		},
		Delta:      deltas,
		TimeSeries: series,
	}
}

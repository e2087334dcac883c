package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimePoint is one (run timestamp, value) sample of a metric time series.
// It marshals as a two-element array [timestamp, value].
type TimePoint struct {
	Timestamp time.Time
	Value     float64
}

// MarshalJSON encodes the point as ["<RFC3339Nano>", value].
func (p TimePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Timestamp.UTC().Format(time.RFC3339Nano), p.Value})
}

// UnmarshalJSON decodes a ["<RFC3339Nano>", value] pair.
func (p *TimePoint) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("time point must be a [timestamp, value] pair: %w", err)
	}
	var ts string
	if err := json.Unmarshal(pair[0], &ts); err != nil {
		return fmt.Errorf("time point timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("time point timestamp: %w", err)
	}
	if err := json.Unmarshal(pair[1], &p.Value); err != nil {
		return fmt.Errorf("time point value: %w", err)
	}
	p.Timestamp = t
	return nil
}

// Summary holds the scalar metrics of the latest snapshot, keyed by section.
type Summary struct {
	Scalars       map[string]float64     `json:"scalars"`
	Distributions map[string][]NameCount `json:"distributions,omitempty"`
}

// StatsDocument is the persisted output of one stats pipeline run: the
// latest snapshot's summary, the delta against the immediately previous
// snapshot, and the full metric time series including this run's point.
// Documents are never edited; a new run embeds the old series plus one point.
type StatsDocument struct {
	EntityID   string                 `json:"entity_id"`
	Kind       SnapshotKind           `json:"kind"`
	Timestamp  time.Time              `json:"timestamp"`
	Summary    Summary                `json:"summary"`
	Delta      map[string]Delta       `json:"delta"`
	TimeSeries map[string][]TimePoint `json:"time_series"`
}

// SeriesLength returns the number of points in the named metric's series.
func (d *StatsDocument) SeriesLength(metric string) int {
	return len(d.TimeSeries[metric])
}

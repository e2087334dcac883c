package models

// Delta is the set difference between two snapshots for one content set.
// Added and Removed are disjoint by construction.
type Delta struct {
	ContentSet string  `json:"content_set"`
	Added      HashSet `json:"added"`
	Removed    HashSet `json:"removed"`
}

// IsEmpty reports whether nothing was added or removed.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

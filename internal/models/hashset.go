package models

import (
	"encoding/json"
	"sort"
)

// HashSet is an unordered, deduplicated collection of content hash identifiers.
// It marshals to a sorted JSON array so that persisted documents are
// byte-stable across runs.
type HashSet map[string]struct{}

// NewHashSet creates a HashSet from the given hashes.
func NewHashSet(hashes ...string) HashSet {
	s := make(HashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

// Add inserts a hash into the set.
func (s HashSet) Add(hash string) {
	s[hash] = struct{}{}
}

// Contains reports whether the hash is in the set.
func (s HashSet) Contains(hash string) bool {
	_, ok := s[hash]
	return ok
}

// Union adds all hashes from other into s.
func (s HashSet) Union(other HashSet) {
	for h := range other {
		s[h] = struct{}{}
	}
}

// Subtract returns the hashes in s that are not in other.
func (s HashSet) Subtract(other HashSet) HashSet {
	out := make(HashSet)
	for h := range s {
		if _, ok := other[h]; !ok {
			out[h] = struct{}{}
		}
	}
	return out
}

// Equal reports whether two sets contain the same hashes.
func (s HashSet) Equal(other HashSet) bool {
	if len(s) != len(other) {
		return false
	}
	for h := range s {
		if _, ok := other[h]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s HashSet) Clone() HashSet {
	out := make(HashSet, len(s))
	for h := range s {
		out[h] = struct{}{}
	}
	return out
}

// Sorted returns the hashes in lexicographic order.
func (s HashSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s HashSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of hashes, dropping duplicates.
func (s *HashSet) UnmarshalJSON(data []byte) error {
	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return err
	}
	*s = NewHashSet(hashes...)
	return nil
}

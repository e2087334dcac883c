package models

import "time"

// Classification is the novelty verdict for one freshly computed result.
type Classification string

const (
	// ClassFirstEver: the key had no prior ledger. Always reported.
	ClassFirstEver Classification = "first_ever"
	// ClassUnchanged: nothing new compared to the immediately previous result.
	ClassUnchanged Classification = "unchanged"
	// ClassNewNeverSeen: content the key's history has never contained.
	ClassNewNeverSeen Classification = "new_never_seen"
	// ClassNewReappearance: content absent from the previous result but
	// seen at some point before. Reported, but distinguished from
	// genuinely novel content.
	ClassNewReappearance Classification = "new_reappearance"
)

// NoveltyLedger is the per-key cumulative record of every content hash ever
// produced for that key. AllSeen only grows; Latest is replaced on every
// result. Latest is always a subset of AllSeen after an update.
type NoveltyLedger struct {
	Key       string    `json:"key"`
	AllSeen   HashSet   `json:"all_hashes_ever_seen"`
	Latest    HashSet   `json:"latest_result_hashes"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic-concurrency token used for
	// compare-and-swap updates in the ledger store.
	Version int64 `json:"version"`
}

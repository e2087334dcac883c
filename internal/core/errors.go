package core

import "errors"

// Error taxonomy for pipeline-structural failures. All of these abort the
// run for the affected entity without partial persistence.
var (
	// ErrNoSnapshot means the entity has no latest snapshot to report on.
	// This is the expected steady state before an entity's first
	// successful run, not an operator-visible error.
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrHistoryInconsistent means a prior statistics document exists but
	// the snapshot it was computed from cannot be located. Indicates
	// storage corruption or a retention-policy bug and must be surfaced.
	ErrHistoryInconsistent = errors.New("history store inconsistent")

	// ErrMalformedInput means pipeline run output is structurally
	// incomplete. Snapshot construction fails entirely; partial
	// snapshots are never produced.
	ErrMalformedInput = errors.New("malformed run output")

	// ErrLedgerUnavailable means the novelty ledger store could not be
	// read or updated. Classification fails closed.
	ErrLedgerUnavailable = errors.New("novelty ledger unavailable")
)

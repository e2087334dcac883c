package models

import "time"

// EvidenceRecord is one piece of evidence backing an assembled statement.
type EvidenceRecord struct {
	SourceAPI string `json:"source_api"`
	PaperID   string `json:"paper_id,omitempty"`
}

// StatementRecord is one assembled statement as produced by the
// statement-assembly pipeline. Identity is the hash-stable Hash field.
type StatementRecord struct {
	Hash     string           `json:"hash"`
	Type     string           `json:"type"`
	Agents   []string         `json:"agents,omitempty"`
	Evidence []EvidenceRecord `json:"evidence,omitempty"`
}

// ModelRunOutput is the input for constructing a model snapshot.
type ModelRunOutput struct {
	EntityID   string            `json:"entity_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Statements []StatementRecord `json:"statements"`

	// RawPaperIDs are all papers processed by the reading pipeline,
	// whether or not any statement survived assembly.
	RawPaperIDs []string `json:"raw_paper_ids,omitempty"`
}

// TestRecord is one applied test with its per-checker-variant verdicts and,
// for passing variants, the hash of the mechanism path that was found.
type TestRecord struct {
	Hash     string             `json:"hash"`
	Verdicts map[string]Verdict `json:"verdicts"`
	Paths    map[string]string  `json:"paths,omitempty"` // variant -> path hash
}

// TestRunOutput is the input for constructing a test-run snapshot.
type TestRunOutput struct {
	EntityID  string       `json:"entity_id"`
	Timestamp time.Time    `json:"timestamp"`
	Corpus    string       `json:"corpus,omitempty"`
	Results   []TestRecord `json:"results"`
}

// QueryResult is the input to novelty classification: the externally
// computed answer to one registered query, reduced to item hashes.
type QueryResult struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Hashes    []string  `json:"hashes"`
}

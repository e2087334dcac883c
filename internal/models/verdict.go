package models

// Verdict is the raw per-checker-variant result code reported by the
// model-checking pipeline for one test.
type Verdict string

const (
	// VerdictPathsFound is the only definite pass.
	VerdictPathsFound Verdict = "paths_found"

	// Codes meaning the checker cannot structurally support the test's
	// mechanism class. These are not failures.
	VerdictStatementTypeNotHandled Verdict = "statement_type_not_handled"
	VerdictQueryNotApplicable      Verdict = "query_not_applicable"

	// Common failure codes. Any code not recognized above also counts
	// as failed.
	VerdictNoPathsFound          Verdict = "no_paths_found"
	VerdictMaxPathLengthExceeded Verdict = "max_path_length_exceeded"
	VerdictMaxPathsExceeded      Verdict = "max_paths_exceeded"
)

// Outcome is the tri-state classification of a verdict.
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeFailed
	OutcomeNotApplicable
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeNotApplicable:
		return "not_applicable"
	default:
		return "failed"
	}
}

// ClassifyVerdict maps a raw verdict code to its tri-state outcome. A test
// passes only on a definite pass; structurally unsupported tests are
// not applicable and excluded from both passed and failed counts.
func ClassifyVerdict(v Verdict) Outcome {
	switch v {
	case VerdictPathsFound:
		return OutcomePassed
	case VerdictStatementTypeNotHandled, VerdictQueryNotApplicable:
		return OutcomeNotApplicable
	default:
		return OutcomeFailed
	}
}

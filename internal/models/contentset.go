package models

import "strings"

// Canonical content set names. Checker-variant sets are produced by
// PassedTestsSet and PathsSet so new variants can appear mid-stream
// without code changes.
const (
	SetStatements      = "statements"
	SetRawPapers       = "raw_papers"
	SetAssembledPapers = "assembled_papers"
	SetAppliedTests    = "applied_tests"

	passedTestsPrefix = "passed_tests:"
	pathsPrefix       = "paths:"
)

// PassedTestsSet returns the content set name for tests passed under the
// given checker variant.
func PassedTestsSet(variant string) string {
	return passedTestsPrefix + variant
}

// PathsSet returns the content set name for the mechanism paths found by
// the given checker variant.
func PathsSet(variant string) string {
	return pathsPrefix + variant
}

// VariantOfSet extracts the checker variant from a variant-qualified content
// set name. Returns "" if the name is not variant-qualified.
func VariantOfSet(name string) string {
	if v, ok := strings.CutPrefix(name, passedTestsPrefix); ok {
		return v
	}
	if v, ok := strings.CutPrefix(name, pathsPrefix); ok {
		return v
	}
	return ""
}

package core

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kilupskalvis/mechmon/internal/models"
)

// Scalar metric names. Variant-qualified metrics carry the checker variant
// after a colon, mirroring the variant-qualified content set names.
const (
	MetricStatements      = "number_of_statements"
	MetricRawPapers       = "number_of_raw_papers"
	MetricAssembledPapers = "number_of_assembled_papers"
	MetricAppliedTests    = "number_applied_tests"
	MetricSkippedRecords  = "skipped_records"

	metricPassedPrefix = "number_passed_tests:"
	metricRatioPrefix  = "passed_ratio:"
	metricNAPrefix     = "number_not_applicable_tests:"
)

// MetricPassedTests returns the passed-count metric name for a variant.
func MetricPassedTests(variant string) string { return metricPassedPrefix + variant }

// MetricPassedRatio returns the pass-ratio metric name for a variant.
func MetricPassedRatio(variant string) string { return metricRatioPrefix + variant }

// MetricNotApplicable returns the not-applicable-count metric name for a variant.
func MetricNotApplicable(variant string) string { return metricNAPrefix + variant }

// sortedCounts converts a count map into a distribution sorted by
// descending count, ties broken by name for determinism.
func sortedCounts(counts map[string]int) []models.NameCount {
	out := make([]models.NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, models.NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// BuildModelSnapshot constructs a model snapshot from assembly pipeline
// output. Content sets and scalar metrics are materialized eagerly so that
// downstream comparisons never touch the raw payload.
//
// Structurally incomplete output fails the whole construction; a statement
// record without a hash is skipped and counted in the skipped_records
// metric.
func BuildModelSnapshot(in *models.ModelRunOutput) (*models.Snapshot, error) {
	if in == nil {
		return nil, fmt.Errorf("nil model run output: %w", ErrMalformedInput)
	}
	if in.EntityID == "" {
		return nil, fmt.Errorf("model run output has no entity id: %w", ErrMalformedInput)
	}
	if in.Timestamp.IsZero() {
		return nil, fmt.Errorf("model run output for %s has no timestamp: %w", in.EntityID, ErrMalformedInput)
	}
	if in.Statements == nil {
		return nil, fmt.Errorf("model run output for %s has no statements: %w", in.EntityID, ErrMalformedInput)
	}

	stmtHashes := models.NewHashSet()
	assembledPapers := models.NewHashSet()
	typeCounts := make(map[string]int)
	agentCounts := make(map[string]int)
	sourceCounts := make(map[string]int)
	evidenceCounts := make(map[string]int)
	skipped := 0

	for _, stmt := range in.Statements {
		if stmt.Hash == "" {
			skipped++
			continue
		}
		if stmtHashes.Contains(stmt.Hash) {
			continue
		}
		stmtHashes.Add(stmt.Hash)
		typeCounts[stmt.Type]++
		for _, agent := range stmt.Agents {
			agentCounts[agent]++
		}
		evidenceCounts[stmt.Hash] = len(stmt.Evidence)
		for _, ev := range stmt.Evidence {
			if ev.SourceAPI != "" {
				sourceCounts[ev.SourceAPI]++
			}
			if ev.PaperID != "" {
				assembledPapers.Add(ev.PaperID)
			}
		}
	}

	rawPapers := models.NewHashSet(in.RawPaperIDs...)

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal model run payload: %w", err)
	}

	return &models.Snapshot{
		Kind:      models.KindModel,
		EntityID:  in.EntityID,
		Timestamp: in.Timestamp,
		ContentSets: map[string]models.HashSet{
			models.SetStatements:      stmtHashes,
			models.SetRawPapers:       rawPapers,
			models.SetAssembledPapers: assembledPapers,
		},
		Scalars: map[string]float64{
			MetricStatements:      float64(len(stmtHashes)),
			MetricRawPapers:       float64(len(rawPapers)),
			MetricAssembledPapers: float64(len(assembledPapers)),
			MetricSkippedRecords:  float64(skipped),
		},
		Distributions: map[string][]models.NameCount{
			"statement_types":        sortedCounts(typeCounts),
			"agents":                 sortedCounts(agentCounts),
			"sources":                sortedCounts(sourceCounts),
			"statements_by_evidence": sortedCounts(evidenceCounts),
		},
		RawPayload: payload,
	}, nil
}

// TestEntityID returns the entity identity for a test run: the model
// combined with the test corpus it ran against.
func TestEntityID(modelID, corpus string) string {
	if corpus == "" {
		return modelID
	}
	return modelID + ":" + corpus
}

// BuildTestSnapshot constructs a test-run snapshot from model-checking
// pipeline output. Passed/failed/not-applicable classification is computed
// per checker variant; not-applicable tests are excluded from the pass
// ratio denominator.
func BuildTestSnapshot(in *models.TestRunOutput) (*models.Snapshot, error) {
	if in == nil {
		return nil, fmt.Errorf("nil test run output: %w", ErrMalformedInput)
	}
	if in.EntityID == "" {
		return nil, fmt.Errorf("test run output has no entity id: %w", ErrMalformedInput)
	}
	if in.Timestamp.IsZero() {
		return nil, fmt.Errorf("test run output for %s has no timestamp: %w", in.EntityID, ErrMalformedInput)
	}
	if in.Results == nil {
		return nil, fmt.Errorf("test run output for %s has no results: %w", in.EntityID, ErrMalformedInput)
	}

	applied := models.NewHashSet()
	passedByVariant := make(map[string]models.HashSet)
	pathsByVariant := make(map[string]models.HashSet)
	naCounts := make(map[string]int)
	appliedByVariant := make(map[string]int)
	skipped := 0

	for _, rec := range in.Results {
		if rec.Hash == "" || len(rec.Verdicts) == 0 {
			skipped++
			continue
		}
		if applied.Contains(rec.Hash) {
			continue
		}
		applied.Add(rec.Hash)

		for variant, verdict := range rec.Verdicts {
			appliedByVariant[variant]++
			switch models.ClassifyVerdict(verdict) {
			case models.OutcomePassed:
				if passedByVariant[variant] == nil {
					passedByVariant[variant] = models.NewHashSet()
				}
				passedByVariant[variant].Add(rec.Hash)
				if pathHash := rec.Paths[variant]; pathHash != "" {
					if pathsByVariant[variant] == nil {
						pathsByVariant[variant] = models.NewHashSet()
					}
					pathsByVariant[variant].Add(pathHash)
				}
			case models.OutcomeNotApplicable:
				naCounts[variant]++
			}
		}
	}

	contentSets := map[string]models.HashSet{
		models.SetAppliedTests: applied,
	}
	scalars := map[string]float64{
		MetricAppliedTests:   float64(len(applied)),
		MetricSkippedRecords: float64(skipped),
	}
	for variant := range appliedByVariant {
		passed := passedByVariant[variant]
		if passed == nil {
			passed = models.NewHashSet()
		}
		contentSets[models.PassedTestsSet(variant)] = passed
		if paths := pathsByVariant[variant]; paths != nil {
			contentSets[models.PathsSet(variant)] = paths
		}

		scalars[MetricPassedTests(variant)] = float64(len(passed))
		scalars[MetricNotApplicable(variant)] = float64(naCounts[variant])
		// Ratio denominator excludes not-applicable tests.
		denom := appliedByVariant[variant] - naCounts[variant]
		if denom > 0 {
			scalars[MetricPassedRatio(variant)] = float64(len(passed)) / float64(denom)
		} else {
			scalars[MetricPassedRatio(variant)] = 0
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal test run payload: %w", err)
	}

	return &models.Snapshot{
		Kind:        models.KindTestRun,
		EntityID:    TestEntityID(in.EntityID, in.Corpus),
		Timestamp:   in.Timestamp,
		ContentSets: contentSets,
		Scalars:     scalars,
		RawPayload:  payload,
	}, nil
}

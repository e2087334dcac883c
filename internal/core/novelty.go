package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kilupskalvis/mechmon/internal/models"
	"github.com/kilupskalvis/mechmon/internal/store"
)

// NoveltyReport is the outcome of classifying one query result.
type NoveltyReport struct {
	Key            string                `json:"key"`
	Classification models.Classification `json:"classification"`

	// NewVsLatest is content absent from the immediately previous result.
	NewVsLatest models.HashSet `json:"new_vs_latest"`
	// NewVsEver is content never seen in this key's entire history — the
	// part worth reporting loudly.
	NewVsEver models.HashSet `json:"new_vs_ever"`
}

// ShouldNotify reports whether the classification warrants a notification.
func (r *NoveltyReport) ShouldNotify() bool {
	return r.Classification != models.ClassUnchanged
}

// Tracker classifies freshly computed results against the cumulative
// per-key hash ledger. Diffing only against the previous result would
// re-notify every time a flaky result flips; the all-time ledger keeps
// reappearing content distinguishable from genuinely new content.
type Tracker struct {
	ledgers store.LedgerStore
	logger  *slog.Logger
}

// NewTracker creates a novelty tracker over the given ledger store.
func NewTracker(ledgers store.LedgerStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{ledgers: ledgers, logger: logger}
}

// Classify classifies a result and extends the key's ledger. The ledger
// update is a compare-and-swap; losing the race once triggers a single
// re-read, and any storage failure fails closed with ErrLedgerUnavailable
// (no classification, no notification — accumulation is monotone and will
// self-correct on the next cycle).
func (t *Tracker) Classify(ctx context.Context, result *models.QueryResult) (*NoveltyReport, error) {
	if result == nil || result.Key == "" {
		return nil, fmt.Errorf("query result has no key: %w", ErrMalformedInput)
	}

	report, err := t.classifyOnce(ctx, result)
	if errors.Is(err, store.ErrVersionConflict) {
		t.logger.Warn("ledger write conflict, retrying once", "key", result.Key)
		report, err = t.classifyOnce(ctx, result)
	}
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("ledger for %s kept conflicting: %w", result.Key, ErrLedgerUnavailable)
		}
		return nil, fmt.Errorf("ledger for %s: %w: %v", result.Key, ErrLedgerUnavailable, err)
	}

	t.logger.Info("classified query result",
		"key", result.Key,
		"classification", report.Classification,
		"new_vs_ever", len(report.NewVsEver),
	)
	return report, nil
}

func (t *Tracker) classifyOnce(ctx context.Context, result *models.QueryResult) (*NoveltyReport, error) {
	resultHashes := models.NewHashSet(result.Hashes...)

	ledger, err := t.ledgers.GetLedger(ctx, result.Key)
	if err != nil {
		if !errors.Is(err, store.ErrLedgerNotFound) {
			return nil, err
		}
		// First result ever for this key: nothing to compare against,
		// always reported as informative.
		ledger = &models.NoveltyLedger{
			Key:       result.Key,
			AllSeen:   resultHashes.Clone(),
			Latest:    resultHashes.Clone(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := t.ledgers.PutLedger(ctx, ledger, 0); err != nil {
			return nil, err
		}
		return &NoveltyReport{
			Key:            result.Key,
			Classification: models.ClassFirstEver,
			NewVsLatest:    resultHashes.Clone(),
			NewVsEver:      resultHashes.Clone(),
		}, nil
	}

	newVsLatest := resultHashes.Subtract(ledger.Latest)
	newVsEver := resultHashes.Subtract(ledger.AllSeen)

	expected := ledger.Version
	ledger.AllSeen.Union(resultHashes)
	ledger.Latest = resultHashes
	if err := t.ledgers.PutLedger(ctx, ledger, expected); err != nil {
		return nil, err
	}

	report := &NoveltyReport{
		Key:         result.Key,
		NewVsLatest: newVsLatest,
		NewVsEver:   newVsEver,
	}
	switch {
	case len(newVsLatest) == 0:
		report.Classification = models.ClassUnchanged
	case len(newVsEver) > 0:
		report.Classification = models.ClassNewNeverSeen
	default:
		report.Classification = models.ClassNewReappearance
	}
	return report, nil
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/models"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a history.Store with automatic retry on transient
// errors. It is intended to wrap an HTTPClient; local stores do not need
// retry.
type RetryClient struct {
	inner  history.Store
	config *RetryConfig
}

var _ history.Store = (*RetryClient)(nil)

// NewRetryClient creates a RetryClient around the given store.
func NewRetryClient(inner history.Store, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, history.ErrNotFound) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // network errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			d := rc.backoff(attempt)
			if err := sleep(ctx, d); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

// --- Delegate all Store methods through retry logic ---

func (rc *RetryClient) LatestSnapshot(ctx context.Context, entityID string) (snap *models.Snapshot, err error) {
	err = rc.retry(ctx, "latest snapshot", func() error {
		snap, err = rc.inner.LatestSnapshot(ctx, entityID)
		return err
	})
	return
}

func (rc *RetryClient) SnapshotAt(ctx context.Context, entityID string, ts time.Time) (snap *models.Snapshot, err error) {
	err = rc.retry(ctx, "snapshot at", func() error {
		snap, err = rc.inner.SnapshotAt(ctx, entityID, ts)
		return err
	})
	return
}

func (rc *RetryClient) PutSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	// Snapshot writes are idempotent (keyed by entity and timestamp), so
	// retry is safe.
	return rc.retry(ctx, "put snapshot", func() error {
		return rc.inner.PutSnapshot(ctx, snapshot)
	})
}

func (rc *RetryClient) LatestDocument(ctx context.Context, entityID string) (doc *models.StatsDocument, err error) {
	err = rc.retry(ctx, "latest document", func() error {
		doc, err = rc.inner.LatestDocument(ctx, entityID)
		return err
	})
	return
}

func (rc *RetryClient) NthLatestDocument(ctx context.Context, entityID string, n int) (doc *models.StatsDocument, err error) {
	err = rc.retry(ctx, "nth latest document", func() error {
		doc, err = rc.inner.NthLatestDocument(ctx, entityID, n)
		return err
	})
	return
}

func (rc *RetryClient) DocumentAt(ctx context.Context, entityID string, ts time.Time) (doc *models.StatsDocument, err error) {
	err = rc.retry(ctx, "document at", func() error {
		doc, err = rc.inner.DocumentAt(ctx, entityID, ts)
		return err
	})
	return
}

func (rc *RetryClient) PutDocument(ctx context.Context, doc *models.StatsDocument) error {
	return rc.retry(ctx, "put document", func() error {
		return rc.inner.PutDocument(ctx, doc)
	})
}

func (rc *RetryClient) ListDocuments(ctx context.Context, entityID string, limit int) (refs []history.DocumentRef, err error) {
	err = rc.retry(ctx, "list documents", func() error {
		refs, err = rc.inner.ListDocuments(ctx, entityID, limit)
		return err
	})
	return
}

func (rc *RetryClient) Entities(ctx context.Context) (entities []string, err error) {
	err = rc.retry(ctx, "list entities", func() error {
		entities, err = rc.inner.Entities(ctx)
		return err
	})
	return
}

func (rc *RetryClient) Close() error {
	return rc.inner.Close()
}

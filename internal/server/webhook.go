package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilupskalvis/mechmon/internal/core"
	"github.com/kilupskalvis/mechmon/internal/models"
)

// WebhookEvent represents the payload sent to webhook URLs. Stats events
// carry the document's delta section verbatim; novelty events carry the
// classification and the hash sets it was derived from. Subscribers build
// human-readable messages themselves, so the hashes must be present.
type WebhookEvent struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`

	// Stats event fields.
	Entity string                  `json:"entity,omitempty"`
	Kind   string                  `json:"kind,omitempty"`
	Deltas map[string]models.Delta `json:"deltas,omitempty"`

	// Novelty event fields.
	Key            string                `json:"key,omitempty"`
	Classification models.Classification `json:"classification,omitempty"`
	NewVsLatest    models.HashSet        `json:"new_vs_latest,omitempty"`
	NewVsEver      models.HashSet        `json:"new_vs_ever,omitempty"`
}

// WebhookConfig holds the list of configured webhook URLs.
type WebhookConfig struct {
	URLs []string
}

// WebhookNotifier sends HTTP POST notifications to configured webhook URLs.
// Deliveries run asynchronously; Close waits for in-flight deliveries, which
// short-lived callers must do before exiting.
type WebhookNotifier struct {
	config *WebhookConfig
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWebhookNotifier creates a webhook notifier. Returns nil if no URLs are configured.
func NewWebhookNotifier(cfg *WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	return &WebhookNotifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// NotifyStats sends a stats event for a freshly stored document to all
// configured webhook URLs. Runs asynchronously and never blocks the caller.
// Empty deltas are omitted so subscribers only see sets that changed.
func (wn *WebhookNotifier) NotifyStats(doc *models.StatsDocument) {
	if wn == nil {
		return
	}

	deltas := make(map[string]models.Delta)
	for name, d := range doc.Delta {
		if d.IsEmpty() {
			continue
		}
		deltas[name] = d
	}

	wn.dispatch(&WebhookEvent{
		ID:        uuid.New().String(),
		Event:     "stats",
		Entity:    doc.EntityID,
		Kind:      string(doc.Kind),
		Timestamp: doc.Timestamp.UTC().Format(time.RFC3339),
		Deltas:    deltas,
	})
}

// NotifyNovelty sends a novelty event for a classified query result.
// Unchanged results are skipped.
func (wn *WebhookNotifier) NotifyNovelty(report *core.NoveltyReport) {
	if wn == nil || !report.ShouldNotify() {
		return
	}

	wn.dispatch(&WebhookEvent{
		ID:             uuid.New().String(),
		Event:          "novelty",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Key:            report.Key,
		Classification: report.Classification,
		NewVsLatest:    report.NewVsLatest,
		NewVsEver:      report.NewVsEver,
	})
}

func (wn *WebhookNotifier) dispatch(event *WebhookEvent) {
	wn.wg.Add(1)
	go func() {
		defer wn.wg.Done()
		wn.send(event)
	}()
}

// Close waits for all in-flight deliveries to finish.
func (wn *WebhookNotifier) Close() {
	if wn == nil {
		return
	}
	wn.wg.Wait()
}

// send delivers the webhook event to all configured URLs.
func (wn *WebhookNotifier) send(event *WebhookEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		wn.logger.Error("webhook: marshal event", "error", err)
		return
	}

	for _, url := range wn.config.URLs {
		if err := wn.post(url, data); err != nil {
			webhookDeliveries.WithLabelValues("failed").Inc()
			wn.logger.Warn("webhook: delivery failed", "url", url, "error", err)
		} else {
			webhookDeliveries.WithLabelValues("delivered").Inc()
			wn.logger.Debug("webhook: delivered", "url", url, "event", event.Event)
		}
	}
}

// post sends a single webhook POST with retry (up to 2 retries).
func (wn *WebhookNotifier) post(url string, data []byte) error {
	const maxRetries = 2

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest("POST", url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "mechmon-server/1.0")

		resp, err := wn.client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr // don't retry 4xx
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}

	return lastErr
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/models"
)

// Backend is the history store the server exposes. It adds store statistics
// on top of the plain history contract.
type Backend interface {
	history.Store
	Stats(ctx context.Context) (*history.Info, error)
}

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody    int64  // bytes, for JSON endpoints
	RequestsPerMinute int    // per-client rate limit
	AuthToken         string // empty disables auth
	Webhooks          *WebhookNotifier
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody:    64 * 1024 * 1024, // 64MB
		RequestsPerMinute: 300,
	}
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(store Backend, cfg *ServerConfig, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)
	auth := authMiddleware(cfg.AuthToken)

	// Execution order: auth -> rate limit -> handler
	withAuth := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, auth, rl.middleware)
	}

	mux := http.NewServeMux()

	// Health and metrics endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.Entities(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: history store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Snapshots
	mux.Handle("GET /api/v1/entities/{entity}/snapshots/latest", withAuth(makeLatestSnapshotHandler(store)))
	mux.Handle("GET /api/v1/entities/{entity}/snapshots/{ts}", withAuth(makeSnapshotAtHandler(store)))
	mux.Handle("POST /api/v1/entities/{entity}/snapshots", withAuth(makePostSnapshotHandler(store, cfg)))

	// Statistics documents
	mux.Handle("GET /api/v1/entities/{entity}/documents/nth/{n}", withAuth(makeNthDocumentHandler(store)))
	mux.Handle("GET /api/v1/entities/{entity}/documents/{ts}", withAuth(makeDocumentAtHandler(store)))
	mux.Handle("GET /api/v1/entities/{entity}/documents", withAuth(makeListDocumentsHandler(store)))
	mux.Handle("POST /api/v1/entities/{entity}/documents", withAuth(makePostDocumentHandler(store, cfg)))

	// Listing and info
	mux.Handle("GET /api/v1/entities", withAuth(makeListEntitiesHandler(store)))
	mux.Handle("GET /api/v1/info", withAuth(makeInfoHandler(store)))

	// Admin
	mux.Handle("POST /api/v1/admin/prune", withAuth(makePruneHandler(store, logger)))

	// Apply global middleware
	handler := applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		metricsMiddleware,
		requestIDMiddleware,
	)

	cleanup := func() {
		rl.Stop()
		cfg.Webhooks.Close()
	}

	return handler, cleanup
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// parseTimestamp parses the {ts} path segment.
func parseTimestamp(r *http.Request) (time.Time, error) {
	raw := r.PathValue("ts")
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return ts, nil
}

// writeStoreError maps store errors to HTTP responses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "no such record"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
}

// --- Snapshot Handlers ---

func makeLatestSnapshotHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.LatestSnapshot(r.Context(), r.PathValue("entity"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func makeSnapshotAtHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := parseTimestamp(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
			return
		}
		snap, err := store.SnapshotAt(r.Context(), r.PathValue("entity"), ts)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func makePostSnapshotHandler(store Backend, cfg *ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap models.Snapshot
		if err := readJSON(r, cfg.MaxRequestBody, &snap); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
			return
		}

		entity := r.PathValue("entity")
		if snap.EntityID != entity {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "validation_failed",
				"message": fmt.Sprintf("snapshot entity %q does not match path entity %q", snap.EntityID, entity),
			})
			return
		}
		if snap.Kind != models.KindModel && snap.Kind != models.KindTestRun {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "validation_failed",
				"message": fmt.Sprintf("unknown snapshot kind %q", snap.Kind),
			})
			return
		}
		if snap.Timestamp.IsZero() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "validation_failed",
				"message": "snapshot timestamp is required",
			})
			return
		}

		if err := store.PutSnapshot(r.Context(), &snap); err != nil {
			writeStoreError(w, err)
			return
		}
		snapshotsStored.WithLabelValues(string(snap.Kind)).Inc()

		w.WriteHeader(http.StatusCreated)
	}
}

// --- Document Handlers ---

func makeNthDocumentHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "n must be a non-negative integer"})
			return
		}
		doc, err := store.NthLatestDocument(r.Context(), r.PathValue("entity"), n)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func makeDocumentAtHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := parseTimestamp(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
			return
		}
		doc, err := store.DocumentAt(r.Context(), r.PathValue("entity"), ts)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func makeListDocumentsHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}

		refs, err := store.ListDocuments(r.Context(), r.PathValue("entity"), limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if refs == nil {
			refs = []history.DocumentRef{}
		}
		writeJSON(w, http.StatusOK, refs)
	}
}

func makePostDocumentHandler(store Backend, cfg *ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc models.StatsDocument
		if err := readJSON(r, cfg.MaxRequestBody, &doc); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
			return
		}

		entity := r.PathValue("entity")
		if doc.EntityID != entity {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "validation_failed",
				"message": fmt.Sprintf("document entity %q does not match path entity %q", doc.EntityID, entity),
			})
			return
		}
		if doc.Timestamp.IsZero() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "validation_failed",
				"message": "document timestamp is required",
			})
			return
		}

		if err := store.PutDocument(r.Context(), &doc); err != nil {
			writeStoreError(w, err)
			return
		}
		documentsStored.Inc()

		// Fire webhook on successful document store
		if cfg.Webhooks != nil {
			cfg.Webhooks.NotifyStats(&doc)
		}

		w.WriteHeader(http.StatusCreated)
	}
}

// --- Listing and Info Handlers ---

func makeListEntitiesHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := store.Entities(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if entities == nil {
			entities = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"entities": entities})
	}
}

func makeInfoHandler(store Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := store.Stats(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

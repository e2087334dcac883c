package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kilupskalvis/mechmon/internal/history"
)

// PruneResult contains the outcome of a blob pruning run.
type PruneResult struct {
	BlobsScanned    int `json:"blobs_scanned"`
	BlobsDeleted    int `json:"blobs_deleted"`
	ReferencedBlobs int `json:"referenced_blobs"`
}

// Prune removes blobs not referenced by any snapshot or document in the
// index. Only unreferenced payloads are removed; the history itself is
// never rewritten.
func Prune(ctx context.Context, local *history.Local, logger *slog.Logger) (*PruneResult, error) {
	result := &PruneResult{}

	referenced, err := local.Index().ReferencedHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("get referenced hashes: %w", err)
	}
	result.ReferencedBlobs = len(referenced)

	allHashes, err := local.Blobs().ListHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blob hashes: %w", err)
	}
	result.BlobsScanned = len(allHashes)

	for _, hash := range allHashes {
		if referenced[hash] {
			continue
		}
		if err := local.Blobs().Delete(ctx, hash); err != nil {
			logger.Warn("prune: failed to delete blob", "hash", hash, "error", err)
			continue
		}
		result.BlobsDeleted++
	}

	logger.Info("prune complete",
		"scanned", result.BlobsScanned,
		"referenced", result.ReferencedBlobs,
		"deleted", result.BlobsDeleted,
	)

	return result, nil
}

// makePruneHandler exposes pruning to operators. Only a locally backed
// server can prune; a backend without direct blob access gets 501.
func makePruneHandler(store Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		local, ok := store.(*history.Local)
		if !ok {
			writeJSON(w, http.StatusNotImplemented, map[string]string{
				"error": "not_supported", "message": "backend does not support pruning",
			})
			return
		}
		result, err := Prune(r.Context(), local, logger)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal_error", "message": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

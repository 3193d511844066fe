package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/duka-app/dukago/internal/models"
	syncpkg "github.com/duka-app/dukago/internal/sync"
	"github.com/gorilla/mux"
)

// SyncHandler handles synchronization requests
type SyncHandler struct {
	engine        *syncpkg.Engine
	retentionDays int
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(engine *syncpkg.Engine, retentionDays int) *SyncHandler {
	return &SyncHandler{engine: engine, retentionDays: retentionDays}
}

// RegisterRoutes registers sync routes
func (sh *SyncHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sync/push", sh.PushOperations).Methods("POST")
	r.HandleFunc("/sync/pull", sh.PullOperations).Methods("GET")
	r.HandleFunc("/sync/conflicts", sh.ListConflicts).Methods("GET")
	r.HandleFunc("/sync/deduplicate", sh.Deduplicate).Methods("POST")
	r.HandleFunc("/sync/cleanup", sh.Cleanup).Methods("POST")
}

// PushOperations applies a batch of offline operations in order.
func (sh *SyncHandler) PushOperations(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Operations []syncpkg.ClientOperation `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Operations) == 0 {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"results": []syncpkg.OperationResult{},
		})
		return
	}
	if len(req.Operations) > 500 {
		respondError(w, http.StatusRequestEntityTooLarge, "too many operations in one batch (max 500)")
		return
	}

	results := sh.engine.ApplyBatch(r.Context(), caller.BusinessID, caller.UserID, req.Operations)

	applied, conflicts, failed := 0, 0, 0
	for _, res := range results {
		switch res.Status {
		case models.SyncStatusApplied:
			applied++
		case models.SyncStatusConflict:
			conflicts++
		default:
			failed++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"summary": map[string]int{
			"applied":   applied,
			"conflicts": conflicts,
			"failed":    failed,
		},
	})
}

// PullOperations returns applied operations after the given timestamp so a
// returning client can catch up.
func (sh *SyncHandler) PullOperations(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	ops, err := sh.engine.OperationsSince(r.Context(), caller.BusinessID, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load operations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
		"serverTime": time.Now().UTC(),
	})
}

// ListConflicts returns recent conflicted operations.
func (sh *SyncHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	conflicts, err := sh.engine.ConflictLog(r.Context(), caller.BusinessID, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load conflicts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conflicts": conflicts,
		"count":     len(conflicts),
	})
}

// Deduplicate removes redundant copies of the same logical operation.
func (sh *SyncHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	removed, err := sh.engine.Deduplicate(r.Context(), caller.BusinessID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "deduplication failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

// Cleanup purges operation records past the retention window.
func (sh *SyncHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCaller(w, r); !ok {
		return
	}

	purged, err := sh.engine.PurgeOlderThan(r.Context(), sh.retentionDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"purged":        purged,
		"retentionDays": sh.retentionDays,
	})
}

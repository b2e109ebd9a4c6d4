package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/gradestats/internal/domain/model"
)

// SnapshotDependencies defines the interface for snapshot operations.
type SnapshotDependencies interface {
	RebuildSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error)
	LatestSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error)
}

// SnapshotsHandler serves cohort snapshots.
type SnapshotsHandler struct {
	deps SnapshotDependencies
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(deps SnapshotDependencies) *SnapshotsHandler {
	return &SnapshotsHandler{deps: deps}
}

// HandleRebuild handles POST /snapshots/rebuild. It answers 204 when the
// slice has nothing to snapshot.
func (h *SnapshotsHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	snap, err := h.deps.RebuildSnapshot(r.Context(), req.key())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleGetLatest handles GET /snapshots?name=&scope=&semester=&year=.
func (h *SnapshotsHandler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelectionQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	snap, err := h.deps.LatestSnapshot(r.Context(), sel.key())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: no snapshot for %s", ErrNotFound, sel.key()))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

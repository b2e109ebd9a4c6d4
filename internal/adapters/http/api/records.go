package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/gradestats/internal/domain/model"
)

// RecordDependencies defines the interface for record import and lookup.
type RecordDependencies interface {
	ImportRecord(ctx context.Context, rec *model.SemesterRecord) (*model.SemesterRecord, error)
	SemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error)
}

// RecordsHandler handles semester records.
type RecordsHandler struct {
	deps RecordDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandlePostRecord handles POST /records. Derived fields in the body are
// ignored and recomputed.
func (h *RecordsHandler) HandlePostRecord(w http.ResponseWriter, r *http.Request) {
	var rec model.SemesterRecord
	if err := decodeBody(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	stored, err := h.deps.ImportRecord(r.Context(), &rec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// HandleGetRecord handles GET /records/{studentID}?semester=&year=.
func (h *RecordsHandler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	q, err := parseSemesterQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	studentID := r.PathValue("studentID")
	rec, err := h.deps.SemesterRecord(r.Context(), studentID, q.Semester, q.AcademicYear)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: record of %s", ErrNotFound, studentID))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

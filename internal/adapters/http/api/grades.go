package api

import (
	"context"
	"net/http"

	service "github.com/okian/gradestats/internal/app"
	"github.com/okian/gradestats/internal/domain/model"
)

// GradeDependencies defines the interface for grade updates.
type GradeDependencies interface {
	UpdateGrade(ctx context.Context, u service.GradeUpdate) (*model.SemesterRecord, error)
}

// GradesHandler handles grade updates.
type GradesHandler struct {
	deps GradeDependencies
}

// NewGradesHandler creates a new grades handler.
func NewGradesHandler(deps GradeDependencies) *GradesHandler {
	return &GradesHandler{deps: deps}
}

// HandlePutGrade handles PUT /grades. A null score clears the grade.
// The recomputed record is returned; snapshot rebuilds happen later.
func (h *GradesHandler) HandlePutGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.UpdateGrade(r.Context(), service.GradeUpdate{
		StudentID:    req.StudentID,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		EntryID:      req.EntryID,
		Score:        req.Score,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

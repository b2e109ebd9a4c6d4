package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/gradestats/internal/domain/model"
)

// StatisticsDependencies defines the interface for student statistics.
type StatisticsDependencies interface {
	UserStatistics(ctx context.Context, studentID string, semester int, academicYear string) (*model.UserStatistics, error)
	GroupStats(ctx context.Context, key model.SelectionKey, level model.Level, label, studentID string) (*model.UserGroupStats, error)
}

// StatisticsHandler serves per-student cohort statistics.
type StatisticsHandler struct {
	deps StatisticsDependencies
}

// NewStatisticsHandler creates a new statistics handler.
func NewStatisticsHandler(deps StatisticsDependencies) *StatisticsHandler {
	return &StatisticsHandler{deps: deps}
}

// HandleGetStatistics handles GET /statistics/{studentID}?semester=&year=.
func (h *StatisticsHandler) HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	q, err := parseSemesterQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	studentID := r.PathValue("studentID")
	stats, err := h.deps.UserStatistics(r.Context(), studentID, q.Semester, q.AcademicYear)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: no record for %s", ErrNotFound, studentID))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleGetLevel handles
// GET /statistics/{studentID}/{level}?name=&scope=&semester=&year=&label=.
// label names the branch or class group for the narrow levels.
func (h *StatisticsHandler) HandleGetLevel(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelectionQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	level := model.Level(r.PathValue("level"))
	switch level {
	case model.LevelBranch, model.LevelGroup, model.LevelSpecialization, model.LevelCurriculum:
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: unknown level %q", ErrBadRequest, level))
		return
	}

	studentID := r.PathValue("studentID")
	stats, err := h.deps.GroupStats(r.Context(), sel.key(), level, r.URL.Query().Get("label"), studentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: no %s statistics for %s", ErrNotFound, level, studentID))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

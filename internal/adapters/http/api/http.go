// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/gradestats/internal/app"
	"github.com/okian/gradestats/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	UpdateGrade(ctx context.Context, u service.GradeUpdate) (*model.SemesterRecord, error)
	ImportRecord(ctx context.Context, rec *model.SemesterRecord) (*model.SemesterRecord, error)
	SemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error)

	UserStatistics(ctx context.Context, studentID string, semester int, academicYear string) (*model.UserStatistics, error)
	GroupStats(ctx context.Context, key model.SelectionKey, level model.Level, label, studentID string) (*model.UserGroupStats, error)

	RebuildSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error)
	LatestSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	gradesHandler     *GradesHandler
	recordsHandler    *RecordsHandler
	statisticsHandler *StatisticsHandler
	snapshotsHandler  *SnapshotsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		gradesHandler:     NewGradesHandler(deps),
		recordsHandler:    NewRecordsHandler(deps),
		statisticsHandler: NewStatisticsHandler(deps),
		snapshotsHandler:  NewSnapshotsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("PUT /grades", MetricsMiddleware(s.gradesHandler.HandlePutGrade, "grades"))
	mux.HandleFunc("POST /records", MetricsMiddleware(s.recordsHandler.HandlePostRecord, "records"))
	mux.HandleFunc("GET /records/{studentID}", MetricsMiddleware(s.recordsHandler.HandleGetRecord, "records"))

	mux.HandleFunc("GET /statistics/{studentID}", MetricsMiddleware(s.statisticsHandler.HandleGetStatistics, "statistics"))
	mux.HandleFunc("GET /statistics/{studentID}/{level}", MetricsMiddleware(s.statisticsHandler.HandleGetLevel, "statistics_level"))

	mux.HandleFunc("POST /snapshots/rebuild", MetricsMiddleware(s.snapshotsHandler.HandleRebuild, "snapshots_rebuild"))
	mux.HandleFunc("GET /snapshots", MetricsMiddleware(s.snapshotsHandler.HandleGetLatest, "snapshots"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service sentinels into HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRecordNotFound), errors.Is(err, service.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrRecordLocked):
		writeError(w, http.StatusConflict, "locked", err)
	case errors.Is(err, service.ErrScoreOutOfRange),
		errors.Is(err, service.ErrInvalidKey),
		errors.Is(err, service.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

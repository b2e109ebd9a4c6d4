// Package service wires the grade engine together: it recomputes records on
// grade updates, schedules snapshot rebuilds and answers statistics queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/okian/gradestats/internal/adapters/mq/queue"
	workerpool "github.com/okian/gradestats/internal/adapters/mq/worker"
	"github.com/okian/gradestats/internal/adapters/notify"
	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/averaging"
	"github.com/okian/gradestats/internal/domain/cohortstats"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/snapshot"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

const (
	defaultWorkerCount = 2
	defaultQueueSize   = 1024

	reasonGradeUpdate  = "grade_update"
	reasonRecordImport = "record_import"
)

// Notifier delivers a best-effort message to a student.
type Notifier interface {
	Notify(ctx context.Context, studentID, message string) error
}

// GradeUpdate changes the score of one grade entry. A nil Score clears it.
type GradeUpdate struct {
	StudentID    string
	Semester     int
	AcademicYear string
	EntryID      string
	Score        *float64
}

// Service implements the operations exposed by the HTTP API.
type Service struct {
	mu sync.RWMutex

	records   repository.SemesterStore
	snapshots repository.SnapshotStore
	notifier  Notifier

	builder *snapshot.Builder
	facade  *cohortstats.Facade
	levels  *cohortstats.Service

	queue eventqueue.Queue
	pool  *workerpool.Pool

	workerCount     int
	queueSize       int
	leaderboardSize int
	now             func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Stores default to one shared in-memory store.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     defaultWorkerCount,
		queueSize:       defaultQueueSize,
		leaderboardSize: cohortstats.DefaultLeaderboardSize,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.records == nil || s.snapshots == nil {
		mem := repository.NewMemoryStore()
		if s.records == nil {
			s.records = mem
		}
		if s.snapshots == nil {
			s.snapshots = mem
		}
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.notifier == nil {
		s.notifier = notify.NewGate(notify.NewLogSender(s.logger.Named("notify")))
	}

	s.builder = snapshot.NewBuilder(s.records, snapshot.WithClock(s.now))
	s.facade = cohortstats.NewFacade(s.records, s.snapshots, s.leaderboardSize)
	s.levels = cohortstats.NewService(s.snapshots, s.leaderboardSize)
	return s
}

// Start creates the rebuild queue and starts the worker pool. The workers
// outlive ctx: they stop once Stop has drained the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting grade service...")

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "grade service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop closes the queue and waits for pending rebuilds to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping grade service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown worker pool: %w", err)
	}
	s.started = false
	s.logger.Info(ctx, "grade service stopped")
	return nil
}

// UpdateGrade applies a grade change, recomputes the record and persists
// it. Snapshot rebuilds of both cohort slices of the student are scheduled
// in the background and the student is notified; neither can fail the call.
// Updates of the same record are applied one at a time.
func (s *Service) UpdateGrade(ctx context.Context, u GradeUpdate) (*model.SemesterRecord, error) {
	rec, err := s.records.UpdateSemesterRecord(ctx, u.StudentID, u.Semester, u.AcademicYear, func(rec *model.SemesterRecord) error {
		if rec.Locked {
			return ErrRecordLocked
		}
		entry, ok := rec.FindEntry(u.EntryID)
		if !ok {
			return ErrEntryNotFound
		}
		if u.Score == nil {
			entry.Score = nil
		} else {
			score := *u.Score
			if !inRange(score, entry.MaxScore) {
				return fmt.Errorf("%w: %v not in [0, %v]", ErrScoreOutOfRange, score, entry.MaxScore)
			}
			entry.Score = &score
		}
		s.recompute(rec)
		return nil
	})
	if err != nil {
		metrics.RecordGradeUpdate(gradeUpdateResult(err))
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			return nil, ErrRecordNotFound
		case errors.Is(err, ErrRecordLocked), errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrScoreOutOfRange):
			return nil, err
		}
		return nil, fmt.Errorf("update semester record: %w", err)
	}
	metrics.RecordGradeUpdate("ok")

	s.scheduleRebuilds(ctx, rec, reasonGradeUpdate)
	s.notify(ctx, rec.StudentID, "Your grades have been updated.")
	return rec, nil
}

func gradeUpdateResult(err error) string {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrRecordLocked):
		return "locked"
	case errors.Is(err, ErrEntryNotFound):
		return "entry_not_found"
	case errors.Is(err, ErrScoreOutOfRange):
		return "out_of_range"
	default:
		return "error"
	}
}

// inRange reports whether score lies in [0, limit]. NaN is out of range.
func inRange(score, limit float64) bool {
	return score >= 0 && score <= limit
}

// ImportRecord recomputes and stores a whole semester record, then schedules
// the rebuild of its cohort slices.
func (s *Service) ImportRecord(ctx context.Context, rec *model.SemesterRecord) (*model.SemesterRecord, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	rec = rec.Clone()
	s.recompute(rec)
	if err := s.records.SaveSemesterRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("save semester record: %w", err)
	}
	s.scheduleRebuilds(ctx, rec, reasonRecordImport)
	return rec, nil
}

// validateRecord checks the identity of a record and the invariants of its
// tree: positive coefficients and maxima, and scores within [0, max].
func validateRecord(rec *model.SemesterRecord) error {
	if rec == nil || rec.StudentID == "" || rec.Semester < 1 || rec.AcademicYear == "" ||
		rec.Curriculum == "" || rec.Specialization == "" {
		return ErrInvalidRecord
	}
	for _, unit := range rec.Units {
		if !(unit.Coefficient > 0) || unit.Credits < 0 {
			return fmt.Errorf("%w: unit %s: coefficient must be positive and credits non-negative", ErrInvalidRecord, unit.Code)
		}
		for _, mod := range unit.Modules {
			if !(mod.Coefficient > 0) {
				return fmt.Errorf("%w: module %s: coefficient must be positive", ErrInvalidRecord, mod.Code)
			}
			for _, e := range mod.Entries {
				if !(e.Coefficient > 0) || !(e.MaxScore > 0) {
					return fmt.Errorf("%w: entry %s: coefficient and max score must be positive", ErrInvalidRecord, e.ID)
				}
				if e.Score != nil && !inRange(*e.Score, e.MaxScore) {
					return fmt.Errorf("%w: entry %s: %v not in [0, %v]", ErrScoreOutOfRange, e.ID, *e.Score, e.MaxScore)
				}
			}
		}
	}
	return nil
}

// SemesterRecord returns a student's record; nil when absent.
func (s *Service) SemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error) {
	return s.records.FindOneSemesterRecord(ctx, studentID, semester, academicYear)
}

func (s *Service) recompute(rec *model.SemesterRecord) {
	start := time.Now()
	averaging.Recompute(rec)
	metrics.RecordRecomputeLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// RebuildSnapshot builds the snapshot of key and persists it. It returns
// nil, nil when the slice has nothing to snapshot.
func (s *Service) RebuildSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	start := time.Now()
	elapsed := func() float64 { return float64(time.Since(start).Milliseconds()) }

	snap, err := s.builder.Build(ctx, key)
	if err != nil {
		metrics.RecordSnapshotRebuild(string(key.Scope), "error", elapsed())
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	if snap == nil {
		metrics.RecordSnapshotRebuild(string(key.Scope), "empty", elapsed())
		return nil, nil
	}

	action, stored, err := s.snapshots.Upsert(ctx, *snap, s.now())
	if err != nil {
		metrics.RecordSnapshotRebuild(string(key.Scope), "error", elapsed())
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}
	metrics.RecordSnapshotRebuild(string(key.Scope), string(action), elapsed())
	s.logger.Debug(ctx, "snapshot stored",
		logger.String("key", key.String()),
		logger.String("action", string(action)),
		logger.String("id", stored.ID),
	)
	return &stored, nil
}

// ScheduleRebuild queues a background rebuild of key. Failures are logged.
func (s *Service) ScheduleRebuild(ctx context.Context, key model.SelectionKey, reason string) {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()

	if !started {
		s.logger.Warn(ctx, "service not started, rebuild dropped", logger.String("key", key.String()))
		return
	}
	job := eventqueue.RebuildJob{Key: key, Reason: reason, EnqueuedAt: s.now()}
	if err := q.Enqueue(ctx, job); err != nil {
		s.logger.Warn(ctx, "rebuild not scheduled",
			logger.String("key", key.String()),
			logger.String("reason", reason),
			logger.Error(err),
		)
	}
}

func (s *Service) scheduleRebuilds(ctx context.Context, rec *model.SemesterRecord, reason string) {
	s.ScheduleRebuild(ctx, rec.SelectionKey(model.ScopeSpecialization), reason)
	s.ScheduleRebuild(ctx, rec.SelectionKey(model.ScopeCurriculum), reason)
}

func (s *Service) notify(ctx context.Context, studentID, message string) {
	err := s.notifier.Notify(ctx, studentID, message)
	switch {
	case err == nil:
	case errors.Is(err, notify.ErrSuppressed):
		s.logger.Debug(ctx, "notification suppressed", logger.String("student_id", studentID))
	default:
		s.logger.Warn(ctx, "notification failed", logger.String("student_id", studentID), logger.Error(err))
	}
}

// UserStatistics returns the per-level standing of a student; nil when the
// student has no record for the semester.
func (s *Service) UserStatistics(ctx context.Context, studentID string, semester int, academicYear string) (*model.UserStatistics, error) {
	return s.facade.UserStatistics(ctx, studentID, semester, academicYear)
}

// GroupStats returns the standing of a student at one level of a cohort.
func (s *Service) GroupStats(ctx context.Context, key model.SelectionKey, level model.Level, label, studentID string) (*model.UserGroupStats, error) {
	return s.levels.GroupStats(ctx, key, level, label, studentID)
}

// LatestSnapshot returns the most recent snapshot of key; nil when none.
func (s *Service) LatestSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	current, _, err := s.snapshots.Latest(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return current, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"leaderboardSize": s.leaderboardSize,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(context.Background())
	}
	return stats
}

package cohortstats

import (
	"context"
	"fmt"

	"github.com/okian/gradestats/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// RecordFinder loads one student's semester record; nil when absent.
type RecordFinder interface {
	FindOneSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error)
}

// Facade composes the four grouping levels into one response.
type Facade struct {
	records   RecordFinder
	snapshots SnapshotReader
	top       int
}

// NewFacade creates a Facade.
func NewFacade(records RecordFinder, snapshots SnapshotReader, leaderboardSize int) *Facade {
	if leaderboardSize < 1 {
		leaderboardSize = DefaultLeaderboardSize
	}
	return &Facade{records: records, snapshots: snapshots, top: leaderboardSize}
}

type pair struct {
	current, previous *model.Snapshot
}

// UserStatistics returns the branch, group, specialization and curriculum
// standing of a student for one semester. It returns nil when the student
// has no record for that semester. Branch is omitted when the record has no
// branch or the branch view is unavailable; other levels are nil until
// their cohort has a snapshot.
func (f *Facade) UserStatistics(ctx context.Context, studentID string, semester int, academicYear string) (*model.UserStatistics, error) {
	rec, err := f.records.FindOneSemesterRecord(ctx, studentID, semester, academicYear)
	if err != nil {
		return nil, fmt.Errorf("find semester record: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	var spec, curr pair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spec.current, spec.previous, err = f.snapshots.Latest(gctx, rec.SelectionKey(model.ScopeSpecialization))
		return err
	})
	g.Go(func() error {
		var err error
		curr.current, curr.previous, err = f.snapshots.Latest(gctx, rec.SelectionKey(model.ScopeCurriculum))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	out := &model.UserStatistics{
		StudentID:      studentID,
		Semester:       semester,
		AcademicYear:   academicYear,
		Group:          Compute(spec.current, spec.previous, model.LevelGroup, rec.Group, studentID, f.top),
		Specialization: Compute(spec.current, spec.previous, model.LevelSpecialization, rec.Specialization, studentID, f.top),
		Curriculum:     Compute(curr.current, curr.previous, model.LevelCurriculum, rec.Curriculum, studentID, f.top),
	}
	if rec.Branch != "" {
		out.Branch = Compute(spec.current, spec.previous, model.LevelBranch, rec.Branch, studentID, f.top)
	}
	return out, nil
}

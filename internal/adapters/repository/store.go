// Package repository defines the persistence interfaces of the engine and
// an in-memory implementation of them.
package repository

import (
	"context"
	"time"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/snapshot"
)

// SemesterStore persists student semester records.
type SemesterStore interface {
	// FindSemesterRecords returns every record of the cohort slice, in a
	// stable order.
	FindSemesterRecords(ctx context.Context, key model.SelectionKey) ([]model.SemesterRecord, error)
	// FindOneSemesterRecord returns nil, nil when the student has no record.
	FindOneSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error)
	// SaveSemesterRecord inserts or replaces the record of a student and semester.
	SaveSemesterRecord(ctx context.Context, rec *model.SemesterRecord) error
	// UpdateSemesterRecord loads a record, applies fn to it and saves the
	// result as one step. Updates of the same record are serialized. Nothing
	// is written when fn fails; a missing record yields ErrRecordNotFound.
	UpdateSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string, fn func(*model.SemesterRecord) error) (*model.SemesterRecord, error)
}

// SnapshotStore persists dated cohort snapshots.
type SnapshotStore interface {
	// Latest returns the most recent snapshot of key and the one before it.
	Latest(ctx context.Context, key model.SelectionKey) (current, previous *model.Snapshot, err error)
	// Upsert stores snap under its key. A snapshot already taken on the
	// calendar day of now is updated in place; otherwise a new one is added.
	Upsert(ctx context.Context, snap model.Snapshot, now time.Time) (snapshot.Action, model.Snapshot, error)
}

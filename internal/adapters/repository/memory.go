package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/snapshot"
	"github.com/okian/gradestats/pkg/metrics"
)

// MemoryStore keeps records and snapshots in process memory. It implements
// both SemesterStore and SnapshotStore.
type MemoryStore struct {
	mu sync.RWMutex

	records map[string]*model.SemesterRecord
	order   []string // insertion order of record keys

	// snapshots per selection key, oldest first
	snapshots map[model.SelectionKey][]model.Snapshot

	loc   *time.Location
	newID func() string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records:   make(map[string]*model.SemesterRecord),
		snapshots: make(map[model.SelectionKey][]model.Snapshot),
		loc:       time.UTC,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func recordKey(studentID string, semester int, academicYear string) string {
	return fmt.Sprintf("%s|%d|%s", studentID, semester, academicYear)
}

// FindSemesterRecords implements SemesterStore.
func (s *MemoryStore) FindSemesterRecords(ctx context.Context, key model.SelectionKey) ([]model.SemesterRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.SemesterRecord
	for _, k := range s.order {
		r := s.records[k]
		if r.Semester != key.Semester || r.AcademicYear != key.AcademicYear {
			continue
		}
		if r.SelectionKey(key.Scope).Name != key.Name {
			continue
		}
		out = append(out, *r.Clone())
	}
	return out, nil
}

// FindOneSemesterRecord implements SemesterStore.
func (s *MemoryStore) FindOneSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[recordKey(studentID, semester, academicYear)]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

// SaveSemesterRecord implements SemesterStore. Records without an id get one.
func (s *MemoryStore) SaveSemesterRecord(ctx context.Context, rec *model.SemesterRecord) error {
	if rec == nil || rec.StudentID == "" || rec.Semester < 1 || rec.AcademicYear == "" {
		return ErrInvalidRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	k := recordKey(rec.StudentID, rec.Semester, rec.AcademicYear)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[k]; !exists {
		s.order = append(s.order, k)
	}
	s.records[k] = rec.Clone()
	return nil
}

// UpdateSemesterRecord implements SemesterStore. fn runs under the store
// lock on a copy; the copy replaces the stored record only when fn succeeds.
func (s *MemoryStore) UpdateSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string, fn func(*model.SemesterRecord) error) (*model.SemesterRecord, error) {
	k := recordKey(studentID, semester, academicYear)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[k]
	if !ok {
		return nil, ErrRecordNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.records[k] = next.Clone()
	return next, nil
}

// Latest implements SnapshotStore.
func (s *MemoryStore) Latest(ctx context.Context, key model.SelectionKey) (*model.Snapshot, *model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, previous := lastTwo(s.snapshots[key])
	return current, previous, nil
}

// Upsert implements SnapshotStore. The decision and the write happen under
// one lock, so concurrent rebuilds of a key on the same day leave a single
// record behind with the last writer's content.
func (s *MemoryStore) Upsert(ctx context.Context, snap model.Snapshot, now time.Time) (snapshot.Action, model.Snapshot, error) {
	key := snap.Key()
	if err := key.Validate(); err != nil {
		return "", model.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.snapshots[key]
	current, previous := lastTwo(history)
	action, stored := snapshot.NewState(current, previous, now, s.loc).Apply(snap, now, s.newID)
	if action == snapshot.ActionUpdate {
		history[len(history)-1] = stored
	} else {
		history = append(history, stored)
	}
	s.snapshots[key] = history
	metrics.UpdateSnapshotLastUnix(now.Unix())
	return action, stored, nil
}

// History returns every snapshot of key, oldest first.
func (s *MemoryStore) History(ctx context.Context, key model.SelectionKey) []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Snapshot(nil), s.snapshots[key]...)
}

func lastTwo(history []model.Snapshot) (current, previous *model.Snapshot) {
	n := len(history)
	if n > 0 {
		c := history[n-1]
		current = &c
	}
	if n > 1 {
		p := history[n-2]
		previous = &p
	}
	return current, previous
}

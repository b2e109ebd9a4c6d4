// Package snapshot builds cohort ranking snapshots and decides how a new
// snapshot is persisted against the ones already stored.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/ranking"
)

// RecordSource yields every semester record of a cohort slice.
type RecordSource interface {
	FindSemesterRecords(ctx context.Context, key model.SelectionKey) ([]model.SemesterRecord, error)
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithClock overrides the time source used to date snapshots.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// Builder turns the records of a cohort slice into a Snapshot.
type Builder struct {
	source RecordSource
	now    func() time.Time
}

// NewBuilder creates a builder reading from source.
func NewBuilder(source RecordSource, opts ...Option) *Builder {
	b := &Builder{source: source, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes a snapshot for key. It returns (nil, nil) when no student
// of the slice has a semester average, or when a specialization slice has
// no unit or module statistics. Errors only come from the record source.
func (b *Builder) Build(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error) {
	records, err := b.source.FindSemesterRecords(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find semester records for %s: %w", key, err)
	}

	graded := make([]model.SemesterRecord, 0, len(records))
	entries := make([]model.UserRank, 0, len(records))
	averages := make([]float64, 0, len(records))
	for _, r := range records {
		avg, ok := r.Average.Get()
		if !ok {
			continue
		}
		graded = append(graded, r)
		averages = append(averages, avg)
		entries = append(entries, model.UserRank{
			StudentID:      r.StudentID,
			Group:          r.Group,
			Branch:         r.Branch,
			Specialization: r.Specialization,
			Average:        avg,
		})
	}

	summary, ok := ranking.Summarize(averages)
	if !ok {
		return nil, nil
	}

	now := b.now()
	snap := &model.Snapshot{
		Name:         key.Name,
		Scope:        key.Scope,
		Semester:     key.Semester,
		AcademicYear: key.AcademicYear,
		Date:         now,
		CreatedAt:    now,
		Summary:      summary,
		Groups:       ranking.Groups(entries, groupLabel(key)),
		Students:     ranking.Rank(entries),
	}

	if key.Scope == model.ScopeCurriculum {
		return snap, nil
	}

	units, modules := courseStats(graded)
	if len(units) == 0 || len(modules) == 0 {
		return nil, nil
	}
	snap.Units = units
	snap.Modules = modules
	return snap, nil
}

// groupLabel is the breakdown dimension of a slice: class groups inside a
// specialization. A curriculum has no further breakdown and yields a single
// group named after the curriculum.
func groupLabel(key model.SelectionKey) func(model.UserRank) string {
	if key.Scope == model.ScopeCurriculum {
		return func(model.UserRank) string { return key.Name }
	}
	return ranking.LabelFor(model.LevelGroup)
}

// collector gathers averages per course code in first-seen order.
type collector struct {
	index  map[string]int
	codes  []string
	names  []string
	values [][]float64
}

func newCollector() *collector {
	return &collector{index: make(map[string]int)}
}

func (c *collector) add(code, name string, avg model.Average) {
	v, ok := avg.Get()
	if !ok {
		return
	}
	i, seen := c.index[code]
	if !seen {
		i = len(c.codes)
		c.index[code] = i
		c.codes = append(c.codes, code)
		c.names = append(c.names, name)
		c.values = append(c.values, nil)
	}
	c.values[i] = append(c.values[i], v)
}

func (c *collector) stats() []model.CourseStat {
	out := make([]model.CourseStat, 0, len(c.codes))
	for i, code := range c.codes {
		s, ok := ranking.Summarize(c.values[i])
		if !ok {
			continue
		}
		out = append(out, model.CourseStat{Code: code, Name: c.names[i], Summary: s})
	}
	return out
}

func courseStats(records []model.SemesterRecord) (units, modules []model.CourseStat) {
	uc, mc := newCollector(), newCollector()
	for _, r := range records {
		for _, u := range r.Units {
			uc.add(u.Code, u.Name, u.Average)
			for _, m := range u.Modules {
				mc.add(m.Code, m.Name, m.Average)
			}
		}
	}
	return uc.stats(), mc.stats()
}

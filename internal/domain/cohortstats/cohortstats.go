// Package cohortstats derives a student's standing at each grouping level
// from the two most recent ranking snapshots of a cohort.
package cohortstats

import (
	"context"
	"fmt"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/ranking"
)

// DefaultLeaderboardSize caps the leaderboard attached to every level.
const DefaultLeaderboardSize = 10

// SnapshotReader loads the latest snapshot of a key and the one before it.
// Either may be nil.
type SnapshotReader interface {
	Latest(ctx context.Context, key model.SelectionKey) (current, previous *model.Snapshot, err error)
}

// Service answers per-level statistics queries.
type Service struct {
	snapshots       SnapshotReader
	leaderboardSize int
}

// NewService creates a Service. A non-positive leaderboardSize falls back
// to DefaultLeaderboardSize.
func NewService(snapshots SnapshotReader, leaderboardSize int) *Service {
	if leaderboardSize < 1 {
		leaderboardSize = DefaultLeaderboardSize
	}
	return &Service{snapshots: snapshots, leaderboardSize: leaderboardSize}
}

// GroupStats returns the standing of studentID at level within the cohort
// identified by key. label selects the branch or class group and is ignored
// for the broader levels. A nil result means the data is not available.
func (s *Service) GroupStats(ctx context.Context, key model.SelectionKey, level model.Level, label, studentID string) (*model.UserGroupStats, error) {
	current, previous, err := s.snapshots.Latest(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", key, err)
	}
	return Compute(current, previous, level, label, studentID, s.leaderboardSize), nil
}

// slice returns the ranked population of a level. Branch and group views
// are re-ranked from scratch so they always start at 1.
func slice(snap *model.Snapshot, level model.Level, label string) []model.UserRank {
	if snap == nil {
		return nil
	}
	switch level {
	case model.LevelBranch, model.LevelGroup:
		if label == "" {
			return nil
		}
		return ranking.Rank(ranking.Filter(snap.Students, ranking.LabelFor(level), label))
	default:
		return snap.Students
	}
}

// Compute derives the standing of studentID from a current and an optional
// previous snapshot. It returns nil when the current snapshot is missing or
// does not contain the student at that level. Deltas are zero when the
// student is absent from the previous snapshot.
func Compute(current, previous *model.Snapshot, level model.Level, label, studentID string, top int) *model.UserGroupStats {
	cur := slice(current, level, label)
	me, ok := ranking.Find(cur, studentID)
	if !ok {
		return nil
	}
	mean, best, _ := ranking.Mean(cur)

	prev := slice(previous, level, label)
	before, hadBefore := ranking.Find(prev, studentID)

	out := &model.UserGroupStats{
		Level:        level,
		Label:        label,
		Average:      model.Metric{Value: me.Average},
		GroupAverage: model.Metric{Value: mean},
		GroupMax:     model.Metric{Value: best},
		Rank:         model.RankMetric{Value: me.Rank},
		Total:        len(cur),
		Leaderboard:  leaderboard(cur, prev, studentID, top),
	}
	if hadBefore {
		prevMean, prevBest, _ := ranking.Mean(prev)
		out.Average.Delta = model.Round2(me.Average - before.Average)
		out.GroupAverage.Delta = model.Round2(mean - prevMean)
		out.GroupMax.Delta = model.Round2(best - prevBest)
		out.Rank.Delta = me.Rank - before.Rank
	}
	return out
}

func leaderboard(cur, prev []model.UserRank, studentID string, top int) []model.LeaderboardEntry {
	if top > len(cur) {
		top = len(cur)
	}
	out := make([]model.LeaderboardEntry, 0, top)
	for _, e := range cur[:top] {
		le := model.LeaderboardEntry{
			Rank:    e.Rank,
			Average: e.Average,
			Self:    e.StudentID == studentID,
		}
		if p, ok := ranking.Find(prev, e.StudentID); ok {
			le.AverageDelta = model.Round2(e.Average - p.Average)
			le.RankDelta = e.Rank - p.Rank
		}
		out = append(out, le)
	}
	return out
}

// Package ranking computes cohort statistics and positional ranks.
//
// Ranks are positional: after a stable sort by average descending, the
// entry at index i gets rank i+1. Equal averages never share a rank; the
// earlier entry in input order wins the tie.
package ranking

import (
	"sort"

	"github.com/okian/gradestats/internal/domain/model"
)

// Summarize computes mean, median, min, max and count of values.
// ok is false for an empty input.
func Summarize(values []float64) (model.Summary, bool) {
	n := len(values)
	if n == 0 {
		return model.Summary{}, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return model.Summary{
		Average: model.Round2(sum / float64(n)),
		Median:  model.Round2(median),
		Min:     sorted[0],
		Max:     sorted[n-1],
		Count:   n,
	}, true
}

// Rank returns a copy of entries sorted by average descending with
// positional ranks assigned. The input slice is left untouched.
func Rank(entries []model.UserRank) []model.UserRank {
	out := append([]model.UserRank(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Average > out[j].Average
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Filter keeps the entries whose label, as extracted by label, equals want.
// Input order is preserved so a later Rank keeps the original tie order.
func Filter(entries []model.UserRank, label func(model.UserRank) string, want string) []model.UserRank {
	var out []model.UserRank
	for _, e := range entries {
		if label(e) == want {
			out = append(out, e)
		}
	}
	return out
}

// LabelFor returns the label extractor for a grouping level.
func LabelFor(level model.Level) func(model.UserRank) string {
	switch level {
	case model.LevelBranch:
		return func(e model.UserRank) string { return e.Branch }
	case model.LevelGroup:
		return func(e model.UserRank) string { return e.Group }
	case model.LevelSpecialization:
		return func(e model.UserRank) string { return e.Specialization }
	default:
		return func(model.UserRank) string { return "" }
	}
}

// Groups aggregates entries per label and ranks the groups by average
// descending. Groups appear in first-seen order before sorting, so equal
// group averages keep that order.
func Groups(entries []model.UserRank, label func(model.UserRank) string) []model.GroupRank {
	index := make(map[string]int)
	var (
		groups []model.GroupRank
		sums   []float64
	)
	for _, e := range entries {
		l := label(e)
		i, ok := index[l]
		if !ok {
			i = len(groups)
			index[l] = i
			groups = append(groups, model.GroupRank{Label: l})
			sums = append(sums, 0)
		}
		groups[i].Size++
		sums[i] += e.Average
	}
	for i := range groups {
		groups[i].Average = model.Round2(sums[i] / float64(groups[i].Size))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Average > groups[j].Average
	})
	for i := range groups {
		groups[i].Rank = i + 1
	}
	return groups
}

// Find returns the entry of a student.
func Find(entries []model.UserRank, studentID string) (model.UserRank, bool) {
	for _, e := range entries {
		if e.StudentID == studentID {
			return e, true
		}
	}
	return model.UserRank{}, false
}

// Mean returns the rounded mean and max of the entries' averages.
func Mean(entries []model.UserRank) (mean, best float64, ok bool) {
	if len(entries) == 0 {
		return 0, 0, false
	}
	var sum float64
	best = entries[0].Average
	for _, e := range entries {
		sum += e.Average
		if e.Average > best {
			best = e.Average
		}
	}
	return model.Round2(sum / float64(len(entries))), best, true
}

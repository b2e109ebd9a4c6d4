// Package averaging derives weighted averages up the grade hierarchy:
// grade entry -> module -> teaching unit -> semester, plus ECTS attainment.
//
// Every function is total: insufficient data yields a Missing average or
// zero credits, never an error. Missing inputs are excluded from weighting.
package averaging

import (
	"github.com/okian/gradestats/internal/domain/model"
)

// Grading scale constants.
const (
	// Scale is the common scale every raw score is normalized to.
	Scale = 20.0
	// PassMark is the average a unit or semester needs to be validated.
	PassMark = 10.0
)

// weighted accumulates value*coefficient over present values only.
type weighted struct {
	sum    float64
	weight float64
}

func (w *weighted) add(v model.Average, coefficient float64) {
	x, ok := v.Get()
	if !ok || coefficient <= 0 {
		return
	}
	w.sum += x * coefficient
	w.weight += coefficient
}

func (w *weighted) result() model.Average {
	if w.weight <= 0 {
		return model.Missing()
	}
	return model.Value(model.Round2(w.sum / w.weight))
}

// Normalize brings a raw score onto the 20-point scale. Entries without a
// score, or with a non-positive maximum, are Missing.
func Normalize(e model.GradeEntry) model.Average {
	if e.Score == nil || e.MaxScore <= 0 {
		return model.Missing()
	}
	return model.Value(*e.Score / e.MaxScore * Scale)
}

// ModuleAverage is the coefficient-weighted mean of the normalized scores of
// the entries that have one.
func ModuleAverage(entries []model.GradeEntry) model.Average {
	var w weighted
	for _, e := range entries {
		w.add(Normalize(e), e.Coefficient)
	}
	return w.result()
}

// TeachingUnitAverage weights each module average by its coefficient,
// skipping modules without an average.
func TeachingUnitAverage(modules []model.Module) model.Average {
	var w weighted
	for _, m := range modules {
		w.add(m.Average, m.Coefficient)
	}
	return w.result()
}

// SemesterResult is the outcome of a semester aggregation.
type SemesterResult struct {
	Average model.Average
	// CreditsCounted sums the ECTS of the units that contributed.
	CreditsCounted float64
	// Remaining counts ungraded entries in units that did not contribute.
	Remaining int
}

// SemesterAverage weights each unit average by its coefficient.
func SemesterAverage(units []model.TeachingUnit) SemesterResult {
	var (
		w   weighted
		res SemesterResult
	)
	for _, u := range units {
		if u.Average.IsMissing() || u.Coefficient <= 0 {
			res.Remaining += ungraded(u)
			continue
		}
		w.add(u.Average, u.Coefficient)
		res.CreditsCounted += u.Credits
	}
	res.Average = w.result()
	return res
}

func ungraded(u model.TeachingUnit) int {
	n := 0
	for _, m := range u.Modules {
		for _, e := range m.Entries {
			if e.Score == nil {
				n++
			}
		}
	}
	return n
}

// CreditsObtained returns the ECTS a student earns for the semester.
//
// A semester average at or above the pass mark validates every unit,
// including failed ones. Below it, only units that pass on their own count.
// Without a semester average nothing is earned.
func CreditsObtained(units []model.TeachingUnit) float64 {
	avg, ok := SemesterAverage(units).Average.Get()
	if !ok {
		return 0
	}
	var total float64
	if avg >= PassMark {
		for _, u := range units {
			total += u.Credits
		}
		return total
	}
	for _, u := range units {
		if v, ok := u.Average.Get(); ok && v >= PassMark {
			total += u.Credits
		}
	}
	return total
}

// Recompute refreshes every derived field of the record bottom-up.
func Recompute(rec *model.SemesterRecord) SemesterResult {
	for u := range rec.Units {
		unit := &rec.Units[u]
		for m := range unit.Modules {
			unit.Modules[m].Average = ModuleAverage(unit.Modules[m].Entries)
		}
		unit.Average = TeachingUnitAverage(unit.Modules)
	}
	res := SemesterAverage(rec.Units)
	rec.Average = res.Average
	rec.Credits = model.Value(CreditsObtained(rec.Units))
	return res
}

package model

// GradeEntry is one scored evaluation (exam, project...) with its own weight and scale.
type GradeEntry struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Coefficient float64  `json:"coefficient"`
	Score       *float64 `json:"score"`
	MaxScore    float64  `json:"max_score"`
}

// Module is a gradable component of a teaching unit.
type Module struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	Coefficient float64      `json:"coefficient"`
	Entries     []GradeEntry `json:"entries"`
	Average     Average      `json:"average"`
}

// TeachingUnit (UE) is a credit-bearing group of modules within a semester.
type TeachingUnit struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Credits     float64  `json:"credits"`
	Coefficient float64  `json:"coefficient"`
	Modules     []Module `json:"modules"`
	Average     Average  `json:"average"`
}

// SemesterRecord holds one student's grades for one semester of one academic path.
type SemesterRecord struct {
	ID             string         `json:"id"`
	StudentID      string         `json:"student_id"`
	Curriculum     string         `json:"curriculum"`
	Specialization string         `json:"specialization"`
	Group          string         `json:"group"`
	Branch         string         `json:"branch,omitempty"`
	AcademicYear   string         `json:"academic_year"`
	Semester       int            `json:"semester"`
	Units          []TeachingUnit `json:"units"`
	Average        Average        `json:"average"`

	// Credits stays Missing until the record has been recomputed once.
	Credits Average `json:"credits"`
	Locked  bool    `json:"locked"`
}

// FindEntry returns a pointer to the grade entry with the given id.
func (r *SemesterRecord) FindEntry(entryID string) (*GradeEntry, bool) {
	for u := range r.Units {
		for m := range r.Units[u].Modules {
			entries := r.Units[u].Modules[m].Entries
			for e := range entries {
				if entries[e].ID == entryID {
					return &entries[e], true
				}
			}
		}
	}
	return nil, false
}

// SelectionKey returns the key of the cohort slice this record belongs to
// for the given scope.
func (r *SemesterRecord) SelectionKey(scope Scope) SelectionKey {
	name := r.Specialization
	if scope == ScopeCurriculum {
		name = r.Curriculum
	}
	return SelectionKey{Name: name, Scope: scope, Semester: r.Semester, AcademicYear: r.AcademicYear}
}

// Clone returns a deep copy of the record.
func (r *SemesterRecord) Clone() *SemesterRecord {
	out := *r
	out.Units = make([]TeachingUnit, len(r.Units))
	for u, unit := range r.Units {
		unit.Modules = make([]Module, len(r.Units[u].Modules))
		for m, mod := range r.Units[u].Modules {
			mod.Entries = make([]GradeEntry, len(r.Units[u].Modules[m].Entries))
			for e, entry := range r.Units[u].Modules[m].Entries {
				if entry.Score != nil {
					s := *entry.Score
					entry.Score = &s
				}
				mod.Entries[e] = entry
			}
			unit.Modules[m] = mod
		}
		out.Units[u] = unit
	}
	return &out
}

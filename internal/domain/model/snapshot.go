package model

import "time"

// Summary carries the aggregate statistics of a set of averages.
type Summary struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// GroupRank is the aggregate of one sub-group of a cohort.
type GroupRank struct {
	Label   string  `json:"label"`
	Average float64 `json:"average"`
	Size    int     `json:"size"`
	Rank    int     `json:"rank"`
}

// UserRank is one student's position in a cohort.
type UserRank struct {
	StudentID      string  `json:"student_id"`
	Group          string  `json:"group"`
	Branch         string  `json:"branch,omitempty"`
	Specialization string  `json:"specialization"`
	Average        float64 `json:"average"`
	Rank           int     `json:"rank"`
}

// CourseStat holds cohort statistics for one teaching unit or module code.
type CourseStat struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Summary
}

// Snapshot is a dated, point-in-time cohort statistics record.
type Snapshot struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Scope        Scope     `json:"scope"`
	Semester     int       `json:"semester"`
	AcademicYear string    `json:"academic_year"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`

	Summary
	Groups   []GroupRank  `json:"groups"`
	Students []UserRank   `json:"students"`
	Units    []CourseStat `json:"units,omitempty"`
	Modules  []CourseStat `json:"modules,omitempty"`
}

// Key returns the selection key of the snapshot.
func (s *Snapshot) Key() SelectionKey {
	return SelectionKey{Name: s.Name, Scope: s.Scope, Semester: s.Semester, AcademicYear: s.AcademicYear}
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

// Scope tells whether a selection name is a specialization or a curriculum.
type Scope string

// Known scopes.
const (
	ScopeSpecialization Scope = "specialization"
	ScopeCurriculum     Scope = "curriculum"
)

// ParseScope parses a scope name (case-insensitive).
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeSpecialization:
		return ScopeSpecialization, nil
	case ScopeCurriculum:
		return ScopeCurriculum, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// SelectionKey identifies a cohort slice for snapshotting.
type SelectionKey struct {
	Name         string `json:"name"`
	Scope        Scope  `json:"scope"`
	Semester     int    `json:"semester"`
	AcademicYear string `json:"academic_year"`
}

// Validate checks that every component of the key is set.
func (k SelectionKey) Validate() error {
	switch {
	case strings.TrimSpace(k.Name) == "":
		return errors.New("missing selection name")
	case k.Scope != ScopeSpecialization && k.Scope != ScopeCurriculum:
		return fmt.Errorf("unknown scope %q", k.Scope)
	case k.Semester < 1:
		return errors.New("semester must be positive")
	case strings.TrimSpace(k.AcademicYear) == "":
		return errors.New("missing academic year")
	}
	return nil
}

func (k SelectionKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%s", k.Scope, k.Name, k.Semester, k.AcademicYear)
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/okian/gradestats/internal/domain/model"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

type gradeRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	Semester     int      `json:"semester" validate:"required,min=1"`
	AcademicYear string   `json:"academic_year" validate:"required"`
	EntryID      string   `json:"entry_id" validate:"required"`
	Score        *float64 `json:"score" validate:"omitnil,min=0"`
}

type selectionRequest struct {
	Name         string `json:"name" validate:"required"`
	Scope        string `json:"scope" validate:"required,oneof=specialization curriculum"`
	Semester     int    `json:"semester" validate:"required,min=1"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

func (s selectionRequest) key() model.SelectionKey {
	return model.SelectionKey{
		Name:         s.Name,
		Scope:        model.Scope(s.Scope),
		Semester:     s.Semester,
		AcademicYear: s.AcademicYear,
	}
}

type semesterQuery struct {
	Semester     int    `validate:"required,min=1"`
	AcademicYear string `validate:"required"`
}

// decodeBody reads a JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// parseSemesterQuery reads ?semester=&year=.
func parseSemesterQuery(r *http.Request) (semesterQuery, error) {
	q := semesterQuery{AcademicYear: r.URL.Query().Get("year")}
	if raw := r.URL.Query().Get("semester"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: invalid semester %q", ErrBadRequest, raw)
		}
		q.Semester = n
	}
	if err := validate.Struct(q); err != nil {
		return q, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return q, nil
}

// parseSelectionQuery reads ?name=&scope=&semester=&year=.
func parseSelectionQuery(r *http.Request) (selectionRequest, error) {
	sq, err := parseSemesterQuery(r)
	if err != nil {
		return selectionRequest{}, err
	}
	req := selectionRequest{
		Name:         r.URL.Query().Get("name"),
		Scope:        r.URL.Query().Get("scope"),
		Semester:     sq.Semester,
		AcademicYear: sq.AcademicYear,
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return req, nil
}

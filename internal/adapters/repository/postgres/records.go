package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/model"
)

// RecordStore implements repository.SemesterStore. Each record is kept as a
// jsonb document next to the columns it is looked up by.
type RecordStore struct {
	conn *Connection
}

var _ repository.SemesterStore = (*RecordStore)(nil)

// NewRecordStore creates a RecordStore on conn.
func NewRecordStore(conn *Connection) *RecordStore {
	return &RecordStore{conn: conn}
}

// scopeColumn maps a scope to the column holding its selection name.
func scopeColumn(scope model.Scope) (string, error) {
	switch scope {
	case model.ScopeSpecialization:
		return "specialization", nil
	case model.ScopeCurriculum:
		return "curriculum", nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", repository.ErrInvalidKey, scope)
}

// FindSemesterRecords implements repository.SemesterStore.
func (s *RecordStore) FindSemesterRecords(ctx context.Context, key model.SelectionKey) ([]model.SemesterRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidKey, err)
	}
	col, err := scopeColumn(key.Scope)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, `
		SELECT record FROM semester_records
		WHERE `+col+` = $1 AND semester = $2 AND academic_year = $3
		ORDER BY seq`,
		key.Name, key.Semester, key.AcademicYear,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: find records %s: %w", key, err)
	}
	defer rows.Close()

	var out []model.SemesterRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// FindOneSemesterRecord implements repository.SemesterStore.
func (s *RecordStore) FindOneSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT record FROM semester_records
		WHERE student_id = $1 AND semester = $2 AND academic_year = $3`,
		studentID, semester, academicYear,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: find record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var raw []byte
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("postgres: scan record: %w", err)
	}
	return decodeRecord(raw)
}

// SaveSemesterRecord implements repository.SemesterStore. A record of the
// same student and semester is replaced and keeps its original position.
func (s *RecordStore) SaveSemesterRecord(ctx context.Context, rec *model.SemesterRecord) error {
	if rec == nil || rec.StudentID == "" || rec.Semester < 1 || rec.AcademicYear == "" {
		return repository.ErrInvalidRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres: encode record: %w", err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO semester_records
			(id, student_id, semester, academic_year, curriculum, specialization, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (student_id, semester, academic_year) DO UPDATE SET
			curriculum = EXCLUDED.curriculum,
			specialization = EXCLUDED.specialization,
			record = EXCLUDED.record,
			updated_at = NOW()`,
		rec.ID, rec.StudentID, rec.Semester, rec.AcademicYear, rec.Curriculum, rec.Specialization, raw,
	)
	if err != nil {
		return fmt.Errorf("postgres: save record %s: %w", rec.StudentID, err)
	}
	return nil
}

// UpdateSemesterRecord implements repository.SemesterStore. The row is
// locked with SELECT ... FOR UPDATE for the duration of fn.
func (s *RecordStore) UpdateSemesterRecord(ctx context.Context, studentID string, semester int, academicYear string, fn func(*model.SemesterRecord) error) (*model.SemesterRecord, error) {
	var out *model.SemesterRecord
	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `
			SELECT record FROM semester_records
			WHERE student_id = $1 AND semester = $2 AND academic_year = $3
			FOR UPDATE`,
			studentID, semester, academicYear,
		).Scan(&raw)
		if IsNoRows(err) {
			return repository.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock record %s: %w", studentID, err)
		}

		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		raw, err = json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("postgres: encode record: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE semester_records
			SET curriculum = $4, specialization = $5, record = $6, updated_at = NOW()
			WHERE student_id = $1 AND semester = $2 AND academic_year = $3`,
			studentID, semester, academicYear, rec.Curriculum, rec.Specialization, raw,
		); err != nil {
			return fmt.Errorf("postgres: update record %s: %w", studentID, err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRecord(raw []byte) (*model.SemesterRecord, error) {
	var rec model.SemesterRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("postgres: decode record: %w", err)
	}
	return &rec, nil
}

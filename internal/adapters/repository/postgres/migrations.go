package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS semester_records (
    seq BIGSERIAL,
    id VARCHAR(64) PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    semester INTEGER NOT NULL,
    academic_year VARCHAR(16) NOT NULL,
    curriculum VARCHAR(128) NOT NULL,
    specialization VARCHAR(128) NOT NULL,
    record JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_semester_records_student UNIQUE (student_id, semester, academic_year),
    CONSTRAINT valid_semester CHECK (semester >= 1)
);

CREATE INDEX IF NOT EXISTS idx_semester_records_specialization
    ON semester_records(specialization, semester, academic_year, seq);
CREATE INDEX IF NOT EXISTS idx_semester_records_curriculum
    ON semester_records(curriculum, semester, academic_year, seq);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
    id VARCHAR(64) PRIMARY KEY,
    scope VARCHAR(20) NOT NULL,
    name VARCHAR(128) NOT NULL,
    semester INTEGER NOT NULL,
    academic_year VARCHAR(16) NOT NULL,
    snapshot_date TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    payload JSONB NOT NULL,

    CONSTRAINT valid_scope CHECK (scope IN ('specialization', 'curriculum'))
);

CREATE INDEX IF NOT EXISTS idx_ranking_snapshots_key
    ON ranking_snapshots(scope, name, semester, academic_year, snapshot_date DESC);
`

// Migrate creates the tables and indexes used by the stores.
func Migrate(ctx context.Context, conn *Connection) error {
	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}

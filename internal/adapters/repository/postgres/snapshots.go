package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/snapshot"
	"github.com/okian/gradestats/pkg/metrics"
)

// SnapshotStore implements repository.SnapshotStore.
type SnapshotStore struct {
	conn  *Connection
	loc   *time.Location
	newID func() string
}

var _ repository.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotOption configures a SnapshotStore.
type SnapshotOption func(*SnapshotStore)

// WithLocation sets the time zone used to compare snapshot days.
func WithLocation(loc *time.Location) SnapshotOption {
	return func(s *SnapshotStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator overrides how new snapshot ids are generated.
func WithIDGenerator(newID func() string) SnapshotOption {
	return func(s *SnapshotStore) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewSnapshotStore creates a SnapshotStore on conn.
func NewSnapshotStore(conn *Connection, opts ...SnapshotOption) *SnapshotStore {
	s := &SnapshotStore{conn: conn, loc: time.UTC, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const latestTwoSQL = `
	SELECT id, snapshot_date, created_at, payload FROM ranking_snapshots
	WHERE scope = $1 AND name = $2 AND semester = $3 AND academic_year = $4
	ORDER BY snapshot_date DESC
	LIMIT 2`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Latest implements repository.SnapshotStore.
func (s *SnapshotStore) Latest(ctx context.Context, key model.SelectionKey) (*model.Snapshot, *model.Snapshot, error) {
	if s.conn.IsClosed() {
		return nil, nil, ErrConnectionClosed
	}
	return latestTwo(ctx, s.conn.pool, key)
}

// Upsert implements repository.SnapshotStore. Writers of the same key are
// serialized with a transaction-scoped advisory lock, so the day check and
// the write see a consistent history.
func (s *SnapshotStore) Upsert(ctx context.Context, snap model.Snapshot, now time.Time) (snapshot.Action, model.Snapshot, error) {
	key := snap.Key()
	if err := key.Validate(); err != nil {
		return "", model.Snapshot{}, fmt.Errorf("%w: %v", repository.ErrInvalidKey, err)
	}

	var (
		action snapshot.Action
		stored model.Snapshot
	)
	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
			return fmt.Errorf("postgres: lock %s: %w", key, err)
		}
		current, previous, err := latestTwo(ctx, tx, key)
		if err != nil {
			return err
		}
		action, stored = snapshot.NewState(current, previous, now, s.loc).Apply(snap, now, s.newID)

		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("postgres: encode snapshot: %w", err)
		}
		if action == snapshot.ActionUpdate {
			_, err = tx.Exec(ctx, `
				UPDATE ranking_snapshots SET snapshot_date = $2, payload = $3
				WHERE id = $1`,
				stored.ID, stored.Date, payload,
			)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO ranking_snapshots
					(id, scope, name, semester, academic_year, snapshot_date, created_at, payload)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				stored.ID, string(key.Scope), key.Name, key.Semester, key.AcademicYear,
				stored.Date, stored.CreatedAt, payload,
			)
		}
		if err != nil {
			return fmt.Errorf("postgres: %s snapshot %s: %w", action, key, err)
		}
		return nil
	})
	if err != nil {
		return "", model.Snapshot{}, err
	}
	metrics.UpdateSnapshotLastUnix(now.Unix())
	return action, stored, nil
}

func latestTwo(ctx context.Context, q querier, key model.SelectionKey) (current, previous *model.Snapshot, err error) {
	rows, err := q.Query(ctx, latestTwoSQL, string(key.Scope), key.Name, key.Semester, key.AcademicYear)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: latest snapshots %s: %w", key, err)
	}
	defer rows.Close()

	var found []*model.Snapshot
	for rows.Next() {
		var (
			id        string
			date      time.Time
			createdAt time.Time
			payload   []byte
		)
		if err := rows.Scan(&id, &date, &createdAt, &payload); err != nil {
			return nil, nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snap, err := decodeSnapshot(id, date, createdAt, payload)
		if err != nil {
			return nil, nil, err
		}
		found = append(found, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(found) > 0 {
		current = found[0]
	}
	if len(found) > 1 {
		previous = found[1]
	}
	return current, previous, nil
}

// decodeSnapshot rebuilds a snapshot from its payload. The row columns are
// authoritative for identity and dates.
func decodeSnapshot(id string, date, createdAt time.Time, payload []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("postgres: decode snapshot %s: %w", id, err)
	}
	snap.ID = id
	snap.Date = date
	snap.CreatedAt = createdAt
	return &snap, nil
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/apprentix/service-core/internal/event/entity"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrVersionConflict = errors.New("event version conflict")
)

// EventRepo is the repository for calendar events backed by PostgreSQL.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// EnsureTable creates the events table if not exists (idempotent).
func (r *EventRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
  id varchar(32) PRIMARY KEY,
  title TEXT NOT NULL,
  starts_at TIMESTAMPTZ NOT NULL,
  ends_at TIMESTAMPTZ NOT NULL,
  audience TEXT NOT NULL DEFAULT '',
  detail JSONB NOT NULL DEFAULT '{}'::jsonb,
  version BIGINT NOT NULL DEFAULT 1,
  created_by varchar(32) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events (starts_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// List returns events ordered by start time with pagination.
func (r *EventRepo) List(ctx context.Context, limit, offset int) ([]*entity.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT id, title, starts_at, ends_at, audience, detail, version, created_by, created_at, updated_at
	           FROM events ORDER BY starts_at LIMIT $1 OFFSET $2`
	rows := []*entity.Event{}
	if err := r.db.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByID returns one event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	const q = `SELECT id, title, starts_at, ends_at, audience, detail, version, created_by, created_at, updated_at
	           FROM events WHERE id=$1`
	var row entity.Event
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Create inserts a new event.
func (r *EventRepo) Create(ctx context.Context, e *entity.Event) error {
	detail := json.RawMessage("{}")
	if len(e.Detail) > 0 {
		detail = e.Detail
	}
	const q = `INSERT INTO events (id, title, starts_at, ends_at, audience, detail, version, created_by)
	           VALUES ($1, $2, $3, $4, $5, $6, 1, $7)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.Title, e.StartsAt, e.EndsAt, e.Audience, detail, e.CreatedBy)
	return err
}

// Update applies changes using optimistic locking on version. Zero rows
// with an existing id means a concurrent writer won.
func (r *EventRepo) Update(ctx context.Context, e *entity.Event, expectedVersion int64) error {
	const q = `UPDATE events SET title=$2, starts_at=$3, ends_at=$4, audience=$5,
	           detail=COALESCE($6, detail), version=version+1, updated_at=NOW()
	           WHERE id=$1 AND version=$7`
	var detail any
	if len(e.Detail) > 0 {
		detail = json.RawMessage(e.Detail)
	}
	res, err := r.db.ExecContext(ctx, q, e.ID, e.Title, e.StartsAt, e.EndsAt, e.Audience, detail, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, gerr := r.GetByID(ctx, e.ID); gerr != nil {
			return gerr
		}
		return ErrVersionConflict
	}
	return nil
}

// Delete removes an event by id.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

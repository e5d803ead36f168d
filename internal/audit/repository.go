package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is a persisted audit row.
type Record struct {
	ID       uuid.UUID `json:"id"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"at"`
}

// Repository persists audit events to the append-only audit_events table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit event.
func (r *Repository) Insert(ctx context.Context, ev Event) error {
	const q = `INSERT INTO audit_events (id, actor, action, entity_id, at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, ev.Actor, ev.Action, ev.EntityID, ev.At)
	return err
}

// ListRecent returns the most recent audit events, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, actor, action, entity_id, at
		FROM audit_events ORDER BY at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Actor, &rec.Action, &rec.EntityID, &rec.At); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

package core

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthEventKind labels an authentication lifecycle event.
type AuthEventKind string

const (
	EventLoginSuccess AuthEventKind = "login_success"
	EventLoginFailure AuthEventKind = "login_failure"
	EventLogout       AuthEventKind = "logout"
)

// AuthEvent is one audit record. Failure events never record which half of the
// credential pair was wrong, only that the attempt failed.
type AuthEvent struct {
	ID         int64         `json:"id,omitempty"`
	Kind       AuthEventKind `json:"kind"`
	Username   string        `json:"username"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// PublishAuthEvent enqueues an event for the audit worker. Best-effort: a
// queue fault is logged and swallowed so auditing can never fail a login.
func PublishAuthEvent(ctx context.Context, queue RedisClient, ev AuthEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("audit: marshal event: %v", err)
		return
	}
	if err := queue.Enqueue(ctx, PendingQueueKey, string(data)); err != nil {
		log.Printf("audit: enqueue event: %v", err)
	}
}

// AuthEventRepository defines persistence for the audit trail.
type AuthEventRepository interface {
	Insert(ctx context.Context, ev AuthEvent) (int64, error)
	List(ctx context.Context, page, perPage int) ([]AuthEvent, int, error)
}

// PgAuthEventRepository implements AuthEventRepository using pgxpool.
type PgAuthEventRepository struct {
	db *pgxpool.Pool
}

func NewPgAuthEventRepository(db *pgxpool.Pool) *PgAuthEventRepository {
	return &PgAuthEventRepository{db: db}
}

func (r *PgAuthEventRepository) Insert(ctx context.Context, ev AuthEvent) (int64, error) {
	const q = `INSERT INTO auth_events (kind, username, remote_addr, occurred_at) VALUES ($1,$2,$3,$4) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, ev.Kind, ev.Username, ev.RemoteAddr, ev.OccurredAt).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// List returns the newest events first.
func (r *PgAuthEventRepository) List(ctx context.Context, page, perPage int) ([]AuthEvent, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	const countQ = `SELECT COUNT(*) FROM auth_events`
	var total int
	if err := r.db.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `
SELECT id, kind, username, remote_addr, occurred_at
FROM auth_events
ORDER BY occurred_at DESC, id DESC
LIMIT $1 OFFSET $2
`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]AuthEvent, 0, perPage)
	for rows.Next() {
		var ev AuthEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Username, &ev.RemoteAddr, &ev.OccurredAt); err != nil {
			return nil, 0, err
		}
		items = append(items, ev)
	}
	return items, total, rows.Err()
}

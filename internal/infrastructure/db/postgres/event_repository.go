package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plan2bill/access-service/internal/core/domain"
)

// EventRepository appends to the role-request audit trail.
type EventRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewEventRepository(pool *pgxpool.Pool, timeout time.Duration) *EventRepository {
	return &EventRepository{pool: pool, timeout: timeout}
}

func (r *EventRepository) InsertEvent(ctx context.Context, e *domain.RoleRequestEvent) error {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_request_events (request_id, user_id, actor_id, type, from_status, to_status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.RequestID, e.UserID, e.ActorID, string(e.Type), string(e.FromStatus), string(e.ToStatus), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert role request event: %w", err)
	}
	return nil
}

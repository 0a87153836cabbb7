package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const constraintOnePending = "role_requests_one_pending_per_user"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS role_requests (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		requester_role TEXT NOT NULL,
		requested_role TEXT NOT NULL,
		status         TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		reviewed_by    TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	// At most one pending request per user, enforced by the database.
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintOnePending + `
		ON role_requests (user_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS role_requests_user_created_idx
		ON role_requests (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS role_request_events (
		id          BIGSERIAL PRIMARY KEY,
		request_id  TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		actor_id    TEXT NOT NULL,
		type        TEXT NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status   TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS role_request_events_request_idx
		ON role_request_events (request_id, occurred_at)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}

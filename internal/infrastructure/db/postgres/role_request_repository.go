package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
)

const requestColumns = `id, user_id, requester_role, requested_role, status, reason, reviewed_by, created_at, updated_at`

type RoleRequestRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewRoleRequestRepository(pool *pgxpool.Pool, timeout time.Duration) *RoleRequestRepository {
	return &RoleRequestRepository{pool: pool, timeout: timeout}
}

// Insert relies on the partial unique index to reject a second pending
// request for the same user, including concurrent inserts.
func (r *RoleRequestRepository) Insert(ctx context.Context, req *domain.RoleChangeRequest) (*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO role_requests (id, user_id, requester_role, requested_role, status, reason, reviewed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '', $7, $8)
		RETURNING `+requestColumns,
		uuid.NewString(), req.UserID, req.CurrentRole, req.RequestedRole, string(req.Status), req.Reason, req.CreatedAt, req.UpdatedAt)

	created, err := scanRequest(row)
	if err != nil {
		if name, ok := uniqueConstraint(err); ok && name == constraintOnePending {
			return nil, domain.ErrDuplicatePending
		}
		return nil, fmt.Errorf("insert role request: %w", err)
	}
	return created, nil
}

func (r *RoleRequestRepository) FindPendingByUser(ctx context.Context, userID string) ([]*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM role_requests
		WHERE user_id = $1 AND status = 'pending'
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("find pending role requests: %w", err)
	}
	return collectRequests(rows)
}

// Resolve updates the request and, on approval, the requester's role inside
// one transaction. The status guard makes a second resolve a no-op that
// reports ErrAlreadyResolved.
func (r *RoleRequestRepository) Resolve(ctx context.Context, in ports.ResolveRoleRequestInput) (*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	var resolved *domain.RoleChangeRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE role_requests
			SET status = $2, reviewed_by = $3, updated_at = $4
			WHERE id = $1 AND status = 'pending'
			RETURNING `+requestColumns,
			in.ID, string(in.Status), in.ReviewedBy, in.At)

		req, err := scanRequest(row)
		if errors.Is(err, pgx.ErrNoRows) {
			var current string
			err := tx.QueryRow(ctx, `SELECT status FROM role_requests WHERE id = $1`, in.ID).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRoleRequestNotFound
			}
			if err != nil {
				return err
			}
			return unresolvable(in.ID, domain.RoleRequestStatus(current))
		}
		if err != nil {
			return err
		}

		if in.Status == domain.RoleRequestApproved {
			tag, err := tx.Exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
				req.UserID, req.RequestedRole, in.At)
			if err != nil {
				return fmt.Errorf("update requester role: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrUserNotFound
			}
		}

		resolved = req
		return nil
	})
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindConflict:
			return nil, err
		}
		return nil, fmt.Errorf("resolve role request: %w", err)
	}
	return resolved, nil
}

func (r *RoleRequestRepository) ListByUser(ctx context.Context, userID string) ([]*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM role_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list role requests by user: %w", err)
	}
	return collectRequests(rows)
}

func (r *RoleRequestRepository) ListAll(ctx context.Context) ([]*domain.RoleChangeRequestView, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT rr.id, rr.user_id, rr.requester_role, rr.requested_role, rr.status, rr.reason,
		       rr.reviewed_by, rr.created_at, rr.updated_at,
		       COALESCE(u.email, ''), COALESCE(u.name, ''), COALESCE(u.role, '')
		FROM role_requests rr
		LEFT JOIN users u ON u.id = rr.user_id
		ORDER BY rr.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list role requests: %w", err)
	}

	views, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.RoleChangeRequestView, error) {
		var v domain.RoleChangeRequestView
		var status string
		if err := row.Scan(&v.ID, &v.UserID, &v.CurrentRole, &v.RequestedRole, &status, &v.Reason,
			&v.ReviewedBy, &v.CreatedAt, &v.UpdatedAt,
			&v.RequesterEmail, &v.RequesterName, &v.RequesterRole); err != nil {
			return nil, err
		}
		v.Status = domain.RoleRequestStatus(status)
		return &v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan role requests: %w", err)
	}
	return views, nil
}

func (r *RoleRequestRepository) Delete(ctx context.Context, id string) (*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `DELETE FROM role_requests WHERE id = $1 RETURNING `+requestColumns, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoleRequestNotFound
		}
		return nil, fmt.Errorf("delete role request: %w", err)
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]*domain.RoleChangeRequest, error) {
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.RoleChangeRequest, error) {
		return scanRequest(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan role requests: %w", err)
	}
	return items, nil
}

func scanRequest(row pgx.Row) (*domain.RoleChangeRequest, error) {
	var req domain.RoleChangeRequest
	var status string
	if err := row.Scan(&req.ID, &req.UserID, &req.CurrentRole, &req.RequestedRole, &status, &req.Reason,
		&req.ReviewedBy, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.Status = domain.RoleRequestStatus(status)
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return &req, nil
}

// unresolvable explains why a request that exists did not match the pending
// guard.
func unresolvable(id string, current domain.RoleRequestStatus) error {
	if current.IsTerminal() {
		return domain.ErrAlreadyResolved
	}
	return fmt.Errorf("role request %s has unexpected status %q", id, current)
}

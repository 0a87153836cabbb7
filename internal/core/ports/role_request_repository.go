package ports

import (
	"context"
	"time"

	"github.com/plan2bill/access-service/internal/core/domain"
)

// ResolveRoleRequestInput carries an admin decision to the store.
type ResolveRoleRequestInput struct {
	ID         string
	Status     domain.RoleRequestStatus
	ReviewedBy string
	At         time.Time
}

// RoleRequestRepository defines persistence for role-change requests.
type RoleRequestRepository interface {
	// Insert stores a new pending request. Implementations return
	// domain.ErrDuplicatePending when the user already has one pending.
	Insert(ctx context.Context, req *domain.RoleChangeRequest) (*domain.RoleChangeRequest, error)
	FindPendingByUser(ctx context.Context, userID string) ([]*domain.RoleChangeRequest, error)

	// Resolve moves a pending request to in.Status. On approval the
	// requester's profile role is set to the requested role in the same unit
	// of work. Returns domain.ErrRoleRequestNotFound or
	// domain.ErrAlreadyResolved when no pending row matches.
	Resolve(ctx context.Context, in ResolveRoleRequestInput) (*domain.RoleChangeRequest, error)

	// ListByUser and ListAll return requests newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.RoleChangeRequest, error)
	ListAll(ctx context.Context) ([]*domain.RoleChangeRequestView, error)

	// Delete removes a request and returns it as it was before removal.
	Delete(ctx context.Context, id string) (*domain.RoleChangeRequest, error)
}

// RoleRequestEventRepository persists the role-request audit trail.
type RoleRequestEventRepository interface {
	InsertEvent(ctx context.Context, event *domain.RoleRequestEvent) error
}

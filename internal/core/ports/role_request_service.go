package ports

import (
	"context"

	"github.com/plan2bill/access-service/internal/core/domain"
)

// CreateRoleRequestInput is the DTO passed from the transport layer to
// RoleRequestService.Create.
type CreateRoleRequestInput struct {
	RequestedRole string
	Reason        string
}

// RoleRequestService defines the role-change request lifecycle.
type RoleRequestService interface {
	Create(ctx context.Context, actor domain.Identity, in CreateRoleRequestInput) (*domain.RoleChangeRequest, error)
	Resolve(ctx context.Context, actor domain.Identity, id, decision string) (*domain.RoleChangeRequest, error)
	ListMine(ctx context.Context, actor domain.Identity) ([]*domain.RoleChangeRequest, error)
	ListAll(ctx context.Context, actor domain.Identity) ([]*domain.RoleChangeRequestView, error)
	Delete(ctx context.Context, actor domain.Identity, id string) error
}

// RoleRequestEventPublisher hands audit events to an asynchronous writer.
// Publish must not block the caller.
type RoleRequestEventPublisher interface {
	Publish(event domain.RoleRequestEvent)
}

package ports

import (
	"context"

	"github.com/plan2bill/access-service/internal/core/domain"
)

// UserRepository defines persistence for credentials and role-bearing profiles.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)
}

// ProfileReader is the read side the auth middleware uses to load the live
// role on every request.
type ProfileReader interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

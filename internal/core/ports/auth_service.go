package ports

import (
	"context"

	"github.com/plan2bill/access-service/internal/core/domain"
)

// RegisterInput carries signup data from the transport layer.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Profile(ctx context.Context, id string) (*domain.User, error)
	// ChangeRole is the direct admin path for role mutation.
	ChangeRole(ctx context.Context, actor domain.Identity, userID, role string) (*domain.User, error)
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/plan2bill/access-service/internal/api/middleware"
	"github.com/plan2bill/access-service/internal/core/domain"
)

// ctxIdentity returns the caller injected by the Auth middleware. A missing
// identity means the route was registered without Auth and is rejected as
// unauthenticated.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.Identity{}, domain.ErrMissingToken
	}
	return id, nil
}

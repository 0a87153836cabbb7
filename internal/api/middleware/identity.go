package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/plan2bill/access-service/internal/core/domain"
)

const identityKey = "identity"

// SetIdentity stores the authenticated caller on the echo context.
func SetIdentity(c echo.Context, id domain.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller injected by Auth. ok is false when the
// request did not pass through Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(identityKey).(domain.Identity)
	if !ok || id.ID == "" {
		return domain.Identity{}, false
	}
	return id, true
}

package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/metrics"
)

// RBAC enforces a route's explicit allow-list against the identity set by
// Auth. There is no role hierarchy; every permitted role must be listed.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
				return domain.ErrMissingToken
			}
			if err := domain.CheckRole(id.Role, allowedRoles...); err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
				return err
			}
			return next(c)
		}
	}
}

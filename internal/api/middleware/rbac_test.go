package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/plan2bill/access-service/internal/core/domain"
)

func newRBACContext(id *domain.Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != nil {
		SetIdentity(c, *id)
	}
	return c, rec
}

func TestRBAC_Allows(t *testing.T) {
	c, rec := newRBACContext(&domain.Identity{ID: "u-1", Role: domain.RoleAdmin})

	called := false
	handler := RBAC(domain.RoleAdmin, domain.RoleProjectManager)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRBAC_Forbids(t *testing.T) {
	c, _ := newRBACContext(&domain.Identity{ID: "u-1", Role: domain.RoleTeamMember})

	handler := RBAC(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	err := handler(c)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var denied *domain.PermissionDeniedError
	if !errors.As(err, &denied) || denied.Actual != domain.RoleTeamMember {
		t.Fatalf("expected permission details, got %v", err)
	}
}

func TestRBAC_NoHierarchy(t *testing.T) {
	c, _ := newRBACContext(&domain.Identity{ID: "u-1", Role: domain.RoleAdmin})

	handler := RBAC(domain.RoleProjectManager)(func(c echo.Context) error {
		t.Fatalf("admin must not pass a project_manager-only route")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRBAC_WithoutIdentity(t *testing.T) {
	c, _ := newRBACContext(nil)

	handler := RBAC(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

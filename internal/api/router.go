package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/plan2bill/access-service/internal/api/handler"
	"github.com/plan2bill/access-service/internal/api/middleware"
	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
	"github.com/plan2bill/access-service/internal/infrastructure/http/handlers"
)

// RateLimits sets per-minute budgets. Zero disables a scope.
type RateLimits struct {
	LoginPerMinute        int
	RoleRequestsPerMinute int
}

// Dependencies is everything the HTTP layer needs, built once in main.
type Dependencies struct {
	Auth         ports.AuthService
	RoleRequests ports.RoleRequestService
	Tokens       middleware.TokenVerifier
	Profiles     ports.ProfileReader

	// SessionTTL is reported to clients on login.
	SessionTTL time.Duration

	// Limiter may be nil, which disables rate limiting.
	Limiter    middleware.Limiter
	RateLimits RateLimits

	Readiness map[string]handlers.PingFunc

	// Registerer receives the HTTP request metrics. Defaults to the
	// Prometheus default registerer.
	Registerer prometheus.Registerer

	ExposeErrorDetail bool
	Log               zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log, deps.ExposeErrorDetail)
	e.Validator = handler.NewValidator()

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "plan2bill",
		Subsystem:  "http",
		Registerer: registerer,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.SessionTTL)
	roleRequestHandler := handler.NewRoleRequestHandler(deps.RoleRequests)
	authenticated := middleware.Auth(deps.Tokens, deps.Profiles, deps.Log)

	loginLimit := middleware.RateLimit(deps.Limiter, middleware.RateLimitConfig{
		Scope:  "login",
		Limit:  deps.RateLimits.LoginPerMinute,
		Window: time.Minute,
		Key:    middleware.ByIP,
	}, deps.Log)
	// register shares the login budget under its own scope
	registerLimit := middleware.RateLimit(deps.Limiter, middleware.RateLimitConfig{
		Scope:  "register",
		Limit:  deps.RateLimits.LoginPerMinute,
		Window: time.Minute,
		Key:    middleware.ByIP,
	}, deps.Log)
	roleRequestLimit := middleware.RateLimit(deps.Limiter, middleware.RateLimitConfig{
		Scope:  "role_request_create",
		Limit:  deps.RateLimits.RoleRequestsPerMinute,
		Window: time.Minute,
		Key:    middleware.ByIdentity,
	}, deps.Log)

	everyone := []string{domain.RoleAdmin, domain.RoleProjectManager, domain.RoleTeamMember}
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register, registerLimit)
	e.POST("/auth/login", authHandler.Login, loginLimit)
	e.GET("/auth/me", authHandler.Me, authenticated, middleware.RBAC(everyone...))

	// --- User administration ---
	e.PUT("/users/:id/role", authHandler.ChangeRole, authenticated, adminOnly)

	// --- Role requests ---
	rr := e.Group("/role-requests", authenticated)
	rr.POST("", roleRequestHandler.Create, middleware.RBAC(everyone...), roleRequestLimit)
	rr.GET("", roleRequestHandler.ListAll, adminOnly)
	rr.GET("/my", roleRequestHandler.ListMine, middleware.RBAC(everyone...))
	rr.PUT("/:id", roleRequestHandler.Resolve, adminOnly)
	rr.DELETE("/:id", roleRequestHandler.Delete, adminOnly)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler("access-service")
	readinessHandler := handlers.NewReadinessHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

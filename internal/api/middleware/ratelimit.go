package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/plan2bill/access-service/internal/metrics"
)

// Limiter counts hits for key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c echo.Context) string

// ByIP keys requests on the client address.
func ByIP(c echo.Context) string {
	return c.RealIP()
}

// ByIdentity keys requests on the authenticated user, falling back to the
// client address on routes without Auth.
func ByIdentity(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.ID
	}
	return c.RealIP()
}

// RateLimitConfig describes one limited scope.
type RateLimitConfig struct {
	Scope  string
	Limit  int
	Window time.Duration
	Key    KeyFunc
}

// RateLimit refuses requests over cfg.Limit per cfg.Window with 429.
// Limiter failures let the request through.
func RateLimit(limiter Limiter, cfg RateLimitConfig, log zerolog.Logger) echo.MiddlewareFunc {
	if cfg.Key == nil {
		cfg.Key = ByIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil || cfg.Limit <= 0 {
				return next(c)
			}

			key := cfg.Scope + ":" + cfg.Key(c)
			allowed, err := limiter.Allow(c.Request().Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				log.Warn().Err(err).Str("scope", cfg.Scope).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(cfg.Scope).Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
			}
			return next(c)
		}
	}
}

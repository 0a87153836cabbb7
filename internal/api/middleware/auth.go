package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/plan2bill/access-service/internal/auth"
	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
	"github.com/plan2bill/access-service/internal/metrics"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth validates the bearer token, then loads the live profile so that the
// role used for authorization is the stored one, not the one frozen in the
// token at issuance.
func Auth(verifier TokenVerifier, profiles ports.ProfileReader, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
				return err
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, domain.ErrExpiredToken) {
					reason = "expired_token"
				}
				metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
				return err
			}

			user, err := profiles.FindByID(c.Request().Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					metrics.AuthFailuresTotal.WithLabelValues("unknown_user").Inc()
					return fmt.Errorf("%w: user no longer exists", domain.ErrInvalidToken)
				}
				log.Error().Err(err).Str("user_id", claims.UserID).Msg("profile lookup failed")
				return fmt.Errorf("load profile: %w", err)
			}

			SetIdentity(c, domain.IdentityOf(user))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", domain.ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/plan2bill/access-service/internal/core/domain"
)

// ErrorResponse is the canonical error envelope for all API errors.
type ErrorResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Kind    domain.ErrorKind `json:"kind"`
	Detail  string           `json:"detail,omitempty"`
}

// kindRateLimited is only produced by the rate limiter and has no domain error.
const kindRateLimited domain.ErrorKind = "rate_limited"

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes and user-safe messages.
//   - Logs upstream failures internally with the request method and path.
//   - Adds the full error chain as detail when exposeDetail is set, which
//     must be false in production.
func NewHTTPErrorHandler(log zerolog.Logger, exposeDetail bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, kind, msg := resolveError(err)
		if kind == domain.KindUpstream {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("unhandled error")
		}

		resp := ErrorResponse{Success: false, Message: msg, Kind: kind}
		if exposeDetail {
			resp.Detail = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error) (int, domain.ErrorKind, string) {
	// Echo's own errors (bind failures, 404 from router, rate limiting, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, kindForStatus(he.Code), fmt.Sprintf("%v", he.Message)
	}

	var denied *domain.PermissionDeniedError
	if errors.As(err, &denied) {
		return http.StatusForbidden, domain.KindForbidden, "Access denied. Insufficient permissions."
	}

	switch {
	case errors.Is(err, domain.ErrMissingToken):
		return http.StatusUnauthorized, domain.KindUnauthenticated, "Access denied. No token provided."
	case errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized, domain.KindUnauthenticated, "Token has expired."
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, domain.KindUnauthenticated, "Invalid token."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.KindUnauthenticated, "Invalid email or password."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.KindForbidden, "Access denied. Insufficient permissions."

	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, domain.KindValidation, "Invalid role request. You can only request project manager role."
	case errors.Is(err, domain.ErrInvalidDecision):
		return http.StatusBadRequest, domain.KindValidation, "Invalid status. Must be approved or rejected."
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, domain.KindValidation, err.Error()

	// Lifecycle conflicts on role requests are reported as 400.
	case errors.Is(err, domain.ErrDuplicatePending):
		return http.StatusBadRequest, domain.KindConflict, "You already have a pending role request."
	case errors.Is(err, domain.ErrAlreadyHasRole):
		return http.StatusBadRequest, domain.KindConflict, "You already have this role."
	case errors.Is(err, domain.ErrAlreadyResolved):
		return http.StatusBadRequest, domain.KindConflict, "This role request has already been resolved."
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, domain.KindConflict, "User already exists."

	case errors.Is(err, domain.ErrRoleRequestNotFound):
		return http.StatusNotFound, domain.KindNotFound, "Role request not found."
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, domain.KindNotFound, "User not found."
	}

	return http.StatusInternalServerError, domain.KindUpstream, "Internal server error."
}

func kindForStatus(code int) domain.ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return domain.KindUnauthenticated
	case code == http.StatusForbidden:
		return domain.KindForbidden
	case code == http.StatusNotFound:
		return domain.KindNotFound
	case code == http.StatusConflict:
		return domain.KindConflict
	case code == http.StatusTooManyRequests:
		return kindRateLimited
	case code >= 500:
		return domain.KindUpstream
	default:
		return domain.KindValidation
	}
}

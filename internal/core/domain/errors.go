package domain

import "errors"

// ErrorKind groups domain errors into the categories the HTTP boundary maps
// to status codes.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindValidation      ErrorKind = "validation_error"
	KindConflict        ErrorKind = "conflict"
	KindNotFound        ErrorKind = "not_found"
	KindUpstream        ErrorKind = "upstream_failure"
)

var (
	ErrMissingToken       = errors.New("missing authorization token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrForbidden = errors.New("access forbidden")

	ErrInvalidRole     = errors.New("invalid role request: only project_manager can be requested")
	ErrInvalidDecision = errors.New("invalid decision: must be approved or rejected")
	ErrInvalidInput    = errors.New("invalid input")

	ErrDuplicatePending = errors.New("pending role request already exists")
	ErrAlreadyHasRole   = errors.New("user already has the requested role")
	ErrAlreadyResolved  = errors.New("role request already resolved")
	ErrUserExists       = errors.New("user already exists")

	ErrRoleRequestNotFound = errors.New("role request not found")
	ErrUserNotFound        = errors.New("user not found")
)

// KindOf classifies err. Anything not recognised is an upstream failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrInvalidCredentials):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrDuplicatePending),
		errors.Is(err, ErrAlreadyHasRole),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrUserExists):
		return KindConflict
	case errors.Is(err, ErrRoleRequestNotFound),
		errors.Is(err, ErrUserNotFound):
		return KindNotFound
	default:
		return KindUpstream
	}
}

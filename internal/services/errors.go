package services

import "errors"

// Rejections surfaced to clients. Everything else is an internal failure.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccessDenied       = errors.New("access denied")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("already exists")

	// ErrRevocationUnavailable means the revocation cache could not answer.
	// The token is rejected either way.
	ErrRevocationUnavailable = errors.New("revocation cache unavailable")
)

// IsRejection reports whether err is an expected refusal rather than a failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict)
}

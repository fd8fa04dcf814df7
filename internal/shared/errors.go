package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness rule was violated.
	ErrConflict = errors.New("already exists")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing or unusable identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an identity without the required grant.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

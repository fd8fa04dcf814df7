package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// IsServerError reports whether err has no client-facing kind.
func IsServerError(err error) bool {
	return StatusFor(err) == http.StatusInternalServerError
}

// RespondError maps domain errors to structured HTTP responses.
// Unknown errors never leak their text to the client.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Error(w, r, status, http.StatusText(status))
		return
	}
	Error(w, r, status, err.Error())
}

// Package httpx provides HTTP response utilities.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body written for every client-facing failure.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Envelope wraps successful payloads.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Respond sends a success envelope.
func Respond(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Status: status, Message: message, Data: data})
}

// Error sends a structured error body for the request path.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, status, ErrorResponse{
		Status:  status,
		Message: message,
		Path:    r.URL.Path,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

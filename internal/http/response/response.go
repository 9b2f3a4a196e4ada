// Package response renders the JSON envelopes used by every handler.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// ErrorBody is the uniform error envelope. Error and Message carry the same
// user-safe text; Error is the field API clients key on, Code is a stable
// machine-readable identifier.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes payload with the given status. Encoding failures are logged
// rather than surfaced; the status line has already been committed.
func JSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "response.encode_failed", "error", err)
	}
}

// Error writes the uniform error envelope.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	JSON(w, r, status, ErrorBody{
		Error:     message,
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

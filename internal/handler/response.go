// Package handler implements the HTTP surface of the service. Handlers
// decode and validate requests, delegate to the service layer, and map
// domain errors to HTTP statuses; no business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/caracolito/auth-service/internal/apperror"
)

// ErrorResponse is the error shape shared by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "conflict"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending field, when known
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that is left.
			slog.Error("encoding JSON response", "error", err)
		}
	}
}

// writeError maps a domain error to an HTTP status through the apperror
// kind it wraps. Errors without an AppError in their chain are internal:
// the client gets a generic 500 and the detail stays in the logs, so no
// SQL text or file path ever leaks into a response.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	slog.Error("unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

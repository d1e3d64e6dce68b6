package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so all endpoints
// share one content type and one error shape:
//
//	{"error": "not_found", "message": "snippet not found: hello.py"}
//
// "error" is machine-readable and stable; "message" is for humans.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-store/internal/apperror"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps an error kind to an HTTP status.
//
//	ErrInvalidArgument → 400 invalid_argument
//	ErrNotFound        → 404 not_found
//	anything else      → 500 internal_error
//
// Storage faults get a generic message: the driver text may contain SQL or
// file paths and stays in the server log.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	switch {
	case errors.Is(err, apperror.ErrInvalidArgument) && errors.As(err, &appErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_argument",
			Message: appErr.Message,
		})
	case errors.Is(err, apperror.ErrNotFound) && errors.As(err, &appErr):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: appErr.Message,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

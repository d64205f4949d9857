package handler

// RESPONSE HELPERS:
// These functions standardise how handlers answer.
//
//   - JSON endpoints (like, delete post, delete account, health) use
//     writeJSON / writeError, so every error has the same shape:
//     {"error": "not_found", "message": "post not found: 12"}
//   - Form endpoints redirect back to the form with the message in
//     ?error=, which the page shows above the form.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/ecosphere/internal/apperror"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is the JSON body of a successful delete.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status go out on the first body write, so set them first.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusOf maps a domain error to an HTTP status and error type.
//
// errors.Is walks the wrap chain, so a service error like
// fmt.Errorf("service/post: loading post 3: %w", apperror.NotFound(...))
// still maps to 404.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrUnauthenticated):
		// Browsers follow 401 challenges differently; the fetch callers
		// only need to know they can't do this.
		return http.StatusForbidden, "unauthenticated"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status and sends it.
// Unknown errors become a generic 500 and are logged; their text may hold
// SQL or file paths and never reaches the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, errorType := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: "An internal error occurred",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: apperror.Message(err, http.StatusText(status)),
	})
}

// redirectWithError sends the browser back to path with message in ?error=.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusFound)
}

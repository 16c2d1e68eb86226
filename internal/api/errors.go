package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/appaccess/internal/auth"
	"github.com/nerrad567/appaccess/internal/directory"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeRateLimited    = "rate_limited"

	// ErrCodePermissionNotFound marks a (user, application) pair without a
	// grant, as opposed to a missing user, application or route.
	ErrCodePermissionNotFound = "permission_not_found"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// validationMessage strips the sentinel prefix from a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "validation failed: "); i >= 0 {
		return msg[i+len("validation failed: "):]
	}
	return msg
}

// writeDomainError maps repository and service errors to HTTP responses.
// Unrecognised errors are logged and reported as 500 with a generic message.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation), errors.Is(err, directory.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, validationMessage(err))
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "email already registered")
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, directory.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, directory.ErrApplicationNotFound):
		writeNotFound(w, "application not found")
	case errors.Is(err, directory.ErrPermissionNotFound):
		writeError(w, http.StatusNotFound, ErrCodePermissionNotFound, "permission not found")
	default:
		s.logger.Error(op+" failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, op+" failed")
	}
}

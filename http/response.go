package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/math-dev-24/filevault"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means the error text is shown
}

// Specific sentinels come before the category they wrap.
var errorMappings = []errorMapping{
	{filevault.ErrBadPassword, http.StatusUnauthorized, "bad_password", "Wrong password"},
	{filevault.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Missing, unknown or expired API key"},
	{filevault.ErrUserNotFound, http.StatusNotFound, "user_not_found", "User not found"},
	{filevault.ErrNotFound, http.StatusNotFound, "not_found", "Resource not found"},
	{filevault.ErrInvalidEmail, http.StatusBadRequest, "invalid_email", "Account email has no '@'"},
	{filevault.ErrDisallowedType, http.StatusBadRequest, "disallowed_type", ""},
	{filevault.ErrTooLarge, http.StatusBadRequest, "file_too_large", "File exceeds the upload size limit"},
	{filevault.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{filevault.ErrConflict, http.StatusBadRequest, "conflict", "Resource already exists"},
	{filevault.ErrPhysicalMissing, http.StatusNotFound, "physical_missing", "File content is missing from storage"},
	{filevault.ErrPhysicalDeleteFailed, http.StatusInternalServerError, "physical_delete_failed", "File content could not be removed, the record was kept"},
	{filevault.ErrWriteFailed, http.StatusInternalServerError, "write_failed", "File could not be stored"},
	{filevault.ErrMetadataWriteFailed, http.StatusInternalServerError, "metadata_write_failed", "File record could not be saved, the upload was rolled back"},
	{filevault.ErrStreamFailed, http.StatusInternalServerError, "stream_failed", "File content could not be read"},
}

// HandleError writes the error response matching err. Server errors are
// logged with the request context and never echo the error text.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.DebugContext(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	WriteError(w, status, code, message)
}

func classify(err error) (int, string, string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusBadRequest, "file_too_large", "Request body exceeds the upload size limit"
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, m.code, msg
		}
	}

	return http.StatusInternalServerError, "internal_error", "Internal server error"
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

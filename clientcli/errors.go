package clientcli

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/math-dev-24/filevault"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
)

// Errors for configuration validation.
var (
	ErrAPIKeyRequired = errors.New("api key is required")
	ErrConfigRequired = errors.New("config is required")

	// ErrAPIKeyExpired is returned for a saved key past its recorded expiry.
	ErrAPIKeyExpired = errors.New("saved api key expired")
)

// Errors for input validation.
var (
	ErrNoFileIDs = errors.New("no file ids provided")
	ErrEmptyPath = errors.New("path is required")
)

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string // machine readable code from the error envelope
	Message    string
}

func (e *APIError) Error() string {
	msg := "server error: " + strconv.Itoa(e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// codeSentinels maps envelope codes to the server's error values so callers
// can use errors.Is with either package.
var codeSentinels = map[string]error{
	"unauthenticated":        filevault.ErrUnauthenticated,
	"bad_password":           filevault.ErrBadPassword,
	"not_found":              filevault.ErrNotFound,
	"user_not_found":         filevault.ErrUserNotFound,
	"invalid_input":          filevault.ErrInvalidInput,
	"invalid_email":          filevault.ErrInvalidEmail,
	"disallowed_type":        filevault.ErrDisallowedType,
	"file_too_large":         filevault.ErrTooLarge,
	"conflict":               filevault.ErrConflict,
	"physical_missing":       filevault.ErrPhysicalMissing,
	"physical_delete_failed": filevault.ErrPhysicalDeleteFailed,
	"write_failed":           filevault.ErrWriteFailed,
	"metadata_write_failed":  filevault.ErrMetadataWriteFailed,
	"stream_failed":          filevault.ErrStreamFailed,
	"internal_error":         filevault.ErrInternal,
}

// Is reports whether target matches this error.
// An *APIError target matches on StatusCode; a filevault sentinel matches
// when the envelope code maps to it or to an error wrapping it.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if errors.As(target, &t) {
		return t.StatusCode == e.StatusCode
	}
	if sentinel, ok := codeSentinels[e.Code]; ok {
		return errors.Is(sentinel, target)
	}
	return false
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the requested resource does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrUnauthorized is returned when the API key is missing, unknown or
	// expired, or a password is wrong (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrRateLimited is returned when the server throttled the request (429).
	ErrRateLimited = &APIError{StatusCode: http.StatusTooManyRequests}
)

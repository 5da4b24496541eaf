package filevault

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an API key is missing, unknown or expired
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned when a resource is not found or not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a unique field is already taken
	ErrConflict = errors.New("conflict")
	// ErrInconsistent is returned when metadata and stored bytes disagree
	ErrInconsistent = errors.New("inconsistent state")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)

var (
	// ErrBadPassword is returned when a login password does not match
	ErrBadPassword = fmt.Errorf("%w: bad password", ErrUnauthenticated)
	// ErrUserNotFound is returned when no user has the requested id
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	// ErrInvalidEmail is returned when a registration email has no '@'
	ErrInvalidEmail = fmt.Errorf("%w: email has no '@'", ErrInvalidInput)
	// ErrDisallowedType is returned when an upload's media type is not accepted
	ErrDisallowedType = fmt.Errorf("%w: file type not allowed", ErrInvalidInput)
	// ErrTooLarge is returned when an upload exceeds the size limit
	ErrTooLarge = fmt.Errorf("%w: file too large", ErrInvalidInput)
	// ErrPhysicalMissing is returned when a file record has no stored bytes
	ErrPhysicalMissing = fmt.Errorf("%w: stored bytes missing", ErrInconsistent)
	// ErrPhysicalDeleteFailed is returned when stored bytes survive a delete
	ErrPhysicalDeleteFailed = fmt.Errorf("%w: stored bytes could not be removed", ErrInconsistent)
	// ErrWriteFailed is returned when the byte store rejects an upload
	ErrWriteFailed = fmt.Errorf("%w: write failed", ErrInternal)
	// ErrMetadataWriteFailed is returned when a file record cannot be saved
	ErrMetadataWriteFailed = fmt.Errorf("%w: metadata write failed", ErrInternal)
	// ErrStreamFailed is returned when stored bytes cannot be read back
	ErrStreamFailed = fmt.Errorf("%w: stream failed", ErrInternal)
)

package filevault_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/math-dev-24/filevault"
)

func TestSentinelCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"bad password", filevault.ErrBadPassword, filevault.ErrUnauthenticated},
		{"user not found", filevault.ErrUserNotFound, filevault.ErrNotFound},
		{"invalid email", filevault.ErrInvalidEmail, filevault.ErrInvalidInput},
		{"disallowed type", filevault.ErrDisallowedType, filevault.ErrInvalidInput},
		{"too large", filevault.ErrTooLarge, filevault.ErrInvalidInput},
		{"physical missing", filevault.ErrPhysicalMissing, filevault.ErrInconsistent},
		{"physical delete failed", filevault.ErrPhysicalDeleteFailed, filevault.ErrInconsistent},
		{"write failed", filevault.ErrWriteFailed, filevault.ErrInternal},
		{"metadata write failed", filevault.ErrMetadataWriteFailed, filevault.ErrInternal},
		{"stream failed", filevault.ErrStreamFailed, filevault.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.category))
			for _, other := range []error{
				filevault.ErrUnauthenticated,
				filevault.ErrNotFound,
				filevault.ErrInvalidInput,
				filevault.ErrInconsistent,
				filevault.ErrInternal,
			} {
				if other != tt.category {
					assert.False(t, errors.Is(tt.err, other), "unexpected category %v", other)
				}
			}
		})
	}
}

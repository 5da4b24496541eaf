package filevault

import (
	"context"
	"io"
	"time"
)

// UserRepo persists user accounts.
type UserRepo interface {
	// CreateUser inserts a new user.
	//
	// Returns:
	//   - User: the stored user with its database id and timestamps
	//   - error: ErrConflict if the email is already registered
	CreateUser(ctx context.Context, u NewUser) (User, error)

	// GetUser returns ErrNotFound if no user has the given id.
	GetUser(ctx context.Context, id int64) (User, error)

	// UpdateUserName changes the display name and bumps updated_at.
	// Returns ErrNotFound if no user has the given id.
	UpdateUserName(ctx context.Context, id int64, name string) (User, error)

	// ListUsers returns every user with the number of keys still valid at
	// now and the number of files they own, ordered by id.
	ListUsers(ctx context.Context, now time.Time) ([]UserSummary, error)
}

// APIKeyRepo persists API keys. Keys are looked up by the sha256 digest of
// the raw token, never by the token itself.
type APIKeyRepo interface {
	CreateAPIKey(ctx context.Context, k NewAPIKey) (APIKey, error)

	// GetAPIKeyByHash returns ErrNotFound if no key has the given digest.
	// Expired keys are returned as well; callers decide validity.
	GetAPIKeyByHash(ctx context.Context, tokenHash string) (APIKey, error)

	// ListAPIKeys returns the user's keys ordered by expires_at ascending.
	ListAPIKeys(ctx context.Context, userID int64) ([]APIKey, error)

	// DeleteExpiredAPIKeys removes keys with expires_at <= now and returns
	// how many rows were removed.
	DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error)
}

// FileRepo persists file metadata. Every per-file query filters on both the
// file id and the owner id, so a file owned by someone else is reported as
// ErrNotFound exactly like a file that does not exist.
type FileRepo interface {
	CreateFile(ctx context.Context, entry FileEntry) (File, error)

	// GetFile returns ErrNotFound unless a file with this id is owned by ownerID.
	GetFile(ctx context.Context, id, ownerID int64) (File, error)

	// ListFiles returns the owner's files ordered by created_at ascending.
	// An owner without files yields an empty slice and no error.
	ListFiles(ctx context.Context, ownerID int64) ([]File, error)

	// ListAllFiles returns every file record. Used by consistency audits.
	ListAllFiles(ctx context.Context) ([]File, error)

	// DeleteFile returns ErrNotFound unless a file with this id is owned by ownerID.
	DeleteFile(ctx context.Context, id, ownerID int64) error
}

// Repo groups the metadata repositories a Service needs.
type Repo interface {
	UserRepo
	APIKeyRepo
	FileRepo
}

// FileStorage defines the interface for physical byte storage.
// Implementations can use the local filesystem, S3 or any other backend.
//
// All methods accept a context for cancellation and timeout control.
type FileStorage interface {
	// Open returns a reader for the object at path.
	//
	// Returns ErrNotFound if no object exists at path. The caller is
	// responsible for closing the returned reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores content at path.
	//
	// Implementations must:
	//   - create missing parent directories, tolerating concurrent creation
	//   - refuse to overwrite an existing object
	//   - leave nothing at path when content returns an error or ctx is cancelled
	//   - report the exact number of bytes written
	Write(ctx context.Context, path string, content io.Reader) (SaveResult, error)

	// Delete removes the object at path.
	// Returns ErrNotFound if no object exists at path.
	Delete(ctx context.Context, path string) error

	// List returns every stored object. It walks the whole backend and is
	// meant for audits, not request paths.
	List(ctx context.Context) ([]StoredObject, error)
}

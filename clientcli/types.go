package clientcli

import (
	"time"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	ContentType string // optional, sniffed from content if empty
	Recursive   bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath string   `json:"local_path"`
	File      FileInfo `json:"file"`
	Err       error    `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	FileID    int64
	LocalPath string // empty = server-provided name, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	FileID      int64  `json:"file_id"`
	Name        string `json:"name"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	FileIDs []int64
}

// DeleteResult represents the result of deleting a single file.
type DeleteResult struct {
	FileID  int64 `json:"file_id"`
	Deleted bool  `json:"deleted"`
	Err     error `json:"-"` // nil on success
}

// FileInfo mirrors a file record returned by the server.
type FileInfo struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResult contains every file the caller owns.
type ListResult struct {
	Quantity int        `json:"quantity"`
	Files    []FileInfo `json:"files"`
}

// TotalSize calculates the total size of all files in bytes.
func (r *ListResult) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

type UserInfo struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyInfo describes an API key without its secret.
type KeyInfo struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Prefix    string    `json:"prefix"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IssuedKey is a freshly issued key. Token is only ever returned here.
type IssuedKey struct {
	KeyInfo
	Token string `json:"api_key"`
}

// Account is the profile of the caller.
type Account struct {
	User    UserInfo   `json:"user"`
	APIKeys []KeyInfo  `json:"api_keys"`
	Files   []FileInfo `json:"files"`
}

// serverError mirrors the JSON error envelope written by the server.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

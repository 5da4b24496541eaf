package filevault

import (
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIKey is the stored form of an issued key. Only the sha256 digest of the
// token is persisted; Prefix is kept so users can tell their keys apart.
type APIKey struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Prefix    string    `json:"prefix"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IssuedKey is returned once, at issuance, and is the only value that ever
// carries the raw token.
type IssuedKey struct {
	APIKey
	Token string `json:"api_key"`
}

type File struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"user_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileEntry is the input for persisting a new file record.
type FileEntry struct {
	OwnerID  int64
	Name     string
	Path     string
	Size     int64
	MimeType string
}

type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
}

type NewAPIKey struct {
	UserID    int64
	Prefix    string
	TokenHash string
	ExpiresAt time.Time
}

type Registration struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UploadObject describes an incoming upload. Size is the declared length in
// bytes, or -1 when the client did not announce one.
type UploadObject struct {
	Name        string
	ContentType string
	Size        int64
}

type SaveResult struct {
	BytesWritten int64
}

// StoredObject is an object found in a FileStorage, independent of metadata.
type StoredObject struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type UserSummary struct {
	User
	LiveKeys int64 `json:"live_api_keys"`
	Files    int64 `json:"files"`
}

type Profile struct {
	User    User     `json:"user"`
	APIKeys []APIKey `json:"api_keys"`
	Files   []File   `json:"files"`
}

// Report is the result of comparing file records with stored objects.
type Report struct {
	Records  int            `json:"records"`
	Objects  int            `json:"objects"`
	Missing  []File         `json:"missing"`
	Orphaned []StoredObject `json:"orphaned"`
}

func (r Report) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Orphaned) == 0
}

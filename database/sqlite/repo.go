package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/math-dev-24/filevault"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeFormat is fixed width so stored timestamps compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sErr *sqlitedriver.Error
	if !errors.As(err, &sErr) {
		return false
	}
	switch sErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sErr.Error(), "UNIQUE")
	}
	return false
}

// Repo implements filevault.Repo.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

var _ filevault.Repo = (*Repo)(nil)

func (r *Repo) CreateUser(ctx context.Context, u filevault.NewUser) (filevault.User, error) {
	now := formatTime(time.Now())

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.Name, u.PasswordHash, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return filevault.User{}, fmt.Errorf("create user: %w", filevault.ErrConflict)
		}
		return filevault.User{}, fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return filevault.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}

	return r.GetUser(ctx, id)
}

const userColumns = `id, email, name, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (filevault.User, error) {
	var u filevault.User
	var createdAt, updatedAt string

	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return filevault.User{}, err
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return filevault.User{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return filevault.User{}, err
	}
	return u, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (filevault.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return filevault.User{}, filevault.ErrNotFound
		}
		return filevault.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repo) UpdateUserName(ctx context.Context, id int64, name string) (filevault.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
		name, formatTime(time.Now()), id,
	)
	if err != nil {
		return filevault.User{}, fmt.Errorf("update user name: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return filevault.User{}, fmt.Errorf("update user name: rows affected: %w", err)
	}
	if n == 0 {
		return filevault.User{}, fmt.Errorf("update user name: %w", filevault.ErrNotFound)
	}

	return r.GetUser(ctx, id)
}

func (r *Repo) ListUsers(ctx context.Context, now time.Time) ([]filevault.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.name, u.password_hash, u.created_at, u.updated_at,
			(SELECT COUNT(*) FROM api_keys k WHERE k.user_id = u.id AND k.expires_at > ?),
			(SELECT COUNT(*) FROM files f WHERE f.owner_id = u.id)
		FROM users u
		ORDER BY u.id`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []filevault.UserSummary{}
	for rows.Next() {
		var s filevault.UserSummary
		var createdAt, updatedAt string

		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &createdAt, &updatedAt, &s.LiveKeys, &s.Files); err != nil {
			return nil, fmt.Errorf("list users: scan: %w", err)
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: rows: %w", err)
	}
	return users, nil
}

const apiKeyColumns = `id, user_id, prefix, token_hash, expires_at, created_at`

func scanAPIKey(row interface{ Scan(...any) error }) (filevault.APIKey, error) {
	var k filevault.APIKey
	var expiresAt, createdAt string

	if err := row.Scan(&k.ID, &k.UserID, &k.Prefix, &k.TokenHash, &expiresAt, &createdAt); err != nil {
		return filevault.APIKey{}, err
	}

	var err error
	if k.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return filevault.APIKey{}, err
	}
	if k.CreatedAt, err = parseTime(createdAt); err != nil {
		return filevault.APIKey{}, err
	}
	return k, nil
}

func (r *Repo) CreateAPIKey(ctx context.Context, k filevault.NewAPIKey) (filevault.APIKey, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (user_id, prefix, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		k.UserID, k.Prefix, k.TokenHash, formatTime(k.ExpiresAt), formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return filevault.APIKey{}, fmt.Errorf("create api key: %w", filevault.ErrConflict)
		}
		return filevault.APIKey{}, fmt.Errorf("create api key: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return filevault.APIKey{}, fmt.Errorf("create api key: last insert id: %w", err)
	}

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id))
	if err != nil {
		return filevault.APIKey{}, fmt.Errorf("create api key: read back: %w", err)
	}
	return key, nil
}

func (r *Repo) GetAPIKeyByHash(ctx context.Context, tokenHash string) (filevault.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE token_hash = ?`, tokenHash)

	k, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return filevault.APIKey{}, filevault.ErrNotFound
		}
		return filevault.APIKey{}, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

func (r *Repo) ListAPIKeys(ctx context.Context, userID int64) ([]filevault.APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? ORDER BY expires_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := []filevault.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("list api keys: scan: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys: rows: %w", err)
	}
	return keys, nil
}

func (r *Repo) DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired api keys: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired api keys: rows affected: %w", err)
	}
	return n, nil
}

const fileColumns = `id, owner_id, name, path, size, mime_type, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (filevault.File, error) {
	var f filevault.File
	var createdAt, updatedAt string

	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Path, &f.Size, &f.MimeType, &createdAt, &updatedAt); err != nil {
		return filevault.File{}, err
	}

	var err error
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return filevault.File{}, err
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return filevault.File{}, err
	}
	return f, nil
}

func (r *Repo) CreateFile(ctx context.Context, entry filevault.FileEntry) (filevault.File, error) {
	now := formatTime(time.Now())

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO files (owner_id, name, path, size, mime_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.OwnerID, entry.Name, entry.Path, entry.Size, entry.MimeType, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return filevault.File{}, fmt.Errorf("create file: %w", filevault.ErrConflict)
		}
		return filevault.File{}, fmt.Errorf("create file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return filevault.File{}, fmt.Errorf("create file: last insert id: %w", err)
	}

	f, err := scanFile(r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if err != nil {
		return filevault.File{}, fmt.Errorf("create file: read back: %w", err)
	}
	return f, nil
}

func (r *Repo) GetFile(ctx context.Context, id, ownerID int64) (filevault.File, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ? AND owner_id = ?`, id, ownerID)

	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return filevault.File{}, filevault.ErrNotFound
		}
		return filevault.File{}, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (r *Repo) ListFiles(ctx context.Context, ownerID int64) ([]filevault.File, error) {
	return r.listFiles(ctx, "list files",
		`SELECT `+fileColumns+` FROM files WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
}

func (r *Repo) ListAllFiles(ctx context.Context) ([]filevault.File, error) {
	return r.listFiles(ctx, "list all files", `SELECT `+fileColumns+` FROM files ORDER BY id`)
}

func (r *Repo) listFiles(ctx context.Context, opName, query string, args ...any) ([]filevault.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opName, err)
	}
	defer func() { _ = rows.Close() }()

	files := []filevault.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", opName, err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", opName, err)
	}
	return files, nil
}

func (r *Repo) DeleteFile(ctx context.Context, id, ownerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete file: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete file: %w", filevault.ErrNotFound)
	}
	return nil
}

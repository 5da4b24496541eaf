package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/math-dev-24/filevault"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Repo implements filevault.Repo.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ filevault.Repo = (*Repo)(nil)

const userColumns = `id, email, name, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (filevault.User, error) {
	var u filevault.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *Repo) CreateUser(ctx context.Context, u filevault.NewUser) (filevault.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		u.Email, u.Name, u.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return filevault.User{}, fmt.Errorf("create user: %w", filevault.ErrConflict)
		}
		return filevault.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (filevault.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return filevault.User{}, filevault.ErrNotFound
		}
		return filevault.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repo) UpdateUserName(ctx context.Context, id int64, name string) (filevault.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, name,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return filevault.User{}, fmt.Errorf("update user name: %w", filevault.ErrNotFound)
		}
		return filevault.User{}, fmt.Errorf("update user name: %w", err)
	}
	return u, nil
}

func (r *Repo) ListUsers(ctx context.Context, now time.Time) ([]filevault.UserSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.name, u.password_hash, u.created_at, u.updated_at,
			(SELECT COUNT(*) FROM api_keys k WHERE k.user_id = u.id AND k.expires_at > $1),
			(SELECT COUNT(*) FROM files f WHERE f.owner_id = u.id)
		FROM users u
		ORDER BY u.id`, now)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []filevault.UserSummary{}
	for rows.Next() {
		var s filevault.UserSummary
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &s.CreatedAt, &s.UpdatedAt, &s.LiveKeys, &s.Files); err != nil {
			return nil, fmt.Errorf("list users: scan: %w", err)
		}
		users = append(users, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: rows: %w", err)
	}
	return users, nil
}

const apiKeyColumns = `id, user_id, prefix, token_hash, expires_at, created_at`

func scanAPIKey(row pgx.Row) (filevault.APIKey, error) {
	var k filevault.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Prefix, &k.TokenHash, &k.ExpiresAt, &k.CreatedAt)
	return k, err
}

func (r *Repo) CreateAPIKey(ctx context.Context, k filevault.NewAPIKey) (filevault.APIKey, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, prefix, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+apiKeyColumns,
		k.UserID, k.Prefix, k.TokenHash, k.ExpiresAt,
	)

	created, err := scanAPIKey(row)
	if err != nil {
		if isUniqueViolation(err) {
			return filevault.APIKey{}, fmt.Errorf("create api key: %w", filevault.ErrConflict)
		}
		return filevault.APIKey{}, fmt.Errorf("create api key: %w", err)
	}
	return created, nil
}

func (r *Repo) GetAPIKeyByHash(ctx context.Context, tokenHash string) (filevault.APIKey, error) {
	k, err := scanAPIKey(r.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE token_hash = $1`, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return filevault.APIKey{}, filevault.ErrNotFound
		}
		return filevault.APIKey{}, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

func (r *Repo) ListAPIKeys(ctx context.Context, userID int64) ([]filevault.APIKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY expires_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

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
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired api keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

const fileColumns = `id, owner_id, name, path, size, mime_type, created_at, updated_at`

func scanFile(row pgx.Row) (filevault.File, error) {
	var f filevault.File
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Path, &f.Size, &f.MimeType, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (r *Repo) CreateFile(ctx context.Context, entry filevault.FileEntry) (filevault.File, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO files (owner_id, name, path, size, mime_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+fileColumns,
		entry.OwnerID, entry.Name, entry.Path, entry.Size, entry.MimeType,
	)

	f, err := scanFile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return filevault.File{}, fmt.Errorf("create file: %w", filevault.ErrConflict)
		}
		return filevault.File{}, fmt.Errorf("create file: %w", err)
	}
	return f, nil
}

func (r *Repo) GetFile(ctx context.Context, id, ownerID int64) (filevault.File, error) {
	f, err := scanFile(r.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return filevault.File{}, filevault.ErrNotFound
		}
		return filevault.File{}, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (r *Repo) ListFiles(ctx context.Context, ownerID int64) ([]filevault.File, error) {
	return r.listFiles(ctx, "list files",
		`SELECT `+fileColumns+` FROM files WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
}

func (r *Repo) ListAllFiles(ctx context.Context) ([]filevault.File, error) {
	return r.listFiles(ctx, "list all files", `SELECT `+fileColumns+` FROM files ORDER BY id`)
}

func (r *Repo) listFiles(ctx context.Context, opName, query string, args ...any) ([]filevault.File, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opName, err)
	}
	defer rows.Close()

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
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete file: %w", filevault.ErrNotFound)
	}
	return nil
}

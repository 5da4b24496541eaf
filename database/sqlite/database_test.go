package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/math-dev-24/filevault"
	"github.com/math-dev-24/filevault/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestConnect_Ping(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.NoError(t, db.Ping(context.Background()))
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDatabase(t)

	require.NoError(t, db.Migrate(ctx))
	assert.NoError(t, db.Validate(ctx))
}

func TestValidate_BeforeMigrate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = db.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestValidateSchema_MissingColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = raw.Close() })

	require.NoError(t, sqlite.Migrate(ctx, raw))
	_, err = raw.ExecContext(ctx, `ALTER TABLE files DROP COLUMN mime_type`)
	require.NoError(t, err)

	err = sqlite.ValidateSchema(ctx, raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns: mime_type")
}

func TestReset_DropsTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = raw.Close() })

	require.NoError(t, sqlite.Migrate(ctx, raw))
	require.NoError(t, sqlite.Reset(ctx, raw))

	assert.Error(t, sqlite.ValidateSchema(ctx, raw))
}

func TestForeignKeys_Enforced(t *testing.T) {
	t.Parallel()
	repo := newTestDatabase(t).GetRepo()

	_, err := repo.CreateFile(context.Background(), filevault.FileEntry{
		OwnerID:  999,
		Name:     "a.pdf",
		Path:     "u999/a.pdf",
		Size:     1,
		MimeType: "application/pdf",
	})
	assert.Error(t, err)
}

func TestConnect_FilePersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "filevault.db")

	db, err := sqlite.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	u, err := db.GetRepo().CreateUser(ctx, filevault.NewUser{Email: "a@b.c", Name: "A", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := sqlite.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	require.NoError(t, reopened.Validate(ctx))

	got, err := reopened.GetRepo().GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got.Email)
}

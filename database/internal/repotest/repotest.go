// Package repotest holds the behaviour every filevault.Repo backend must
// share. Backends call Run from their own tests with a factory that hands
// out an empty, migrated repository.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/math-dev-24/filevault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh repository. It registers its own cleanup on t.
type Factory func(t *testing.T) filevault.Repo

// Run executes the shared repository suite.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, newRepo) })
	t.Run("api keys", func(t *testing.T) { testAPIKeys(t, newRepo) })
	t.Run("files", func(t *testing.T) { testFiles(t, newRepo) })
	t.Run("list users", func(t *testing.T) { testListUsers(t, newRepo) })
}

func createUser(t *testing.T, repo filevault.Repo, email string) filevault.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), filevault.NewUser{
		Email:        email,
		Name:         "User " + email,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	return u
}

func createFile(t *testing.T, repo filevault.Repo, ownerID int64, path string) filevault.File {
	t.Helper()
	f, err := repo.CreateFile(context.Background(), filevault.FileEntry{
		OwnerID:  ownerID,
		Name:     "report.pdf",
		Path:     path,
		Size:     1024,
		MimeType: "application/pdf",
	})
	require.NoError(t, err)
	return f
}

func testUsers(t *testing.T, newRepo Factory) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.CreateUser(ctx, filevault.NewUser{
			Email:        "ada@example.com",
			Name:         "Ada",
			PasswordHash: "$2a$10$hash",
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Equal(t, "Ada", created.Name)
		assert.Equal(t, "$2a$10$hash", created.PasswordHash)
		assert.False(t, created.CreatedAt.IsZero())
		assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

		got, err := repo.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Email, got.Email)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		repo := newRepo(t)
		createUser(t, repo, "dup@example.com")

		_, err := repo.CreateUser(context.Background(), filevault.NewUser{
			Email:        "dup@example.com",
			Name:         "Other",
			PasswordHash: "x",
		})
		assert.ErrorIs(t, err, filevault.ErrConflict)
	})

	t.Run("get unknown user", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetUser(context.Background(), 424242)
		assert.ErrorIs(t, err, filevault.ErrNotFound)
	})

	t.Run("update name", func(t *testing.T) {
		repo := newRepo(t)
		u := createUser(t, repo, "grace@example.com")

		updated, err := repo.UpdateUserName(context.Background(), u.ID, "Grace Hopper")
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", updated.Name)
		assert.Equal(t, u.Email, updated.Email)
		assert.False(t, updated.UpdatedAt.Before(u.UpdatedAt))
	})

	t.Run("update unknown user", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.UpdateUserName(context.Background(), 424242, "Nobody")
		assert.ErrorIs(t, err, filevault.ErrNotFound)
	})
}

func testAPIKeys(t *testing.T, newRepo Factory) {
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	t.Run("create and look up by hash", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "keys@example.com")

		created, err := repo.CreateAPIKey(ctx, filevault.NewAPIKey{
			UserID:    u.ID,
			Prefix:    "abcd1234",
			TokenHash: "hash-1",
			ExpiresAt: base.Add(24 * time.Hour),
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, u.ID, created.UserID)
		assert.True(t, created.ExpiresAt.Equal(base.Add(24*time.Hour)), "expires_at %s", created.ExpiresAt)

		got, err := repo.GetAPIKeyByHash(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "abcd1234", got.Prefix)
		assert.Equal(t, "hash-1", got.TokenHash)
	})

	t.Run("unknown hash", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetAPIKeyByHash(context.Background(), "missing")
		assert.ErrorIs(t, err, filevault.ErrNotFound)
	})

	t.Run("duplicate hash is a conflict", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "dupkey@example.com")

		k := filevault.NewAPIKey{UserID: u.ID, Prefix: "p", TokenHash: "same", ExpiresAt: base}
		_, err := repo.CreateAPIKey(ctx, k)
		require.NoError(t, err)

		_, err = repo.CreateAPIKey(ctx, k)
		assert.ErrorIs(t, err, filevault.ErrConflict)
	})

	t.Run("list ordered by expiry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "order@example.com")
		other := createUser(t, repo, "other@example.com")

		for i, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
			_, err := repo.CreateAPIKey(ctx, filevault.NewAPIKey{
				UserID:    u.ID,
				Prefix:    fmt.Sprintf("p%d", i),
				TokenHash: fmt.Sprintf("order-%d", i),
				ExpiresAt: base.Add(offset),
			})
			require.NoError(t, err)
		}
		_, err := repo.CreateAPIKey(ctx, filevault.NewAPIKey{
			UserID: other.ID, Prefix: "x", TokenHash: "other", ExpiresAt: base,
		})
		require.NoError(t, err)

		keys, err := repo.ListAPIKeys(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, keys, 3)
		assert.Equal(t, "p1", keys[0].Prefix)
		assert.Equal(t, "p2", keys[1].Prefix)
		assert.Equal(t, "p0", keys[2].Prefix)
	})

	t.Run("list without keys is empty", func(t *testing.T) {
		repo := newRepo(t)
		u := createUser(t, repo, "nokeys@example.com")

		keys, err := repo.ListAPIKeys(context.Background(), u.ID)
		require.NoError(t, err)
		assert.NotNil(t, keys)
		assert.Empty(t, keys)
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "prune@example.com")

		for i, expiresAt := range []time.Time{
			base.Add(-time.Hour),
			base,
			base.Add(time.Millisecond),
			base.Add(time.Hour),
		} {
			_, err := repo.CreateAPIKey(ctx, filevault.NewAPIKey{
				UserID:    u.ID,
				Prefix:    fmt.Sprintf("p%d", i),
				TokenHash: fmt.Sprintf("prune-%d", i),
				ExpiresAt: expiresAt,
			})
			require.NoError(t, err)
		}

		n, err := repo.DeleteExpiredAPIKeys(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		keys, err := repo.ListAPIKeys(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "p2", keys[0].Prefix)
		assert.Equal(t, "p3", keys[1].Prefix)
	})
}

func testFiles(t *testing.T, newRepo Factory) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "files@example.com")

		created, err := repo.CreateFile(ctx, filevault.FileEntry{
			OwnerID:  u.ID,
			Name:     "diagram.png",
			Path:     "u1/1710408413000-42.png",
			Size:     2048,
			MimeType: "image/png",
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, u.ID, created.OwnerID)
		assert.Equal(t, "diagram.png", created.Name)
		assert.Equal(t, int64(2048), created.Size)
		assert.Equal(t, "image/png", created.MimeType)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetFile(ctx, created.ID, u.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Path, got.Path)
	})

	t.Run("other owner cannot see the file", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := createUser(t, repo, "owner@example.com")
		intruder := createUser(t, repo, "intruder@example.com")
		f := createFile(t, repo, owner.ID, "u1/a.pdf")

		_, err := repo.GetFile(ctx, f.ID, intruder.ID)
		assert.ErrorIs(t, err, filevault.ErrNotFound)

		err = repo.DeleteFile(ctx, f.ID, intruder.ID)
		assert.ErrorIs(t, err, filevault.ErrNotFound)

		_, err = repo.GetFile(ctx, f.ID, owner.ID)
		assert.NoError(t, err)
	})

	t.Run("duplicate path is a conflict", func(t *testing.T) {
		repo := newRepo(t)
		u := createUser(t, repo, "duppath@example.com")
		createFile(t, repo, u.ID, "u1/same.pdf")

		_, err := repo.CreateFile(context.Background(), filevault.FileEntry{
			OwnerID: u.ID, Name: "b.pdf", Path: "u1/same.pdf", Size: 1, MimeType: "application/pdf",
		})
		assert.ErrorIs(t, err, filevault.ErrConflict)
	})

	t.Run("list in creation order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "list@example.com")
		other := createUser(t, repo, "list-other@example.com")

		first := createFile(t, repo, u.ID, "u1/1.pdf")
		second := createFile(t, repo, u.ID, "u1/2.pdf")
		createFile(t, repo, other.ID, "u2/1.pdf")
		third := createFile(t, repo, u.ID, "u1/3.pdf")

		files, err := repo.ListFiles(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, files, 3)
		assert.Equal(t, []int64{first.ID, second.ID, third.ID}, []int64{files[0].ID, files[1].ID, files[2].ID})

		all, err := repo.ListAllFiles(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("list without files is empty", func(t *testing.T) {
		repo := newRepo(t)
		u := createUser(t, repo, "empty@example.com")

		files, err := repo.ListFiles(context.Background(), u.ID)
		require.NoError(t, err)
		assert.NotNil(t, files)
		assert.Empty(t, files)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "delete@example.com")
		f := createFile(t, repo, u.ID, "u1/gone.pdf")

		require.NoError(t, repo.DeleteFile(ctx, f.ID, u.ID))

		_, err := repo.GetFile(ctx, f.ID, u.ID)
		assert.ErrorIs(t, err, filevault.ErrNotFound)

		err = repo.DeleteFile(ctx, f.ID, u.ID)
		assert.ErrorIs(t, err, filevault.ErrNotFound)
	})

	t.Run("concurrent creates get distinct ids", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := createUser(t, repo, "concurrent@example.com")

		const n = 10
		ids := make([]int64, n)
		errs := make([]error, n)

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f, err := repo.CreateFile(ctx, filevault.FileEntry{
					OwnerID:  u.ID,
					Name:     "c.png",
					Path:     fmt.Sprintf("u1/c-%d.png", i),
					Size:     int64(i),
					MimeType: "image/png",
				})
				ids[i], errs[i] = f.ID, err
			}()
		}
		wg.Wait()

		seen := make(map[int64]bool)
		for i := range n {
			require.NoError(t, errs[i])
			assert.False(t, seen[ids[i]], "duplicate id %d", ids[i])
			seen[ids[i]] = true
		}

		files, err := repo.ListFiles(ctx, u.ID)
		require.NoError(t, err)
		assert.Len(t, files, n)
	})
}

func testListUsers(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	ada := createUser(t, repo, "ada@example.com")
	bob := createUser(t, repo, "bob@example.com")

	for i, expiresAt := range []time.Time{now.Add(time.Hour), now.Add(2 * time.Hour), now} {
		_, err := repo.CreateAPIKey(ctx, filevault.NewAPIKey{
			UserID:    ada.ID,
			Prefix:    "p",
			TokenHash: fmt.Sprintf("live-%d", i),
			ExpiresAt: expiresAt,
		})
		require.NoError(t, err)
	}
	createFile(t, repo, ada.ID, "u1/x.pdf")

	users, err := repo.ListUsers(ctx, now)
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, ada.ID, users[0].ID)
	assert.Equal(t, int64(2), users[0].LiveKeys)
	assert.Equal(t, int64(1), users[0].Files)

	assert.Equal(t, bob.ID, users[1].ID)
	assert.Zero(t, users[1].LiveKeys)
	assert.Zero(t, users[1].Files)
}

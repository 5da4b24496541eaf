package filevault_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/math-dev-24/filevault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Verify(t *testing.T) {
	old := testNow.Add(-time.Hour)

	t.Run("reports missing and orphaned", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("ListAllFiles", ctx).Return([]filevault.File{
			{ID: 1, Path: "u1/a.png"},
			{ID: 2, Path: "u1/b.png"},
		}, nil)
		storage.On("List", ctx).Return([]filevault.StoredObject{
			{Path: "u1/a.png", ModTime: old},
			{Path: "u2/z.png", ModTime: old},
			{Path: "u2/c.png", ModTime: old},
			{Path: "u2/fresh.png", ModTime: testNow},
		}, nil)

		report, err := service.Verify(ctx, time.Minute)
		require.NoError(t, err)
		assert.False(t, report.Consistent())
		assert.Equal(t, 2, report.Records)
		assert.Equal(t, 4, report.Objects)
		require.Len(t, report.Missing, 1)
		assert.Equal(t, int64(2), report.Missing[0].ID)
		require.Len(t, report.Orphaned, 2)
		assert.Equal(t, "u2/c.png", report.Orphaned[0].Path)
		assert.Equal(t, "u2/z.png", report.Orphaned[1].Path)
	})

	t.Run("consistent", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("ListAllFiles", ctx).Return([]filevault.File{{ID: 1, Path: "u1/a.png"}}, nil)
		storage.On("List", ctx).Return([]filevault.StoredObject{{Path: "u1/a.png", ModTime: old}}, nil)

		report, err := service.Verify(ctx, 0)
		require.NoError(t, err)
		assert.True(t, report.Consistent())
	})

	t.Run("storage list error", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("ListAllFiles", ctx).Return([]filevault.File{}, nil)
		storage.On("List", ctx).Return([]filevault.StoredObject{}, errors.New("walk failed"))

		_, err := service.Verify(ctx, 0)
		assert.Error(t, err)
	})
}

func TestService_RemoveOrphans(t *testing.T) {
	t.Run("removes and tolerates missing", func(t *testing.T) {
		service, _, storage := NewSpyService(t)
		ctx := context.Background()

		storage.On("Delete", ctx, "u2/a").Return(nil)
		storage.On("Delete", ctx, "u2/b").Return(filevault.ErrNotFound)

		n, err := service.RemoveOrphans(ctx, []filevault.StoredObject{{Path: "u2/a"}, {Path: "u2/b"}})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("stops on failure", func(t *testing.T) {
		service, _, storage := NewSpyService(t)
		ctx := context.Background()

		storage.On("Delete", ctx, "u2/a").Return(errors.New("permission denied"))

		n, err := service.RemoveOrphans(ctx, []filevault.StoredObject{{Path: "u2/a"}, {Path: "u2/b"}})
		assert.Error(t, err)
		assert.Equal(t, 0, n)
		storage.AssertNotCalled(t, "Delete", ctx, "u2/b")
	})
}

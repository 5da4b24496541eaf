package filevault_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/math-dev-24/filevault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pngUpload(size int64) filevault.UploadObject {
	return filevault.UploadObject{Name: "photo.PNG", ContentType: "image/png", Size: size}
}

func TestService_Upload(t *testing.T) {
	t.Run("success stores bytes and metadata", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()
		content := pngBytes(1024)

		var entry filevault.FileEntry
		repo.On("CreateFile", ctx, mock.Anything).Run(func(args mock.Arguments) {
			entry = args.Get(1).(filevault.FileEntry)
		}).Return(filevault.File{ID: 11, OwnerID: testOwner.ID, Path: "stub"}, nil)

		f, err := service.Upload(ctx, testOwner, pngUpload(1024), bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, int64(11), f.ID)

		assert.Equal(t, testOwner.ID, entry.OwnerID)
		assert.Equal(t, "photo.PNG", entry.Name)
		assert.Equal(t, "image/png", entry.MimeType)
		assert.Equal(t, int64(1024), entry.Size)
		assert.Regexp(t, `^u7/\d+-\d+\.png$`, entry.Path)

		stored := storage.objects[entry.Path]
		assert.Equal(t, content, stored)
		repo.AssertExpectations(t)
	})

	t.Run("content type parameters are stripped", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.MatchedBy(func(e filevault.FileEntry) bool {
			return e.MimeType == "application/pdf"
		})).Return(filevault.File{ID: 1}, nil)

		obj := filevault.UploadObject{Name: "a.pdf", ContentType: "Application/PDF; charset=binary", Size: -1}
		_, err := service.Upload(ctx, testOwner, obj, bytes.NewReader(pdfBytes(100)))
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("error - disallowed type writes nothing", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)

		obj := filevault.UploadObject{Name: "notes.txt", ContentType: "text/plain", Size: 5}
		_, err := service.Upload(context.Background(), testOwner, obj, strings.NewReader("hello"))
		assert.ErrorIs(t, err, filevault.ErrDisallowedType)
		assert.ErrorIs(t, err, filevault.ErrInvalidInput)
		assert.Empty(t, storage.paths())
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("error - empty content type", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)

		obj := filevault.UploadObject{Name: "x", ContentType: "", Size: 1}
		_, err := service.Upload(context.Background(), testOwner, obj, strings.NewReader("x"))
		assert.ErrorIs(t, err, filevault.ErrDisallowedType)
		storage.AssertNotCalled(t, "Write")
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("error - content does not match declared type", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)

		_, err := service.Upload(context.Background(), testOwner, pngUpload(-1), strings.NewReader("definitely not a png"))
		assert.ErrorIs(t, err, filevault.ErrDisallowedType)
		assert.Empty(t, storage.paths())
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("svg with a long prolog passes the sniff", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.Anything).Return(filevault.File{ID: 4}, nil)

		svg := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
			"<!-- " + strings.Repeat("x", 4000) + " -->\n" +
			`<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`
		obj := filevault.UploadObject{Name: "logo.svg", ContentType: "image/svg+xml", Size: int64(len(svg))}

		_, err := service.Upload(ctx, testOwner, obj, strings.NewReader(svg))
		require.NoError(t, err)
		require.Len(t, storage.paths(), 1)
		assert.Equal(t, []byte(svg), storage.content(storage.paths()[0]))
	})

	t.Run("error - binary content declared as svg", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)

		obj := filevault.UploadObject{Name: "logo.svg", ContentType: "image/svg+xml", Size: 64}
		_, err := service.Upload(context.Background(), testOwner, obj, bytes.NewReader(pngBytes(64)))
		assert.ErrorIs(t, err, filevault.ErrDisallowedType)
		assert.Empty(t, storage.paths())
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("empty pdf passes the sniff", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.MatchedBy(func(e filevault.FileEntry) bool {
			return e.Size == 0 && e.MimeType == "application/pdf"
		})).Return(filevault.File{ID: 5}, nil)

		obj := filevault.UploadObject{Name: "blank.pdf", ContentType: "application/pdf", Size: 0}
		_, err := service.Upload(ctx, testOwner, obj, strings.NewReader(""))
		require.NoError(t, err)
		assert.Len(t, storage.paths(), 1)
		repo.AssertExpectations(t)
	})

	t.Run("sniffing disabled accepts declared type", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage, func(c *filevault.ServiceConfig) { c.SniffContent = false })
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.Anything).Return(filevault.File{ID: 3}, nil)

		_, err := service.Upload(ctx, testOwner, pngUpload(-1), strings.NewReader("not a png"))
		require.NoError(t, err)
		assert.Len(t, storage.paths(), 1)
	})

	t.Run("error - email without at sign", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		owner := filevault.User{ID: 3, Email: "no-at-sign"}

		_, err := service.Upload(context.Background(), owner, pngUpload(10), bytes.NewReader(pngBytes(10)))
		assert.ErrorIs(t, err, filevault.ErrInvalidEmail)
		storage.AssertNotCalled(t, "Write")
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("error - owner without id", func(t *testing.T) {
		service, _, storage := NewSpyService(t)

		_, err := service.Upload(context.Background(), filevault.User{Email: "a@b.c"}, pngUpload(10), bytes.NewReader(pngBytes(10)))
		assert.ErrorIs(t, err, filevault.ErrUnauthenticated)
		storage.AssertNotCalled(t, "Write")
	})

	t.Run("error - declared size above limit", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)

		obj := filevault.UploadObject{Name: "big.pdf", ContentType: "application/pdf", Size: 11 << 20}
		_, err := service.Upload(context.Background(), testOwner, obj, bytes.NewReader(pdfBytes(16)))
		assert.ErrorIs(t, err, filevault.ErrTooLarge)
		storage.AssertNotCalled(t, "Write")
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("error - 11 MiB pdf with unknown size leaves nothing", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)

		obj := filevault.UploadObject{Name: "big.pdf", ContentType: "application/pdf", Size: -1}
		_, err := service.Upload(context.Background(), testOwner, obj, bytes.NewReader(pdfBytes(11<<20)))
		assert.ErrorIs(t, err, filevault.ErrTooLarge)
		assert.Empty(t, storage.paths())
		repo.AssertNotCalled(t, "CreateFile")
	})

	t.Run("file of exactly the limit is accepted", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage, func(c *filevault.ServiceConfig) { c.MaxUploadSize = 4096 })
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.MatchedBy(func(e filevault.FileEntry) bool {
			return e.Size == 4096
		})).Return(filevault.File{ID: 1}, nil)

		_, err := service.Upload(ctx, testOwner, pngUpload(-1), bytes.NewReader(pngBytes(4096)))
		require.NoError(t, err)

		_, err = service.Upload(ctx, testOwner, pngUpload(-1), bytes.NewReader(pngBytes(4097)))
		assert.ErrorIs(t, err, filevault.ErrTooLarge)
		assert.Len(t, storage.paths(), 1)
	})

	t.Run("error - storage write fails", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		storage.On("Write", ctx, mock.Anything, mock.Anything).Return(filevault.SaveResult{}, errors.New("disk full"))

		_, err := service.Upload(ctx, testOwner, pngUpload(64), bytes.NewReader(pngBytes(64)))
		assert.ErrorIs(t, err, filevault.ErrWriteFailed)
		assert.Contains(t, err.Error(), "disk full")
		repo.AssertNotCalled(t, "CreateFile")
		storage.AssertNotCalled(t, "Delete")
	})

	t.Run("error - metadata write fails and bytes are removed", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		var written string
		storage.On("Write", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			written = args.String(1)
		}).Return(filevault.SaveResult{BytesWritten: 64}, nil)
		repo.On("CreateFile", ctx, mock.Anything).Return(filevault.File{}, errors.New("database error"))
		storage.On("Delete", mock.Anything, mock.Anything).Return(nil)

		_, err := service.Upload(ctx, testOwner, pngUpload(64), bytes.NewReader(pngBytes(64)))
		assert.ErrorIs(t, err, filevault.ErrMetadataWriteFailed)
		assert.Contains(t, err.Error(), "database error")

		storage.AssertCalled(t, "Delete", mock.Anything, written)
		storage.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("error - metadata write fails, no orphan remains", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.Anything).Return(filevault.File{}, errors.New("database error"))

		_, err := service.Upload(ctx, testOwner, pngUpload(1024), bytes.NewReader(pngBytes(1024)))
		assert.ErrorIs(t, err, filevault.ErrMetadataWriteFailed)
		assert.Empty(t, storage.paths())
	})

	t.Run("rollback runs even when the request is cancelled", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		storage.On("Write", ctx, mock.Anything, mock.Anything).Return(filevault.SaveResult{BytesWritten: 64}, nil)
		repo.On("CreateFile", ctx, mock.Anything).Run(func(mock.Arguments) {
			cancel()
		}).Return(filevault.File{}, context.Canceled)
		storage.On("Delete", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), mock.Anything).Return(nil)

		_, err := service.Upload(ctx, testOwner, pngUpload(64), bytes.NewReader(pngBytes(64)))
		assert.ErrorIs(t, err, filevault.ErrMetadataWriteFailed)
		assert.ErrorIs(t, err, context.Canceled)
		storage.AssertExpectations(t)
	})

	t.Run("error - metadata write fails and cleanup fails", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		storage.On("Write", ctx, mock.Anything, mock.Anything).Return(filevault.SaveResult{BytesWritten: 64}, nil)
		repo.On("CreateFile", ctx, mock.Anything).Return(filevault.File{}, errors.New("database error"))
		storage.On("Delete", mock.Anything, mock.Anything).Return(errors.New("permission denied"))

		_, err := service.Upload(ctx, testOwner, pngUpload(64), bytes.NewReader(pngBytes(64)))
		assert.ErrorIs(t, err, filevault.ErrMetadataWriteFailed)
		assert.Contains(t, err.Error(), "cleanup failed")
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("error - context cancelled before operation", func(t *testing.T) {
		service, _, storage := NewSpyService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := service.Upload(ctx, testOwner, pngUpload(64), bytes.NewReader(pngBytes(64)))
		assert.ErrorIs(t, err, context.Canceled)
		storage.AssertNotCalled(t, "Write")
	})

	t.Run("concurrent uploads by one user", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()

		repo.On("CreateFile", ctx, mock.Anything).Return(filevault.File{ID: 1}, nil)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = service.Upload(ctx, testOwner, pngUpload(-1), bytes.NewReader(pngBytes(512+i)))
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Len(t, storage.paths(), 2)
		repo.AssertNumberOfCalls(t, "CreateFile", 2)
	})
}

func TestService_GetFile(t *testing.T) {
	t.Run("owned file", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()
		want := filevault.File{ID: 4, OwnerID: 7, Name: "a.png"}

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(want, nil)

		got, err := service.GetFile(ctx, 4, 7)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("someone else's file looks missing", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetFile", ctx, int64(4), int64(8)).Return(filevault.File{}, filevault.ErrNotFound)
		repo.On("GetFile", ctx, int64(999), int64(8)).Return(filevault.File{}, filevault.ErrNotFound)

		_, errOther := service.GetFile(ctx, 4, 8)
		_, errMissing := service.GetFile(ctx, 999, 8)
		assert.ErrorIs(t, errOther, filevault.ErrNotFound)
		assert.ErrorIs(t, errMissing, filevault.ErrNotFound)
	})
}

func TestService_ListFiles(t *testing.T) {
	t.Run("returns owner files", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()
		files := []filevault.File{{ID: 1, OwnerID: 7}, {ID: 2, OwnerID: 7}}

		repo.On("ListFiles", ctx, int64(7)).Return(files, nil)

		got, err := service.ListFiles(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, files, got)
	})

	t.Run("empty listing is not an error", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("ListFiles", ctx, int64(7)).Return([]filevault.File{}, nil)

		got, err := service.ListFiles(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestService_Download(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()
		f := filevault.File{ID: 4, OwnerID: 7, Path: "u7/1-1.png"}

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Open", ctx, "u7/1-1.png").Return(io.NopCloser(strings.NewReader("bytes")), nil)

		got, rc, err := service.Download(ctx, 4, 7)
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, f, got)
		b, _ := io.ReadAll(rc)
		assert.Equal(t, "bytes", string(b))
	})

	t.Run("not owned", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetFile", ctx, int64(4), int64(8)).Return(filevault.File{}, filevault.ErrNotFound)

		_, _, err := service.Download(ctx, 4, 8)
		assert.ErrorIs(t, err, filevault.ErrNotFound)
		assert.NotErrorIs(t, err, filevault.ErrPhysicalMissing)
		storage.AssertNotCalled(t, "Open")
	})

	t.Run("bytes missing is distinct from not found", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()
		f := filevault.File{ID: 4, OwnerID: 7, Path: "u7/1-1.png"}

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Open", ctx, f.Path).Return(nil, filevault.ErrNotFound)

		_, _, err := service.Download(ctx, 4, 7)
		assert.ErrorIs(t, err, filevault.ErrPhysicalMissing)
		assert.ErrorIs(t, err, filevault.ErrInconsistent)
		assert.NotErrorIs(t, err, filevault.ErrNotFound)
	})

	t.Run("open failure", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()
		f := filevault.File{ID: 4, OwnerID: 7, Path: "u7/1-1.png"}

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Open", ctx, f.Path).Return(nil, errors.New("io error"))

		_, _, err := service.Download(ctx, 4, 7)
		assert.ErrorIs(t, err, filevault.ErrStreamFailed)
	})
}

func TestService_DeleteFile(t *testing.T) {
	f := filevault.File{ID: 4, OwnerID: 7, Path: "u7/1-1.png"}

	t.Run("removes bytes then record", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		var order []string
		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Delete", ctx, f.Path).Run(func(mock.Arguments) { order = append(order, "bytes") }).Return(nil)
		repo.On("DeleteFile", ctx, int64(4), int64(7)).Run(func(mock.Arguments) { order = append(order, "record") }).Return(nil)

		err := service.DeleteFile(ctx, 4, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"bytes", "record"}, order)
	})

	t.Run("physical delete failure keeps record", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Delete", ctx, f.Path).Return(errors.New("read-only filesystem"))

		err := service.DeleteFile(ctx, 4, 7)
		assert.ErrorIs(t, err, filevault.ErrPhysicalDeleteFailed)
		repo.AssertNotCalled(t, "DeleteFile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bytes already gone still clears record", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Delete", ctx, f.Path).Return(filevault.ErrNotFound)
		repo.On("DeleteFile", ctx, int64(4), int64(7)).Return(nil)

		require.NoError(t, service.DeleteFile(ctx, 4, 7))
		repo.AssertExpectations(t)
	})

	t.Run("not owned", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetFile", ctx, int64(4), int64(8)).Return(filevault.File{}, filevault.ErrNotFound)

		err := service.DeleteFile(ctx, 4, 8)
		assert.ErrorIs(t, err, filevault.ErrNotFound)
		storage.AssertNotCalled(t, "Delete")
	})

	t.Run("record delete failure", func(t *testing.T) {
		service, repo, storage := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil)
		storage.On("Delete", ctx, f.Path).Return(nil)
		repo.On("DeleteFile", ctx, int64(4), int64(7)).Return(errors.New("connection reset"))

		err := service.DeleteFile(ctx, 4, 7)
		assert.ErrorIs(t, err, filevault.ErrInternal)
	})

	t.Run("second delete is not found", func(t *testing.T) {
		storage := newMemStorage()
		service, repo := newTestService(t, storage)
		ctx := context.Background()
		_, err := storage.Write(ctx, f.Path, bytes.NewReader([]byte("x")))
		require.NoError(t, err)

		repo.On("GetFile", ctx, int64(4), int64(7)).Return(f, nil).Once()
		repo.On("DeleteFile", ctx, int64(4), int64(7)).Return(nil).Once()
		repo.On("GetFile", ctx, int64(4), int64(7)).Return(filevault.File{}, filevault.ErrNotFound)

		require.NoError(t, service.DeleteFile(ctx, 4, 7))
		assert.Empty(t, storage.paths())
		assert.ErrorIs(t, service.DeleteFile(ctx, 4, 7), filevault.ErrNotFound)
	})
}

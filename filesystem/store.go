// Package filesystem provides a local file system storage backend for filevault.
// Writes go to a temp file that is renamed over an exclusively reserved
// destination, so an object either appears complete or not at all and an
// existing object is never overwritten.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/math-dev-24/filevault"
)

const tmpPrefix = ".tmp-"

// ErrExists is returned by Write when an object already exists at the path.
var ErrExists = errors.New("object already exists")

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Open opens a file for reading. Returns filevault.ErrNotFound if the file does not exist.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, filevault.ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, filevault.ErrNotFound
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write stores content at path. Intermediate directories are created as
// needed; concurrent creation of the same directory is not an error.
// Returns ErrExists if path is already taken. On any failure, including a
// content read error or context cancellation, nothing is left at path.
func (s *Store) Write(ctx context.Context, path string, content io.Reader) (filevault.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return filevault.SaveResult{}, ctxErr
	}

	destDir := filepath.Dir(path)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return filevault.SaveResult{}, fmt.Errorf("create directories: %w", err)
		}
	}

	reserved, err := s.root.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return filevault.SaveResult{}, fmt.Errorf("write %s: %w", path, ErrExists)
		}
		return filevault.SaveResult{}, fmt.Errorf("reserve file: %w", err)
	}
	if err := reserved.Close(); err != nil {
		slog.Warn("failed to close reserved file", "path", path, "err", err)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		s.remove(path)
		return filevault.SaveResult{}, fmt.Errorf("open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			s.remove(tmpFile)
			s.remove(path)
		}
	}()

	n, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return filevault.SaveResult{}, fmt.Errorf("copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return filevault.SaveResult{}, fmt.Errorf("sync written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, path); renameErr != nil {
		return filevault.SaveResult{}, fmt.Errorf("rename file: %w", renameErr)
	}

	success = true
	return filevault.SaveResult{BytesWritten: n}, nil
}

func (s *Store) remove(path string) {
	if err := s.root.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove file", "path", path, "err", err)
	}
}

// Delete removes a file. Returns filevault.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return filevault.ErrNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// List recursively walks the root directory and returns every stored file
// with its size and modification time. In-flight temp files are skipped.
func (s *Store) List(ctx context.Context) ([]filevault.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []filevault.StoredObject{}

	err := s.walkDir(ctx, ".", &entries)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, path string, entries *[]filevault.StoredObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), path)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}

		entryPath := filepath.ToSlash(filepath.Join(path, entry.Name()))

		if entry.IsDir() {
			if err := s.walkDir(ctx, entryPath, entries); err != nil {
				return err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, filevault.StoredObject{
			Path:    entryPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return nil
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}

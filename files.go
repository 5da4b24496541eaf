package filevault

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const sniffLen = 3072

// Upload stores content for owner and records its metadata.
//
// The method performs the following steps:
//  1. Rejects owners whose email has no '@' before touching storage
//  2. Checks the declared content type against the allow-list and the
//     declared size against the upload ceiling
//  3. Optionally compares the first bytes of content with the declared type
//  4. Writes the bytes under a generated name in the owner's namespace,
//     failing with ErrTooLarge as soon as the ceiling is crossed
//  5. Creates the metadata record
//  6. On metadata failure, deletes the bytes written in step 4
//
// Error types returned:
//   - ErrUnauthenticated: owner has no id
//   - ErrInvalidEmail, ErrDisallowedType, ErrTooLarge: validation failures
//   - ErrWriteFailed: the bytes could not be stored, no record was created
//   - ErrMetadataWriteFailed: the record could not be created, the bytes were removed
//
// Cleanup uses a background context bounded by the cleanup timeout so that a
// cancelled request still removes what it wrote.
func (s *Service) Upload(ctx context.Context, owner User, obj UploadObject, content io.Reader) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, fmt.Errorf("upload: %w", err)
	}

	if owner.ID <= 0 {
		return File{}, fmt.Errorf("upload: %w", ErrUnauthenticated)
	}

	if err := CheckEmailShape(owner.Email); err != nil {
		return File{}, fmt.Errorf("upload: %w", err)
	}

	mediaType, err := NormalizeContentType(obj.ContentType)
	if err != nil {
		return File{}, fmt.Errorf("upload: %w", err)
	}
	if !isAllowedType(s.allowedTypes, mediaType) {
		return File{}, fmt.Errorf("upload: %w: %s", ErrDisallowedType, mediaType)
	}

	if obj.Size > s.maxUploadSize {
		return File{}, fmt.Errorf("upload: %w: %d bytes exceeds %d", ErrTooLarge, obj.Size, s.maxUploadSize)
	}

	body := content
	if s.sniffContent {
		br := bufio.NewReaderSize(content, sniffLen)
		head, peekErr := br.Peek(sniffLen)
		if peekErr != nil && !errors.Is(peekErr, io.EOF) {
			return File{}, fmt.Errorf("upload: %w: %w", ErrWriteFailed, peekErr)
		}
		if !matchesType(head, mediaType) {
			return File{}, fmt.Errorf("upload: %w: content is not %s", ErrDisallowedType, mediaType)
		}
		body = br
	}

	name := displayName(obj.Name)
	fileName, err := GenerateFileName(s.now(), name)
	if err != nil {
		return File{}, fmt.Errorf("upload: %w: %w", ErrWriteFailed, err)
	}
	storagePath := Namespace(owner.ID) + "/" + fileName
	if !IsValidPath(storagePath) {
		return File{}, fmt.Errorf("upload: %w: invalid storage path %q", ErrWriteFailed, storagePath)
	}

	saved, writeErr := s.storage.Write(ctx, storagePath, &limitedReader{r: body, n: s.maxUploadSize})
	if writeErr != nil {
		if errors.Is(writeErr, ErrTooLarge) {
			return File{}, fmt.Errorf("upload: %w: limit is %d bytes", ErrTooLarge, s.maxUploadSize)
		}
		return File{}, fmt.Errorf("upload %s: %w: %w", storagePath, ErrWriteFailed, writeErr)
	}

	f, createErr := s.repo.CreateFile(ctx, FileEntry{
		OwnerID:  owner.ID,
		Name:     name,
		Path:     storagePath,
		Size:     saved.BytesWritten,
		MimeType: mediaType,
	})
	if createErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, storagePath); delErr != nil {
			s.log.ErrorContext(ctx, "upload rollback failed, orphaned bytes left", "path", storagePath, "error", delErr)
			return File{}, fmt.Errorf("upload %s: %w: %w (cleanup failed: %w)", storagePath, ErrMetadataWriteFailed, createErr, delErr)
		}
		s.log.WarnContext(ctx, "upload rolled back", "path", storagePath, "error", createErr)
		return File{}, fmt.Errorf("upload %s: %w: %w", storagePath, ErrMetadataWriteFailed, createErr)
	}

	s.log.InfoContext(ctx, "file uploaded", "user_id", owner.ID, "file_id", f.ID, "size", f.Size)
	return f, nil
}

// ListFiles returns the owner's files. An owner with no files gets an
// empty slice.
func (s *Service) ListFiles(ctx context.Context, ownerID int64) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	files, err := s.repo.ListFiles(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// GetFile returns ErrNotFound both for unknown ids and for files owned by
// someone else.
func (s *Service) GetFile(ctx context.Context, fileID, ownerID int64) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, fmt.Errorf("get file: %w", err)
	}

	f, err := s.repo.GetFile(ctx, fileID, ownerID)
	if err != nil {
		return File{}, fmt.Errorf("get file %d: %w", fileID, err)
	}
	return f, nil
}

// Download returns the file record and a reader for its bytes. A record
// whose bytes are gone yields ErrPhysicalMissing, not ErrNotFound.
// The caller must close the reader.
func (s *Service) Download(ctx context.Context, fileID, ownerID int64) (File, io.ReadCloser, error) {
	f, err := s.GetFile(ctx, fileID, ownerID)
	if err != nil {
		return File{}, nil, fmt.Errorf("download: %w", err)
	}

	rc, err := s.storage.Open(ctx, f.Path)
	if errors.Is(err, ErrNotFound) {
		s.log.ErrorContext(ctx, "file record without bytes", "file_id", f.ID, "path", f.Path)
		return File{}, nil, fmt.Errorf("download %d: %w", f.ID, ErrPhysicalMissing)
	}
	if err != nil {
		return File{}, nil, fmt.Errorf("download %d: %w: %w", f.ID, ErrStreamFailed, err)
	}
	return f, rc, nil
}

// DeleteFile removes the bytes and then the record. If the bytes cannot be
// removed the record is kept and ErrPhysicalDeleteFailed is returned. Bytes
// that are already gone count as removed.
func (s *Service) DeleteFile(ctx context.Context, fileID, ownerID int64) error {
	f, err := s.GetFile(ctx, fileID, ownerID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	delErr := s.storage.Delete(ctx, f.Path)
	switch {
	case errors.Is(delErr, ErrNotFound):
		s.log.WarnContext(ctx, "deleting file record without bytes", "file_id", f.ID, "path", f.Path)
	case delErr != nil:
		s.log.ErrorContext(ctx, "physical delete failed, record kept", "file_id", f.ID, "path", f.Path, "error", delErr)
		return fmt.Errorf("delete file %d: %w: %w", f.ID, ErrPhysicalDeleteFailed, delErr)
	}

	if err := s.repo.DeleteFile(ctx, f.ID, ownerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete file %d: %w", f.ID, err)
		}
		return fmt.Errorf("delete file %d: %w: %w", f.ID, ErrInternal, err)
	}

	s.log.InfoContext(ctx, "file deleted", "user_id", ownerID, "file_id", f.ID)
	return nil
}

// matchesType reports whether the sniffed type of head, or one of its
// parents, is mediaType. An empty head proves nothing and passes. SVG is
// text whose root element may sit past the sniff window behind a long
// prolog, so declared SVG also passes on any text head.
func matchesType(head []byte, mediaType string) bool {
	if len(head) == 0 {
		return true
	}
	detected := mimetype.Detect(head)
	if hasAncestor(detected, mediaType) {
		return true
	}
	return mediaType == "image/svg+xml" && hasAncestor(detected, "text/plain")
}

func hasAncestor(m *mimetype.MIME, mediaType string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mediaType) {
			return true
		}
	}
	return false
}

func displayName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// limitedReader fails with ErrTooLarge once more than n bytes are read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n + int(l.n), ErrTooLarge
	}
	return n, err
}

package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/math-dev-24/filevault"
)

const (
	// uploadField is the multipart field carrying the file.
	uploadField = "file"
	// multipartOverhead is the body allowance on top of the file size for
	// boundaries, part headers and other fields.
	multipartOverhead = 64 << 10
	downloadChunk     = 32 << 10
)

type filesResponse struct {
	Quantity int              `json:"quantity"`
	Files    []filevault.File `json:"files"`
}

// handleUpload streams the "file" part of a multipart body to the service.
// Parts before it are skipped and nothing after it is read.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		HandleError(w, r, fmt.Errorf("%w: expected a multipart/form-data body: %w", filevault.ErrInvalidInput, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			HandleError(w, r, fmt.Errorf("%w: missing %q field", filevault.ErrInvalidInput, uploadField))
			return
		}
		if err != nil {
			HandleError(w, r, fmt.Errorf("%w: malformed multipart body: %w", filevault.ErrInvalidInput, err))
			return
		}

		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		obj := filevault.UploadObject{
			Name:        part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        -1,
		}

		file, err := h.service.Upload(r.Context(), user, obj, part)
		_ = part.Close()
		if err != nil {
			HandleError(w, r, err)
			return
		}

		_ = WriteJSON(w, http.StatusCreated, file)
		return
	}
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	// user_id is accepted for compatibility but can only name the caller.
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		requested, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			HandleError(w, r, fmt.Errorf("%w: user_id must be an integer", filevault.ErrInvalidInput))
			return
		}
		if requested != user.ID {
			HandleError(w, r, fmt.Errorf("list files for user %d: %w", requested, filevault.ErrNotFound))
			return
		}
	}

	files, err := h.service.ListFiles(r.Context(), user.ID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if len(files) == 0 && h.config.EmptyListNotFound {
		WriteError(w, http.StatusNotFound, "not_found", "No files found")
		return
	}

	_ = WriteJSON(w, http.StatusOK, filesResponse{Quantity: len(files), Files: files})
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fileID, err := pathID(r, "fileId")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	file, err := h.service.GetFile(r.Context(), fileID, user.ID)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, file)
}

// handleDownload reads the first chunk before committing to a 200 so that
// an unreadable object still gets a JSON error. Failures after the headers
// are sent can only be logged.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fileID, err := pathID(r, "fileId")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	file, content, err := h.service.Download(r.Context(), fileID, user.ID)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	defer func() { _ = content.Close() }()

	buf := make([]byte, downloadChunk)
	n, readErr := io.ReadAtLeast(content, buf, 1)
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		HandleError(w, r, fmt.Errorf("download %d: %w: %w", file.ID, filevault.ErrStreamFailed, readErr))
		return
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}); disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	} else {
		w.Header().Set("Content-Disposition", "attachment")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(buf[:n]); err != nil {
		h.log.WarnContext(r.Context(), "download aborted", "file_id", file.ID, "error", err)
		return
	}
	if readErr != nil {
		return
	}

	if _, err := io.CopyBuffer(w, content, buf); err != nil {
		h.log.ErrorContext(r.Context(), "download interrupted", "file_id", file.ID, "error", err)
	}
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fileID, err := pathID(r, "fileId")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.service.DeleteFile(r.Context(), fileID, user.ID); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

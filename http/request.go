package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/math-dev-24/filevault"
)

// maxFormBody bounds JSON and urlencoded request bodies.
const maxFormBody = 1 << 20

// decodeBody fills dst from a JSON or application/x-www-form-urlencoded
// body. Form fields are matched against dst's json tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("%w: malformed content type", filevault.ErrInvalidInput)
		}
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(dst); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", filevault.ErrInvalidInput)
			}
			return fmt.Errorf("%w: malformed json: %w", filevault.ErrInvalidInput, err)
		}
		return nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: malformed form: %w", filevault.ErrInvalidInput, err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("%w: %w", filevault.ErrInvalidInput, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: %w", filevault.ErrInvalidInput, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unsupported content type %s", filevault.ErrInvalidInput, mediaType)
	}
}

// validateRequest runs struct tag validation and reports the first failing
// field as invalid input.
func (h *Handler) validateRequest(r *http.Request, req any) error {
	err := h.validate.StructCtx(r.Context(), req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed on %s", filevault.ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %w", filevault.ErrInvalidInput, err)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", filevault.ErrInvalidInput, name, raw)
	}
	return id, nil
}

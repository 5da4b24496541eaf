package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// APIKeyHeader carries the API key on authenticated requests.
	APIKeyHeader = "X-Api-Key"

	uploadField = "file"
)

// Client performs operations against a filevault server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()

	c := &Client{
		config: &Config{
			Endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
			APIKey:       cfg.APIKey,
			KeyExpiresAt: cfg.KeyExpiresAt,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Register creates an account. No API key is needed.
func (c *Client) Register(ctx context.Context, email, name, password string) (*UserInfo, error) {
	var user UserInfo
	err := c.doJSON(ctx, http.MethodPost, "/user/subscription", false, map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}, http.StatusCreated, &user)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// IssueKey exchanges the user's password for a new 24 hour API key.
func (c *Client) IssueKey(ctx context.Context, userID int64, password string) (*IssuedKey, error) {
	var key IssuedKey
	path := "/user/apiKey/" + strconv.FormatInt(userID, 10)
	err := c.doJSON(ctx, http.MethodPost, path, false, map[string]string{
		"password": password,
	}, http.StatusCreated, &key)
	if err != nil {
		return nil, fmt.Errorf("issue key: %w", err)
	}
	return &key, nil
}

// Whoami returns the caller's account, keys and files.
func (c *Client) Whoami(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.doJSON(ctx, http.MethodGet, "/user", true, nil, http.StatusOK, &account); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &account, nil
}

// Rename changes the caller's display name.
func (c *Client) Rename(ctx context.Context, name string) (*UserInfo, error) {
	var user UserInfo
	err := c.doJSON(ctx, http.MethodPut, "/user", true, map[string]string{"name": name}, http.StatusOK, &user)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	return &user, nil
}

// Upload uploads file(s) to the server.
// For recursive uploads, walks the directory and uploads every regular file;
// per-file failures are reported in the results rather than aborting.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if err := c.config.ValidateWithAuth(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}
	result, err := c.uploadSingle(ctx, opts.LocalPath, opts.ContentType)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		result, uploadErr := c.uploadSingle(ctx, opts.LocalPath, opts.ContentType)
		if uploadErr != nil {
			return nil, uploadErr
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult
	walkErr := filepath.WalkDir(opts.LocalPath, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		result, uploadErr := c.uploadSingle(ctx, path, "")
		if uploadErr != nil {
			result = UploadResult{LocalPath: path, Err: uploadErr}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// uploadSingle streams one file as the "file" part of a multipart body.
func (c *Client) uploadSingle(ctx context.Context, localPath, contentType string) (UploadResult, error) {
	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if contentType == "" {
		contentType, err = detectContentType(file)
		if err != nil {
			return UploadResult{}, err
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     uploadField,
			"filename": filepath.Base(localPath),
		}))
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/file", true, pr)
	if err != nil {
		_ = pr.Close()
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var info FileInfo
	if err := c.do(req, http.StatusCreated, &info); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", localPath, err)
	}

	return UploadResult{LocalPath: localPath, File: info}, nil
}

// List returns every file the caller owns. A server configured to answer an
// empty listing with 404 yields an empty result, not an error.
func (c *Client) List(ctx context.Context) (*ListResult, error) {
	var result ListResult
	err := c.doJSON(ctx, http.MethodGet, "/file", true, nil, http.StatusOK, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "not_found" {
			return &ListResult{Files: []FileInfo{}}, nil
		}
		return nil, fmt.Errorf("list: %w", err)
	}
	if result.Files == nil {
		result.Files = []FileInfo{}
	}
	return &result, nil
}

// Info returns the metadata of one file.
func (c *Client) Info(ctx context.Context, fileID int64) (*FileInfo, error) {
	var info FileInfo
	if err := c.doJSON(ctx, http.MethodGet, filePath(fileID), true, nil, http.StatusOK, &info); err != nil {
		return nil, fmt.Errorf("info %d: %w", fileID, err)
	}
	return &info, nil
}

// Download downloads a file from the server.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.FileID <= 0 {
		return nil, nil, fmt.Errorf("download: invalid file id %d", opts.FileID)
	}

	req, err := c.newRequest(ctx, http.MethodGet, filePath(opts.FileID)+"/download", true, http.NoBody)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("download %d: %w", opts.FileID, parseServerError(resp.StatusCode, body))
	}

	result := &DownloadResult{
		FileID:      opts.FileID,
		Name:        attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = result.Name
		if localPath == "" {
			localPath = "file-" + strconv.FormatInt(opts.FileID, 10)
		}
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		_ = os.Remove(localPath)
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Delete deletes one or more files from the server.
// Continues on error, collecting results for all ids.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.FileIDs) == 0 {
		return nil, ErrNoFileIDs
	}

	results := make([]DeleteResult, 0, len(opts.FileIDs))

	for _, id := range opts.FileIDs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		req, err := c.newRequest(ctx, http.MethodDelete, filePath(id), true, http.NoBody)
		if err == nil {
			err = c.do(req, http.StatusNoContent, nil)
		}
		results = append(results, DeleteResult{FileID: id, Deleted: err == nil, Err: err})
	}

	return results, nil
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// HasUploadErrors returns true if any upload failed.
func HasUploadErrors(results []UploadResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

func (c *Client) newRequest(ctx context.Context, method, path string, auth bool, body io.Reader) (*http.Request, error) {
	if auth {
		if err := c.config.ValidateWithAuth(); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if auth {
		req.Header.Set(APIKeyHeader, c.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, auth bool, in any, want int, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, auth, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, want, out)
}

// do executes req and decodes a JSON body into out when the status is want.
func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		return parseServerError(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func filePath(id int64) string {
	return "/file/" + strconv.FormatInt(id, 10)
}

// detectContentType sniffs the file's leading bytes and rewinds it.
func detectContentType(f *os.File) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	return mt.String(), nil
}

// attachmentName extracts the filename from a Content-Disposition header.
// Only the base name is kept so a hostile server cannot pick the directory.
func attachmentName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	name := filepath.Base(filepath.Clean("/" + params["filename"]))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// parseServerError decodes the server's error envelope. Bodies that are not
// an envelope are kept verbatim as the message.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var env serverError
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		apiErr.Code = env.Error
		apiErr.Message = env.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

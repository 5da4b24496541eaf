package filevault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"mime"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultAllowedTypes is the set of MIME types accepted for upload.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/svg+xml",
	"image/gif",
	"application/x-7z-compressed",
}

const fileNameRandMax = 1_000_000_000

var extRegex = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// IsValidPath validates that a path string meets the requirements for a storage path.
// It checks that the path:
//   - is not empty, ".", or "/"
//   - is relative and does not end with "/"
//   - does not contain "..", "//" or "." segments
//   - does not contain \ ? # ~, control characters or whitespace
//   - is valid UTF-8
func IsValidPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' || strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") || strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// Namespace returns the storage directory for a user. It depends only on the
// durable user id, so two users can never share a directory.
func Namespace(userID int64) string {
	return "u" + strconv.FormatInt(userID, 10)
}

// CheckEmailShape rejects emails that have no '@'.
func CheckEmailShape(email string) error {
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// GenerateFileName builds "<unix-ms>-<random><ext>" for an uploaded file,
// keeping the original extension when it is short and alphanumeric.
func GenerateFileName(now time.Time, originalName string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(fileNameRandMax))
	if err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + n.String() + cleanExt(originalName), nil
}

func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if !extRegex.MatchString(ext) {
		return ""
	}
	return ext
}

// NormalizeContentType lower-cases a MIME type and strips its parameters.
func NormalizeContentType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", fmt.Errorf("%w: empty content type", ErrDisallowedType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrDisallowedType, contentType)
	}
	return mediaType, nil
}

func isAllowedType(allowed []string, mediaType string) bool {
	return slices.Contains(allowed, mediaType)
}

// HashToken returns the hex sha256 digest under which an API key is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

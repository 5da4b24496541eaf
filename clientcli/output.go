package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

const timeLayout = "2006-01-02 15:04:05"

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatInfo(w io.Writer, info *FileInfo) error
	FormatUser(w io.Writer, user *UserInfo) error
	FormatKey(w io.Writer, key *IssuedKey) error
	FormatAccount(w io.Writer, account *Account) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload prints one line per file. Quiet mode prints only the new ids
// so the output can be piped into 'delete'.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for _, r := range results {
		switch {
		case r.Err != nil:
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
		case f.Quiet:
			_, _ = fmt.Fprintln(w, r.File.ID)
		default:
			_, _ = fmt.Fprintf(w, "Uploaded: %s -> #%d (%s, %s)\n", r.LocalPath, r.File.ID, r.File.MimeType, size(r.File.Size))
		}
	}
	return nil
}

func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	target := "-> " + result.LocalPath
	if result.LocalPath == "-" {
		target = result.Name
	}
	_, _ = fmt.Fprintf(w, "Downloaded: #%d %s (%s)\n", result.FileID, target, size(result.Size))
	return nil
}

func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: #%d - %v\n", r.FileID, r.Err)
		} else if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: #%d\n", r.FileID)
		}
	}
	return nil
}

// FormatList formats list results as a table.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Files) == 0 {
		_, _ = fmt.Fprintln(w, "No files found")
		return nil
	}

	if f.Quiet {
		for i := range result.Files {
			_, _ = fmt.Fprintln(w, result.Files[i].ID)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tUPLOADED")
	for i := range result.Files {
		file := &result.Files[i]
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			file.ID,
			truncate(file.Name, 48),
			file.MimeType,
			size(file.Size),
			file.CreatedAt.Local().Format(timeLayout),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "\n%d file(s) (%s total)\n", len(result.Files), size(result.TotalSize()))
	return nil
}

// FormatInfo formats a single file record.
func (f *HumanFormatter) FormatInfo(w io.Writer, info *FileInfo) error {
	_, _ = fmt.Fprintf(w, "ID:       %d\n", info.ID)
	_, _ = fmt.Fprintf(w, "Name:     %s\n", info.Name)
	_, _ = fmt.Fprintf(w, "Type:     %s\n", info.MimeType)
	_, _ = fmt.Fprintf(w, "Size:     %s (%d bytes)\n", size(info.Size), info.Size)
	_, _ = fmt.Fprintf(w, "Stored:   %s\n", info.Path)
	_, _ = fmt.Fprintf(w, "Uploaded: %s\n", info.CreatedAt.Local().Format(timeLayout))
	return nil
}

// FormatUser formats a user account.
func (f *HumanFormatter) FormatUser(w io.Writer, user *UserInfo) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, user.ID)
		return nil
	}
	_, _ = fmt.Fprintf(w, "User #%d: %s <%s>\n", user.ID, user.Name, user.Email)
	return nil
}

// FormatKey prints the raw token. It is shown once and cannot be recovered.
func (f *HumanFormatter) FormatKey(w io.Writer, key *IssuedKey) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, key.Token)
		return nil
	}
	_, _ = fmt.Fprintf(w, "API key:  %s\n", key.Token)
	_, _ = fmt.Fprintf(w, "Expires:  %s (in %s)\n",
		key.ExpiresAt.Local().Format(timeLayout), time.Until(key.ExpiresAt).Round(time.Minute))
	return nil
}

// FormatAccount formats the caller's profile.
func (f *HumanFormatter) FormatAccount(w io.Writer, account *Account) error {
	_, _ = fmt.Fprintf(w, "User #%d: %s <%s>\n", account.User.ID, account.User.Name, account.User.Email)

	live := 0
	now := time.Now()
	for _, k := range account.APIKeys {
		if now.Before(k.ExpiresAt) {
			live++
		}
	}
	_, _ = fmt.Fprintf(w, "API keys: %d (%d live)\n", len(account.APIKeys), live)

	var total int64
	for _, file := range account.Files {
		total += file.Size
	}
	_, _ = fmt.Fprintf(w, "Files:    %d (%s)\n", len(account.Files), size(total))
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload prints an array with either the stored record or the error
// for each local path.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type uploaded struct {
		LocalPath string    `json:"local_path"`
		File      *FileInfo `json:"file,omitempty"`
		Error     string    `json:"error,omitempty"`
	}
	out := make([]uploaded, 0, len(results))
	for _, r := range results {
		u := uploaded{LocalPath: r.LocalPath, Error: errText(r.Err)}
		if r.Err == nil {
			u.File = &r.File
		}
		out = append(out, u)
	}
	return writeJSON(w, out)
}

func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type deleted struct {
		DeleteResult
		Error string `json:"error,omitempty"`
	}
	out := make([]deleted, 0, len(results))
	for _, r := range results {
		out = append(out, deleted{DeleteResult: r, Error: errText(r.Err)})
	}
	return writeJSON(w, map[string][]deleted{"results": out})
}

func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

func (f *JSONFormatter) FormatInfo(w io.Writer, info *FileInfo) error {
	return writeJSON(w, info)
}

func (f *JSONFormatter) FormatUser(w io.Writer, user *UserInfo) error {
	return writeJSON(w, user)
}

func (f *JSONFormatter) FormatKey(w io.Writer, key *IssuedKey) error {
	return writeJSON(w, key)
}

func (f *JSONFormatter) FormatAccount(w io.Writer, account *Account) error {
	return writeJSON(w, account)
}

func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return writeJSON(w, map[string]string{"error": err.Error()})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// size renders a byte count in binary units. Negative means the server sent
// no length.
func size(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	return humanize.IBytes(uint64(n))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  NAME\tENDPOINT\tUSER\tAPI KEY\tKEY EXPIRES")

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}
		user := "-"
		if p.UserID > 0 {
			user = fmt.Sprintf("%d", p.UserID)
		}
		_, _ = fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\n", marker, truncate(p.Name, 20), truncate(p.Endpoint, 50),
			user, maskSecret(p.APIKey, showSecrets), keyExpiry(p, now))
	}

	return tw.Flush()
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	suffix := ""
	if isDefault {
		suffix = " (default)"
	}
	_, _ = fmt.Fprintf(w, "Name:     %s%s\n", profile.Name, suffix)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	if profile.UserID > 0 {
		_, _ = fmt.Fprintf(w, "User ID:  %d\n", profile.UserID)
	}
	_, _ = fmt.Fprintf(w, "API Key:  %s\n", maskSecret(profile.APIKey, showSecrets))
	if profile.APIKey != "" {
		_, _ = fmt.Fprintf(w, "Expires:  %s\n", keyExpiry(&profile, time.Now()))
	}
	return nil
}

// keyExpiry describes when the profile's saved key stops working.
func keyExpiry(p *Profile, now time.Time) string {
	switch {
	case p.APIKey == "":
		return "-"
	case p.KeyExpiresAt.IsZero():
		return "unknown"
	case p.KeyExpired(now):
		return p.KeyExpiresAt.Local().Format(timeLayout) + " (expired)"
	default:
		return p.KeyExpiresAt.Local().Format(timeLayout)
	}
}

type jsonProfile struct {
	Name         string     `json:"name"`
	Endpoint     string     `json:"endpoint"`
	UserID       int64      `json:"user_id,omitempty"`
	APIKey       string     `json:"api_key"`
	KeyExpiresAt *time.Time `json:"key_expires_at,omitempty"`
	KeyExpired   bool       `json:"key_expired,omitempty"`
	Default      bool       `json:"default"`
}

func toJSONProfile(p Profile, isDefault, showSecrets bool) jsonProfile {
	jp := jsonProfile{
		Name:       p.Name,
		Endpoint:   p.Endpoint,
		UserID:     p.UserID,
		APIKey:     maskSecret(p.APIKey, showSecrets),
		KeyExpired: p.KeyExpired(time.Now()),
		Default:    isDefault,
	}
	if !p.KeyExpiresAt.IsZero() {
		jp.KeyExpiresAt = &p.KeyExpiresAt
	}
	return jp
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	out := make([]jsonProfile, len(profiles))
	for i := range profiles {
		out[i] = toJSONProfile(profiles[i], profiles[i].Name == defaultName, showSecrets)
	}
	return writeJSON(w, map[string][]jsonProfile{"profiles": out})
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, toJSONProfile(profile, isDefault, showSecrets))
}

// maskSecret hides an API key unless reveal is set. Long keys keep their
// first and last four characters so two profiles can be told apart.
func maskSecret(key string, reveal bool) string {
	switch {
	case reveal:
		return key
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return strings.Repeat("*", 8)
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}

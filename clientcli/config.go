package clientcli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the default server endpoint URL.
const DefaultEndpoint = "http://localhost:5173"

// Profile is one saved filevault server. Endpoint and Default are managed by
// 'configure'; the key fields are written by 'login --save'.
type Profile struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	// UserID is remembered by login so a fresh key can be issued without
	// looking it up again.
	UserID int64  `yaml:"user_id,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	// KeyExpiresAt is the expiry the server reported for APIKey. Zero when
	// the key was pasted in by hand.
	KeyExpiresAt time.Time `yaml:"key_expires_at,omitempty"`
	Default      bool      `yaml:"default,omitempty"`
}

// StoreKey replaces the saved credentials with a key issued for userID.
func (p *Profile) StoreKey(userID int64, key *IssuedKey) {
	p.UserID = userID
	p.APIKey = key.Token
	p.KeyExpiresAt = key.ExpiresAt
}

// ForgetKey drops the saved key but keeps the user id for the next login.
func (p *Profile) ForgetKey() {
	p.APIKey = ""
	p.KeyExpiresAt = time.Time{}
}

// KeyExpired reports whether the saved key is past its recorded expiry.
func (p *Profile) KeyExpired(now time.Time) bool {
	return p.APIKey != "" && keyExpired(p.KeyExpiresAt, now)
}

func keyExpired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// ConfigFile holds the full config file structure with multiple profiles.
type ConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

func (c *ConfigFile) index(name string) int {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return i
		}
	}
	return -1
}

// GetProfile returns the named profile, or the default one when name is
// empty. The returned pointer aliases the file's entry.
func (c *ConfigFile) GetProfile(name string) (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if name == "" {
		return c.GetDefaultProfile()
	}
	i := c.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &c.Profiles[i], nil
}

// GetDefaultProfile returns the profile marked default, falling back to the
// first one.
func (c *ConfigFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return &c.Profiles[i], nil
		}
	}
	return &c.Profiles[0], nil
}

// PutProfile stores p, replacing the profile with the same name if any.
// The first profile in a file always becomes the default.
func (c *ConfigFile) PutProfile(p Profile) {
	if len(c.Profiles) == 0 {
		p.Default = true
	}
	if i := c.index(p.Name); i >= 0 {
		c.Profiles[i] = p
		return
	}
	c.Profiles = append(c.Profiles, p)
}

// RemoveProfile removes a profile by name.
func (c *ConfigFile) RemoveProfile(name string) error {
	i := c.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
	return nil
}

// SetDefault marks name as the only default profile.
func (c *ConfigFile) SetDefault(name string) error {
	if c.index(name) < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	for i := range c.Profiles {
		c.Profiles[i].Default = c.Profiles[i].Name == name
	}
	return nil
}

// Save writes the file with owner-only permissions since it holds API keys.
func (c *ConfigFile) Save(path string) error {
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfigFile loads the config file from the specified path.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultConfigPath returns ~/.filevault/config.yaml, or "" without a home directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".filevault", "config.yaml")
}

// Config is the connection a Client uses once profile, environment and
// flags have been merged.
type Config struct {
	Endpoint string
	APIKey   string
	// KeyExpiresAt travels with APIKey when it came from a profile.
	KeyExpiresAt time.Time
}

// WithDefaults returns a copy with Endpoint defaulted to DefaultEndpoint.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &cfg
}

// ValidateWithAuth checks that a usable API key is set. A saved key past its
// recorded expiry is refused without a round trip to the server.
func (c *Config) ValidateWithAuth() error {
	if c.APIKey == "" {
		return ErrAPIKeyRequired
	}
	if keyExpired(c.KeyExpiresAt, time.Now()) {
		return fmt.Errorf("%w at %s, run 'filevault-cli login --save'",
			ErrAPIKeyExpired, c.KeyExpiresAt.Local().Format(timeLayout))
	}
	return nil
}

// ConfigFromProfile creates a Config from a Profile.
func ConfigFromProfile(p *Profile) *Config {
	if p == nil {
		return &Config{}
	}
	return &Config{
		Endpoint:     p.Endpoint,
		APIKey:       p.APIKey,
		KeyExpiresAt: p.KeyExpiresAt,
	}
}

// ConfigFromEnv loads config from FILEVAULT_SERVER and FILEVAULT_API_KEY.
func ConfigFromEnv() *Config {
	return &Config{
		Endpoint: os.Getenv("FILEVAULT_SERVER"),
		APIKey:   os.Getenv("FILEVAULT_API_KEY"),
	}
}

// ProfileFromEnv returns FILEVAULT_PROFILE.
func ProfileFromEnv() string {
	return os.Getenv("FILEVAULT_PROFILE")
}

// ConfigPathFromEnv returns FILEVAULT_CONFIG.
func ConfigPathFromEnv() string {
	return os.Getenv("FILEVAULT_CONFIG")
}

// MergeConfig merges configs in order; non-empty values in later configs win.
// An overriding key brings its own expiry, so a fresh key from the
// environment is never judged by a stale profile's date.
func MergeConfig(configs ...*Config) *Config {
	result := &Config{}
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		if cfg.Endpoint != "" {
			result.Endpoint = cfg.Endpoint
		}
		if cfg.APIKey != "" {
			result.APIKey = cfg.APIKey
			result.KeyExpiresAt = cfg.KeyExpiresAt
		}
	}
	return result
}

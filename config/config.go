package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/math-dev-24/filevault"
	"github.com/math-dev-24/filevault/database"
	fvhttp "github.com/math-dev-24/filevault/http"
	"github.com/math-dev-24/filevault/s3store"
)

// EnvPrefix is prepended to every environment variable Load reads.
const EnvPrefix = "FILEVAULT"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for filevault.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Service  ServiceConfig     `mapstructure:"service"`
	Database DatabaseConfig    `mapstructure:"database"`
	Storage  StorageConfig     `mapstructure:"storage"`
	CORS     fvhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" validate:"min=1"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// EmptyListNotFound answers GET /file with 404 when the caller owns no files.
	EmptyListNotFound bool                   `mapstructure:"empty_list_not_found"`
	RateLimit         fvhttp.RateLimitConfig `mapstructure:"rate_limit"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"gt=0"`
	SniffContent   bool          `mapstructure:"sniff_content"`
}

type DatabaseConfig struct {
	database.Config `mapstructure:",squash"`
	AutoMigrate     bool `mapstructure:"auto_migrate"`
}

// StorageConfig selects and configures the byte store.
type StorageConfig struct {
	Type string         `mapstructure:"type" validate:"required,oneof=filesystem s3"`
	Path string         `mapstructure:"path"`
	S3   s3store.Config `mapstructure:"s3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=auto text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"storage-type": "storage.type",
	"storage-path": "storage.path",
	"port":         "server.port",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only explicitly set flags override files and env
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default, otherwise AutomaticEnv never sees it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5173)
	v.SetDefault("server.max_upload_size", filevault.DefaultMaxUploadSize)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.empty_list_not_found", true)
	v.SetDefault("server.rate_limit.requests_per_minute", 10)
	v.SetDefault("server.rate_limit.burst", 5)

	v.SetDefault("service.cleanup_timeout", 10*time.Second)
	v.SetDefault("service.sniff_content", true)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "filevault.db")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "filesystem")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.use_path_style", false)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "X-Api-Key"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition", "Content-Length"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

func storageStructLevel(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(StorageConfig)
	if !ok {
		return
	}
	switch s.Type {
	case "filesystem":
		if s.Path == "" {
			sl.ReportError(s.Path, "Path", "Path", "required_for_filesystem", "")
		}
	case "s3":
		if s.S3.Bucket == "" {
			sl.ReportError(s.S3.Bucket, "S3.Bucket", "Bucket", "required_for_s3", "")
		}
	}
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFiles[0], err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merge config file %s: %w", cf, err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	validate.RegisterStructValidation(storageStructLevel, StorageConfig{})
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

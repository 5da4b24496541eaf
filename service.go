package filevault

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// KeyTTL is how long an issued API key stays valid.
	KeyTTL = 24 * time.Hour
	// DefaultMaxUploadSize is the upload ceiling (10 MiB).
	DefaultMaxUploadSize int64 = 10 << 20
)

type Service struct {
	repo           Repo
	storage        FileStorage
	validate       *validator.Validate
	log            *slog.Logger
	now            func() time.Time
	allowedTypes   []string
	maxUploadSize  int64
	sniffContent   bool
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	MaxUploadSize  int64         // Upload ceiling in bytes (default: 10 MiB)
	AllowedTypes   []string      // Accepted MIME types (default: DefaultAllowedTypes)
	SniffContent   bool          // Reject uploads whose content does not match the declared type
	CleanupTimeout time.Duration // Timeout for rollback deletes (default: 30s)
	Logger         *slog.Logger
	Now            func() time.Time
}

func NewService(repo Repo, storage FileStorage, cfg ServiceConfig) (*Service, error) {
	if repo == nil {
		return nil, errors.New("new service: repo is nil")
	}
	if storage == nil {
		return nil, errors.New("new service: storage is nil")
	}
	if cfg.MaxUploadSize < 0 {
		return nil, fmt.Errorf("new service: invalid max upload size: %d", cfg.MaxUploadSize)
	}

	s := &Service{
		repo:           repo,
		storage:        storage,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		log:            cfg.Logger,
		now:            cfg.Now,
		allowedTypes:   cfg.AllowedTypes,
		maxUploadSize:  cfg.MaxUploadSize,
		sniffContent:   cfg.SniffContent,
		cleanupTimeout: cfg.CleanupTimeout,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.allowedTypes) == 0 {
		s.allowedTypes = DefaultAllowedTypes
	}
	if s.maxUploadSize == 0 {
		s.maxUploadSize = DefaultMaxUploadSize
	}
	if s.cleanupTimeout <= 0 {
		s.cleanupTimeout = 30 * time.Second
	}
	return s, nil
}

// MaxUploadSize reports the configured upload ceiling in bytes.
func (s *Service) MaxUploadSize() int64 {
	return s.maxUploadSize
}

func (s *Service) validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed on '%s'", ErrInvalidInput, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

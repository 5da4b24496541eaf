package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/math-dev-24/filevault"
)

// Service is the application surface the handlers call.
type Service interface {
	Authenticator

	Register(ctx context.Context, reg filevault.Registration) (filevault.User, error)
	IssueKey(ctx context.Context, userID int64, password string) (filevault.IssuedKey, error)
	ListUsers(ctx context.Context) ([]filevault.UserSummary, error)
	Profile(ctx context.Context, user filevault.User) (filevault.Profile, error)
	UpdateName(ctx context.Context, userID int64, name string) (filevault.User, error)

	Upload(ctx context.Context, owner filevault.User, obj filevault.UploadObject, content io.Reader) (filevault.File, error)
	ListFiles(ctx context.Context, ownerID int64) ([]filevault.File, error)
	GetFile(ctx context.Context, fileID, ownerID int64) (filevault.File, error)
	Download(ctx context.Context, fileID, ownerID int64) (filevault.File, io.ReadCloser, error)
	DeleteFile(ctx context.Context, fileID, ownerID int64) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	CORS CORSConfig
	// MaxUploadSize caps a single file. The request body may exceed it by
	// multipartOverhead to leave room for part headers.
	MaxUploadSize int64
	// EmptyListNotFound answers GET /file with 404 when the caller owns no files.
	EmptyListNotFound bool
	RateLimit         RateLimitConfig
	// Health reports backend readiness for GET /healthz. Nil means always ready.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

// Handler provides the HTTP surface of the file vault.
type Handler struct {
	config   HandlerConfig
	service  Service
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = filevault.DefaultMaxUploadSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		config:   cfg,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger,
	}
}

// Router returns the http.Handler serving every route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(writeRouteNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", h.handleHealth)

	limited := RateLimit(h.config.RateLimit)
	auth := AuthMiddleware(h.service)

	r.Route("/user", func(r chi.Router) {
		r.With(limited).Post("/subscription", h.handleRegister)
		r.With(limited).Post("/apiKey/{userId}", h.handleIssueKey)
		r.Get("/all", h.handleListUsers)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.handleProfile)
			r.Put("/", h.handleUpdateName)
		})
	})

	r.Route("/file", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.handleUpload)
		r.Get("/", h.handleListFiles)
		r.Get("/{fileId}", h.handleGetFile)
		r.Get("/{fileId}/download", h.handleDownload)
		r.Delete("/{fileId}", h.handleDeleteFile)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.config.Health != nil {
		if err := h.config.Health(r.Context()); err != nil {
			h.log.ErrorContext(r.Context(), "health check failed", "error", err)
			_ = WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser returns the user AuthMiddleware stored, writing a 401 when
// the route was mounted without it.
func currentUser(w http.ResponseWriter, r *http.Request) (filevault.User, bool) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		HandleError(w, r, errNoUser)
	}
	return u, ok
}

package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/math-dev-24/filevault"
)

// APIKeyHeader carries the raw API key on authenticated requests.
const APIKeyHeader = "X-Api-Key"

// Authenticator resolves a raw API key to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (filevault.User, error)
}

type userKey struct{}

var errNoUser = fmt.Errorf("%w: no user in request context", filevault.ErrUnauthenticated)

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u filevault.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by AuthMiddleware.
func UserFromContext(ctx context.Context) (filevault.User, bool) {
	u, ok := ctx.Value(userKey{}).(filevault.User)
	return u, ok
}

// AuthMiddleware rejects requests without a valid API key with 401 and
// stores the key's owner in the request context otherwise.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				HandleError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(r.Context(), "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

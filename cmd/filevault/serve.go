package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/config"
	fvhttp "github.com/math-dev-24/filevault/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the filevault HTTP server.

The database is migrated on startup when database.auto_migrate is true and
its schema is always validated before the server accepts requests.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5173, "HTTP server port (env: FILEVAULT_SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	handler := fvhttp.NewHandler(&fvhttp.HandlerConfig{
		CORS:              cfg.CORS,
		MaxUploadSize:     b.service.MaxUploadSize(),
		EmptyListNotFound: cfg.Server.EmptyListNotFound,
		RateLimit:         cfg.Server.RateLimit,
		Health:            b.db.Ping,
		Logger:            slog.Default(),
	}, b.service)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"database", cfg.Database.Type,
			"storage", cfg.Storage.Type,
			"max_upload_size", b.service.MaxUploadSize(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

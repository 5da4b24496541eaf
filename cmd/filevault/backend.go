package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/math-dev-24/filevault"
	"github.com/math-dev-24/filevault/config"
	"github.com/math-dev-24/filevault/database"
	"github.com/math-dev-24/filevault/filesystem"
	"github.com/math-dev-24/filevault/s3store"
)

// backend bundles everything a command needs to talk to the stores.
type backend struct {
	db      database.Database
	service *filevault.Service
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackend connects the metadata database, opens the byte store and
// builds the service. migrate applies pending migrations before the schema
// is validated.
func openBackend(ctx context.Context, cfg *config.Config, migrate bool) (*backend, error) {
	db, err := database.Open(ctx, cfg.Database.Config, migrate)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	b := &backend{db: db, closers: []func() error{db.Close}}
	slog.Debug("connected to database", "type", cfg.Database.Type)

	storage, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if closeStorage != nil {
		b.closers = append(b.closers, closeStorage)
	}

	service, err := filevault.NewService(db.GetRepo(), storage, filevault.ServiceConfig{
		MaxUploadSize:  cfg.Server.MaxUploadSize,
		SniffContent:   cfg.Service.SniffContent,
		CleanupTimeout: cfg.Service.CleanupTimeout,
		Logger:         slog.Default(),
	})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}
	b.service = service

	return b, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (filevault.FileStorage, func() error, error) {
	switch cfg.Type {
	case "filesystem":
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}
		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}
		slog.Debug("using filesystem storage", "path", cfg.Path)
		return filesystem.NewFileStorage(root), root.Close, nil

	case "s3":
		store, err := s3store.New(ctx, cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("open s3 storage: %w", err)
		}
		slog.Debug("using s3 storage", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
	}
}

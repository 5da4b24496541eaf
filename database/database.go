package database

import (
	"context"
	"fmt"

	"github.com/math-dev-24/filevault"
	"github.com/math-dev-24/filevault/database/postgres"
	"github.com/math-dev-24/filevault/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
}

// Database is an open metadata backend.
type Database interface {
	Ping(ctx context.Context) error
	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error
	// Validate checks the live schema against what the repository expects.
	Validate(ctx context.Context) error
	GetRepo() filevault.Repo
	Close() error
}

// Connect opens the backend named by cfg.Type. It does not migrate or
// validate; callers decide when to do either.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

// Open connects, pings, optionally migrates and then validates the schema.
// On any failure the connection is closed before returning.
func Open(ctx context.Context, cfg Config, migrate bool) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}

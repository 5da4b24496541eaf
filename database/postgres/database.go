// Package postgres implements filevault.Repo on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/math-dev-24/filevault"
)

// Database is a PostgreSQL metadata backend.
type Database struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool for dsn. Connections are opened lazily;
// call Ping to fail fast on a bad DSN.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Database{pool: pool}, nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs the embedded migrations.
func (d *Database) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.pool)
}

// Validate checks that the database schema matches expected structure.
func (d *Database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool)
}

// GetRepo returns the repository backed by this pool.
func (d *Database) GetRepo() filevault.Repo {
	return NewRepo(d.pool)
}

// Close closes the connection pool.
func (d *Database) Close() error {
	d.pool.Close()
	return nil
}

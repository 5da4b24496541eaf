// Package sqlite implements filevault.Repo on SQLite through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/math-dev-24/filevault"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database is a SQLite metadata backend.
type Database struct {
	db *sql.DB
}

// Connect opens the SQLite database at dsn and enables foreign keys.
//
// SQLite allows a single writer, and every connection to ":memory:" opens a
// different database, so the pool is capped at one connection.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: enable foreign keys: %w", err)
	}

	return &Database{db: db}, nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs the embedded migrations.
func (d *Database) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.db)
}

// Validate checks that the database schema matches expected structure.
func (d *Database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db)
}

// GetRepo returns the repository backed by this database.
func (d *Database) GetRepo() filevault.Repo {
	return NewRepo(d.db)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

package postgres_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/math-dev-24/filevault/database/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	sharedOnce  sync.Once
	sharedDSN   string
	sharedAdmin *pgxpool.Pool
	sharedErr   error
)

// sharedContainer starts one postgres container for the whole package.
// It is never terminated explicitly; testcontainers' reaper removes it.
func sharedContainer(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres tests need docker; skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedOnce.Do(func() {
		ctx := context.Background()

		container, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("filevault"),
			pgcontainer.WithUsername("filevault"),
			pgcontainer.WithPassword("filevault"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			sharedErr = err
			return
		}

		sharedDSN, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedErr = err
			return
		}

		sharedAdmin, sharedErr = pgxpool.New(ctx, sharedDSN)
	})

	require.NoError(t, sharedErr, "start postgres container")
	return sharedDSN, sharedAdmin
}

func randomName(t *testing.T) string {
	t.Helper()
	b := make([]byte, 6)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return "test_" + hex.EncodeToString(b)
}

// newTestDSN creates an empty database in the shared container and returns
// its DSN. The database is dropped when the test ends.
func newTestDSN(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dsn, admin := sharedContainer(t)

	name := randomName(t)
	_, err := admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	require.NoError(t, err, "create database")

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	u.Path = "/" + name

	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)")
	})

	return u.String()
}

func newTestDatabase(t *testing.T) *postgres.Database {
	t.Helper()
	ctx := context.Background()

	db, err := postgres.Connect(ctx, newTestDSN(t))
	require.NoError(t, err, "connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "migrate")
	return db
}

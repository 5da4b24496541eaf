// Package database connects filevault to its metadata backend.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for multi-instance deployments
//   - SQLite: modernc.org/sqlite, for development and single-node deployments
//
// Both backends ship their schema as embedded goose migrations and can check
// a live schema against the columns the repository reads.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Type: "sqlite",
//	    DSN:  "filevault.db",
//	}, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	svc, err := filevault.NewService(db.GetRepo(), storage, filevault.ServiceConfig{})
//
// Open pings the backend, runs migrations when asked to and validates the
// schema. Connect only opens the connection.
package database

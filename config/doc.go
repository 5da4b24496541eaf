// Package config provides configuration loading and validation for filevault.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (FILEVAULT_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with the FILEVAULT_ prefix:
//   - server.port → FILEVAULT_SERVER_PORT
//   - database.dsn → FILEVAULT_DATABASE_DSN
//   - storage.s3.bucket → FILEVAULT_STORAGE_S3_BUCKET
//
// Durations accept Go syntax ("30s", "5m") and lists are comma separated.
package config

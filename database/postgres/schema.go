package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type columnInfo struct {
	name       string
	dataType   string
	isNullable bool
}

type tableValidation struct {
	tableName      string
	expectedSchema map[string]columnInfo
}

const timestamptz = "timestamp with time zone"

var tableValidations = []tableValidation{
	{
		tableName: "users",
		expectedSchema: map[string]columnInfo{
			"id":            {"id", "bigint", false},
			"email":         {"email", "text", false},
			"name":          {"name", "text", false},
			"password_hash": {"password_hash", "text", false},
			"created_at":    {"created_at", timestamptz, false},
			"updated_at":    {"updated_at", timestamptz, false},
		},
	},
	{
		tableName: "api_keys",
		expectedSchema: map[string]columnInfo{
			"id":         {"id", "bigint", false},
			"user_id":    {"user_id", "bigint", false},
			"prefix":     {"prefix", "text", false},
			"token_hash": {"token_hash", "text", false},
			"expires_at": {"expires_at", timestamptz, false},
			"created_at": {"created_at", timestamptz, false},
		},
	},
	{
		tableName: "files",
		expectedSchema: map[string]columnInfo{
			"id":         {"id", "bigint", false},
			"owner_id":   {"owner_id", "bigint", false},
			"name":       {"name", "text", false},
			"path":       {"path", "text", false},
			"size":       {"size", "bigint", false},
			"mime_type":  {"mime_type", "text", false},
			"created_at": {"created_at", timestamptz, false},
			"updated_at": {"updated_at", timestamptz, false},
		},
	},
}

// ValidateSchema checks that every table the repository relies on exists
// with the expected columns.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, validation := range tableValidations {
		if err := validateTableSchema(ctx, pool, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}
	return nil
}

func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, tableName string, expectedSchema map[string]columnInfo) error {
	exists, err := tableExists(ctx, pool, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer rows.Close()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: nullable == "YES",
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	var missingColumns []string
	var mismatchedColumns []string

	for colName, expected := range expectedSchema {
		actual, ok := actualColumns[colName]
		if !ok {
			missingColumns = append(missingColumns, colName)
			continue
		}

		if actual.dataType != expected.dataType {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, actual.dataType))
		}

		if actual.isNullable != expected.isNullable {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, actual.isNullable))
		}
	}

	if len(missingColumns) == 0 && len(mismatchedColumns) == 0 {
		return nil
	}

	var errMsg strings.Builder
	fmt.Fprintf(&errMsg, "table %s schema validation failed:\n", tableName)
	if len(missingColumns) > 0 {
		fmt.Fprintf(&errMsg, "  missing columns: %s\n", strings.Join(missingColumns, ", "))
	}
	if len(mismatchedColumns) > 0 {
		fmt.Fprintf(&errMsg, "  mismatched columns:\n")
		for _, msg := range mismatchedColumns {
			fmt.Fprintf(&errMsg, "    - %s\n", msg)
		}
	}
	return errors.New(errMsg.String())
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = $1
		)
	`
	if err := pool.QueryRow(ctx, query, tableName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

var tableValidations = []tableValidation{
	{
		tableName: "users",
		expectedSchema: map[string]columnInfo{
			"id":            {"id", "integer", true},
			"email":         {"email", "text", false},
			"name":          {"name", "text", false},
			"password_hash": {"password_hash", "text", false},
			"created_at":    {"created_at", "text", false},
			"updated_at":    {"updated_at", "text", false},
		},
	},
	{
		tableName: "api_keys",
		expectedSchema: map[string]columnInfo{
			"id":         {"id", "integer", true},
			"user_id":    {"user_id", "integer", false},
			"prefix":     {"prefix", "text", false},
			"token_hash": {"token_hash", "text", false},
			"expires_at": {"expires_at", "text", false},
			"created_at": {"created_at", "text", false},
		},
	},
	{
		tableName: "files",
		expectedSchema: map[string]columnInfo{
			"id":         {"id", "integer", true},
			"owner_id":   {"owner_id", "integer", false},
			"name":       {"name", "text", false},
			"path":       {"path", "text", false},
			"size":       {"size", "integer", false},
			"mime_type":  {"mime_type", "text", false},
			"created_at": {"created_at", "text", false},
			"updated_at": {"updated_at", "text", false},
		},
	},
}

// ValidateSchema checks that every table the repository relies on exists
// with the expected columns.
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	for _, validation := range tableValidations {
		if err := validateTableSchema(ctx, db, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}
	return nil
}

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expectedSchema map[string]columnInfo) error {
	exists, err := tableExists(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	// table names come from tableValidations, never from input
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, tableName))
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var dfltValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: notNull == 0,
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

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	err := db.QueryRowContext(ctx, query, tableName).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}

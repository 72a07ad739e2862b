// This file implements JSONL loading for startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// jsonlTableMapping maps JSONL filenames to their SQLite tables and column
// lists. Parents load before the tables that reference them.
// Missing fields take the value from defaults, so older files still load.
var jsonlTableMapping = []struct {
	file     string
	table    string
	columns  []string
	defaults map[string]any
}{
	{parametersJSONL, "parameters", []string{
		"slug", "name", "value_type", "value", "description",
		"is_global", "enable_cypher", "enable_history", "created_at", "updated_at",
	}, map[string]any{
		"value_type": "STR", "value": "", "description": "",
		"is_global": 0, "enable_cypher": 0, "enable_history": 0,
		"created_at": "", "updated_at": "",
	}},
	{validatorsJSONL, "parameter_validators", []string{
		"validator_id", "slug", "ordinal", "validator_type", "validator_params",
	}, map[string]any{"ordinal": 0, "validator_params": "{}"}},
	{historyJSONL, "parameter_history", []string{
		"history_id", "slug", "previous_value", "created_at",
	}, map[string]any{"created_at": ""}},
}

// loadAllJSONL reads each JSONL file from dataDir and inserts records into
// the corresponding SQLite tables. Loading is transactional: all succeed or
// the database remains empty. Malformed lines are skipped and unknown fields
// are ignored, so files written by newer versions still load.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys for load: %w", err)
	}

	for _, mapping := range jsonlTableMapping {
		path := filepath.Join(dataDir, mapping.file)
		records, err := readJSONL(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}

		if len(records) == 0 {
			continue
		}

		if err := insertRecords(tx, mapping.table, mapping.columns, mapping.defaults, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}

	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("re-enabling foreign keys: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}

	return nil
}

// insertRecords inserts parsed JSONL records into a SQLite table. Only
// columns listed in the mapping are extracted. Records that violate
// constraints are skipped.
func insertRecords(tx *sql.Tx, table string, columns []string, defaults map[string]any, records []json.RawMessage) error {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			val, ok := obj[col]
			if !ok || val == nil {
				args[i] = defaults[col]
				continue
			}
			// Validator params may have been written as a JSON object.
			switch v := val.(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					args[i] = nil
					continue
				}
				args[i] = string(b)
			case bool:
				if v {
					args[i] = 1
				} else {
					args[i] = 0
				}
			default:
				args[i] = val
			}
		}

		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}

	return nil
}

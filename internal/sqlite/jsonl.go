// This file provides JSONL read/write helpers with atomic persistence.
package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// JSONL file names in DataDir.
const (
	parametersJSONL = "parameters.jsonl"
	validatorsJSONL = "parameter_validators.jsonl"
	historyJSONL    = "parameter_history.jsonl"
)

var jsonlFiles = []string{parametersJSONL, validatorsJSONL, historyJSONL}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// initJSONLFiles creates empty JSONL files that do not exist yet.
func initJSONLFiles(dataDir string) error {
	for _, name := range jsonlFiles {
		path := filepath.Join(dataDir, name)
		_, err := os.Stat(path)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
	}
	return nil
}

// tableFiles pairs each table with the JSONL file it is persisted to, and
// the column order rows are dumped in.
var tableFiles = map[string]struct {
	file    string
	orderBy string
}{
	"parameters":           {parametersJSONL, "slug"},
	"parameter_validators": {validatorsJSONL, "slug, ordinal"},
	"parameter_history":    {historyJSONL, "slug, created_at, history_id"},
}

// persistTables dumps each named table to its JSONL file.
func (b *Backend) persistTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if err := b.persistTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// persistTable reads every row of table and rewrites its JSONL file. Column
// names become JSON keys.
func (b *Backend) persistTable(ctx context.Context, table string) error {
	tf, ok := tableFiles[table]
	if !ok {
		return fmt.Errorf("no JSONL file for table %s", table)
	}
	rows, err := b.db.QueryContext(ctx, "SELECT * FROM "+table+" ORDER BY "+tf.orderBy)
	if err != nil {
		return fmt.Errorf("querying %s for JSONL: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting columns for %s: %w", table, err)
	}

	var records []json.RawMessage
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning %s row: %w", table, err)
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			if raw, isBytes := vals[i].([]byte); isBytes {
				rec[col] = string(raw)
				continue
			}
			rec[col] = vals[i]
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling %s row: %w", table, err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s for JSONL: %w", table, err)
	}

	return writeJSONL(filepath.Join(b.dataDir, tf.file), records)
}

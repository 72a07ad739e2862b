package rotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLedgerFile is the backup ledger used when none is configured.
const DefaultLedgerFile = "params_backup_key.json"

// LedgerEntry records a key that was active when a rotation was prepared.
type LedgerEntry struct {
	Timestamp       string `json:"timestamp"`
	Key             string `json:"key"`
	ParametersCount int    `json:"parameters_count"`
}

// Ledger is the backup file: every key retired by a rotation, oldest first.
type Ledger struct {
	Keys []LedgerEntry `json:"keys"`
}

// ReadLedger reads the ledger at path. A missing file is an empty ledger.
func ReadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Ledger{Keys: []LedgerEntry{}}, nil
		}
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	if l.Keys == nil {
		l.Keys = []LedgerEntry{}
	}
	return &l, nil
}

// AppendLedger adds entry to the ledger at path. Earlier entries are kept.
// Parent directories are created and the file is replaced atomically,
// readable by the owner only.
func AppendLedger(path string, entry LedgerEntry) error {
	l, err := ReadLedger(path)
	if err != nil {
		return err
	}
	l.Keys = append(l.Keys, entry)

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting ledger permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

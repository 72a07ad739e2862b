package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestEnv provides an isolated environment with its own config and data
// directory. Commands run in process.
type TestEnv struct {
	t       *testing.T
	TempDir string
	Config  string
	DataDir string
}

// NewTestEnv creates a new isolated test environment with a config.yaml
// holding key as the encryption key. An empty key leaves it unset.
func NewTestEnv(t *testing.T, key string) *TestEnv {
	t.Helper()
	for _, v := range []string{
		"PARAMS_ENCRYPTION_KEY", "PARAMS_KEY_SOURCE", "PARAMS_DATA_DIR",
		"PARAMS_CONFIG_DIR", "PARAMS_METRICS_TEXTFILE", "PARAMS_ENCRYPTION_KEY_BACKUP_FILE",
		"PARAMS_LOG_LEVEL",
	} {
		t.Setenv(v, "")
	}

	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	configDir := filepath.Join(tempDir, "config")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	content := "backend: sqlite\nkey_source: config\nlog_level: error\n"
	if key != "" {
		content += "encryption_key: " + key + "\n"
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &TestEnv{t: t, TempDir: tempDir, Config: configDir, DataDir: dataDir}
}

// CmdResult holds the result of a command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Run executes the params CLI with the given arguments.
func (e *TestEnv) Run(args ...string) CmdResult {
	e.t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config-dir", e.Config, "--data-dir", e.DataDir}, args...))

	err := root.ExecuteContext(context.Background())
	code := exitSuccess
	if err != nil {
		code = exitCode(err)
	}
	return CmdResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code, Err: err}
}

// MustRun executes the CLI and fails the test if it returns non-zero.
func (e *TestEnv) MustRun(args ...string) CmdResult {
	e.t.Helper()
	result := e.Run(args...)
	if result.ExitCode != exitSuccess {
		e.t.Fatalf("params %v failed with exit code %d: %v\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Err, result.Stdout, result.Stderr)
	}
	return result
}

// ParseJSON parses JSON output into the target type.
func ParseJSON[T any](t *testing.T, jsonStr string) T {
	t.Helper()
	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", jsonStr, err)
	}
	return result
}

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/exchange"
	"github.com/mesh-intelligence/params/internal/rotation"
	"github.com/mesh-intelligence/params/pkg/types"
)

func newKey(t *testing.T) string {
	t.Helper()
	key, err := cryptobox.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestVersion(t *testing.T) {
	env := NewTestEnv(t, "")
	result := env.MustRun("version")
	assert.Contains(t, result.Stdout, "params v"+Version)
	assert.Contains(t, result.Stdout, modulePath)
}

func TestInit(t *testing.T) {
	env := NewTestEnv(t, "")
	require.NoError(t, os.Remove(filepath.Join(env.Config, "config.yaml")))

	result := env.MustRun("init")
	assert.Contains(t, result.Stdout, env.DataDir)

	_, err := os.Stat(filepath.Join(env.DataDir, "parameters.jsonl"))
	assert.NoError(t, err, "store files created")

	data, err := os.ReadFile(filepath.Join(env.Config, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: sqlite")
	assert.Contains(t, string(data), "key_source: config")
}

func TestInitGenerateKey(t *testing.T) {
	env := NewTestEnv(t, "")
	result := env.MustRun("init", "--generate-key")
	assert.Contains(t, result.Stdout, "Encryption key generated")

	data, err := os.ReadFile(filepath.Join(env.Config, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "encryption_key:")

	result = env.MustRun("init", "--generate-key")
	assert.Contains(t, result.Stdout, "already configured")

	env.MustRun("create", "Token", "abc", "--cypher")
	assert.Equal(t, "abc\n", env.MustRun("get", "TOKEN").Stdout)
}

func TestParameterLifecycle(t *testing.T) {
	env := NewTestEnv(t, newKey(t))

	result := env.MustRun("create", "Max Retries", "3", "--type", "INT", "--history",
		"--validators", `[{"validator_type":"MinValueValidator","validator_params":{"limit_value":1}}]`)
	assert.Contains(t, result.Stdout, "Created MAX_RETRIES (INT)")

	assert.Equal(t, "3\n", env.MustRun("get", "MAX_RETRIES").Stdout)

	env.MustRun("set", "MAX_RETRIES", "5")
	view := ParseJSON[paramView](t, env.MustRun("--json", "get", "MAX_RETRIES").Stdout)
	require.NotNil(t, view.Value)
	assert.Equal(t, "5", *view.Value)
	assert.Equal(t, types.ValueTypeInt, view.ValueType)
	require.Len(t, view.Validators, 1)
	assert.Equal(t, "MinValueValidator", view.Validators[0].ValidatorType)

	history := ParseJSON[[]historyView](t, env.MustRun("--json", "history", "MAX_RETRIES").Stdout)
	require.Len(t, history, 1)
	assert.Equal(t, "3", history[0].PreviousValue)

	env.MustRun("update", "MAX_RETRIES", "--description", "retry limit", "--global")
	globals := ParseJSON[map[string]any](t, env.MustRun("globals").Stdout)
	assert.Equal(t, float64(5), globals["MAX_RETRIES"])

	list := env.MustRun("list", "--global").Stdout
	assert.Contains(t, list, "MAX_RETRIES")
	assert.Contains(t, list, "global,history")

	env.MustRun("delete", "MAX_RETRIES")
	result = env.Run("get", "MAX_RETRIES")
	assert.Equal(t, exitUserError, result.ExitCode)
	assert.ErrorIs(t, result.Err, types.ErrNotFound)
}

func TestUserErrors(t *testing.T) {
	env := NewTestEnv(t, newKey(t))
	env.MustRun("create", "Port", "8080", "--type", "INT",
		"--validators", `[{"validator_type":"MaxValueValidator","validator_params":{"limit_value":65535}}]`)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"validation", []string{"set", "PORT", "70000"}, types.ErrValidation},
		{"conversion", []string{"set", "PORT", "http"}, types.ErrConversion},
		{"duplicate", []string{"create", "port"}, types.ErrDuplicateSlug},
		{"bad type", []string{"create", "X", "--type", "NOPE"}, types.ErrInvalidValueType},
		{"unknown validator", []string{"validators", "PORT", "--set", `[{"validator_type":"nope"}]`}, types.ErrUnknownValidator},
		{"missing", []string{"delete", "NOPE"}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := env.Run(tt.args...)
			assert.Equal(t, exitUserError, result.ExitCode)
			assert.ErrorIs(t, result.Err, tt.wantErr)
		})
	}

	assert.Equal(t, "8080\n", env.MustRun("get", "PORT").Stdout)
}

func TestMissingKey(t *testing.T) {
	env := NewTestEnv(t, "")
	result := env.Run("create", "Secret", "x", "--cypher")
	assert.Equal(t, exitUserError, result.ExitCode)
	assert.ErrorIs(t, result.Err, types.ErrMissingKey)
}

func TestEnvOverridesConfig(t *testing.T) {
	env := NewTestEnv(t, "")
	t.Setenv("PARAMS_ENCRYPTION_KEY", newKey(t))

	env.MustRun("create", "Secret", "x", "--cypher")
	assert.Equal(t, "x\n", env.MustRun("get", "SECRET").Stdout)
}

func TestValidatorsCommand(t *testing.T) {
	env := NewTestEnv(t, newKey(t))

	names := ParseJSON[[]string](t, env.MustRun("--json", "validators").Stdout)
	assert.Contains(t, names, "MinValueValidator")
	assert.Contains(t, names, "validate_even_number")

	env.MustRun("create", "Even", "4", "--type", "INT")
	env.MustRun("validators", "EVEN", "--set", `[{"validator_type":"validate_even_number"}]`)
	set := ParseJSON[[]exchange.ValidatorRecord](t, env.MustRun("validators", "EVEN").Stdout)
	require.Len(t, set, 1)
	assert.Equal(t, "validate_even_number", set[0].ValidatorType)

	result := env.Run("set", "EVEN", "3")
	assert.ErrorIs(t, result.Err, types.ErrValidation)

	env.MustRun("validators", "EVEN", "--set", `[]`)
	env.MustRun("set", "EVEN", "3")
}

func TestDumpAndLoad(t *testing.T) {
	src := NewTestEnv(t, newKey(t))
	src.MustRun("create", "Api Token", "s3cret", "--cypher")
	src.MustRun("create", "Ratio", "0.5", "--type", "FLT", "--global")

	file := filepath.Join(src.TempDir, "out", "params.json")
	result := src.MustRun("dump", file, "--indent", "2")
	assert.Contains(t, result.Stdout, "Exported 2 parameters")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value": "s3cret"`)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"))

	dst := NewTestEnv(t, newKey(t))
	result = dst.MustRun("load", "--file", file)
	assert.Contains(t, result.Stdout, "created 2, updated 0, skipped 0, failed 0")
	assert.Equal(t, "s3cret\n", dst.MustRun("get", "API_TOKEN").Stdout)

	result = dst.MustRun("load", "--json", `[{"name":"Ratio","value":"0.9"}]`, "--no-update")
	assert.Contains(t, result.Stdout, "skipped 1")
	assert.Equal(t, "0.5\n", dst.MustRun("get", "RATIO").Stdout)

	result = dst.MustRun("load", "--json", `[{"name":"Ratio","value":"0.9"}]`)
	assert.Contains(t, result.Stdout, "updated 1")
	assert.Equal(t, "0.9\n", dst.MustRun("get", "RATIO").Stdout)
}

func TestLoadFailures(t *testing.T) {
	env := NewTestEnv(t, newKey(t))

	result := env.Run("load", "--json", `[{"name":"Good","value":"ok"},{"name":"Bad","value":"x","value_type":"INT"}]`)
	assert.Equal(t, exitUserError, result.ExitCode)
	assert.Contains(t, result.Stderr, "record 1 (BAD)")
	assert.Contains(t, result.Stdout, "created 1")
	assert.Equal(t, "ok\n", env.MustRun("get", "GOOD").Stdout)

	result = env.Run("load", "--json", `{"name":"x"}`)
	assert.Equal(t, exitUserError, result.ExitCode)
	assert.ErrorIs(t, result.Err, exchange.ErrNotArray)

	result = env.Run("load")
	assert.Equal(t, exitUserError, result.ExitCode)

	result = env.Run("load", "--file", filepath.Join(env.TempDir, "missing.json"))
	assert.Equal(t, exitUserError, result.ExitCode)
}

func TestRotateKey(t *testing.T) {
	env := NewTestEnv(t, newKey(t))
	env.MustRun("create", "Secret One", "alpha", "--cypher")
	env.MustRun("create", "Secret Two", "beta", "--cypher")
	env.MustRun("create", "Plain", "gamma")

	result := env.MustRun("rotate-key", "--activate")
	assert.Contains(t, result.Stdout, "2 encrypted parameters")
	assert.NotContains(t, result.Stdout, "New key:")

	ledger, err := rotation.ReadLedger(filepath.Join(env.Config, rotation.DefaultLedgerFile))
	require.NoError(t, err)
	require.Len(t, ledger.Keys, 1)
	oldKey := ledger.Keys[0].Key

	// New key is active, values are still sealed under the old one.
	result = env.Run("get", "SECRET_ONE")
	assert.ErrorIs(t, result.Err, types.ErrDecryption)

	result = env.MustRun("rotate-key", "--old-key", oldKey)
	assert.Contains(t, result.Stdout, "Re-encrypted 2 parameters")
	assert.Equal(t, "alpha\n", env.MustRun("get", "SECRET_ONE").Stdout)
	assert.Equal(t, "beta\n", env.MustRun("get", "SECRET_TWO").Stdout)

	result = env.Run("rotate-key", "--old-key", oldKey)
	assert.Equal(t, exitUserError, result.ExitCode, "old key no longer opens the values")
	assert.Contains(t, result.Stderr, "signal=rotation.failed")
	assert.Contains(t, result.Stderr, "phase=apply")
}

func TestRotateKeyPrintsNewKey(t *testing.T) {
	env := NewTestEnv(t, newKey(t))
	backup := filepath.Join(env.TempDir, "backups", "keys.json")
	t.Setenv("PARAMS_LOG_LEVEL", "info")

	result := env.MustRun("rotate-key", "--backup-file", backup)
	assert.Contains(t, result.Stdout, "New key: ")
	assert.Contains(t, result.Stderr, "signal=rotation.prepared")
	assert.Contains(t, result.Stderr, "ledger="+backup)

	_, err := os.Stat(backup)
	assert.NoError(t, err)

	result = env.Run("rotate-key", "--old-key", "not-a-key")
	assert.ErrorIs(t, result.Err, cryptobox.ErrInvalidKey)
}

func TestKeyringSource(t *testing.T) {
	keyring.MockInit()
	env := NewTestEnv(t, "")
	t.Setenv("PARAMS_KEY_SOURCE", "keyring")
	t.Setenv("PARAMS_KEYRING_SERVICE", "params-test")

	result := env.Run("create", "Secret", "x", "--cypher")
	assert.ErrorIs(t, result.Err, types.ErrMissingKey)

	env.MustRun("init", "--generate-key")
	stored, err := keyring.Get("params-test", "encryption_key")
	require.NoError(t, err)
	_, err = cryptobox.ParseKey(stored)
	require.NoError(t, err)

	env.MustRun("create", "Secret", "x", "--cypher")
	assert.Equal(t, "x\n", env.MustRun("get", "SECRET").Stdout)
}

func TestBadKeySource(t *testing.T) {
	env := NewTestEnv(t, "")
	t.Setenv("PARAMS_KEY_SOURCE", "vault")
	result := env.Run("list")
	assert.Equal(t, exitUserError, result.ExitCode)
}

func TestMetricsTextfile(t *testing.T) {
	env := NewTestEnv(t, newKey(t))
	path := filepath.Join(env.TempDir, "metrics", "params.prom")
	t.Setenv("PARAMS_METRICS_TEXTFILE", path)

	env.MustRun("create", "Name", "x")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `params_writes_total{operation="create",outcome="ok"} 1`)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"explicit", &ExitError{Code: exitSysError, Err: errors.New("x")}, exitSysError},
		{"not found", types.WithSlug(types.ErrNotFound, "X"), exitUserError},
		{"same key", rotation.ErrSameKey, exitUserError},
		{"unknown", errors.New("disk on fire"), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

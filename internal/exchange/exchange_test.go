package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/engine"
	"github.com/mesh-intelligence/params/internal/metrics"
	"github.com/mesh-intelligence/params/internal/sqlite"
	"github.com/mesh-intelligence/params/internal/validators"
	"github.com/mesh-intelligence/params/pkg/types"
)

func newEngine(t *testing.T, m *metrics.Metrics) *engine.Engine {
	t.Helper()
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { store.Detach() })

	key, err := cryptobox.GenerateKey()
	require.NoError(t, err)
	box, err := cryptobox.NewBox("")
	require.NoError(t, err)
	return engine.New(store, cryptobox.NewKeyRing(cryptobox.StaticKey(key), box),
		validators.NewPipeline(validators.NewRegistry(nil)), engine.WithMetrics(m))
}

const bulk = `[
  {"name": "Site Name", "value": "Example"},
  {"name": "Max Retries", "value": 3, "value_type": "INT",
   "validators": [{"validator_type": "MinValueValidator", "validator_params": {"limit_value": 1}}]},
  {"name": "Debug", "slug": "DEBUG_MODE", "value": true, "value_type": "BOO", "is_global": true},
  {"name": "Api Token", "value": "s3cret", "enable_cypher": true, "enable_history": true},
  {"name": "Extra", "value": "x", "unknown_field": 42}
]`

func TestImportCreates(t *testing.T) {
	m := metrics.New()
	e := newEngine(t, m)
	x := New(e, WithMetrics(m))
	ctx := context.Background()

	report, err := x.Import(ctx, []byte(bulk), Options{})
	require.NoError(t, err)
	require.Len(t, report.Results, 5)
	assert.Equal(t, 5, report.Count(engine.OutcomeCreated))
	assert.Empty(t, report.Failed())
	assert.Equal(t, "DEBUG_MODE", report.Results[2].Slug)

	retries, err := e.Int(ctx, "MAX_RETRIES")
	require.NoError(t, err)
	assert.Equal(t, int64(3), retries)

	debug, err := e.Bool(ctx, "DEBUG_MODE")
	require.NoError(t, err)
	assert.True(t, debug)

	token, err := e.String(ctx, "API_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", token)

	p, err := e.Get(ctx, "MAX_RETRIES")
	require.NoError(t, err)
	require.Len(t, p.Validators, 1)
	assert.Equal(t, validators.MinValue, p.Validators[0].Type)

	expected := `
# HELP params_import_records_total Imported records by result
# TYPE params_import_records_total counter
params_import_records_total{result="created"} 5
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "params_import_records_total"))
}

func TestImportOverwriteAndSkip(t *testing.T) {
	e := newEngine(t, nil)
	x := New(e)
	ctx := context.Background()

	_, err := x.Import(ctx, []byte(`[{"name": "Greeting", "value": "hello", "description": "old"}]`), Options{})
	require.NoError(t, err)

	update := []byte(`[{"name": "Greeting", "value": "bonjour", "description": "new"}]`)

	report, err := x.Import(ctx, update, Options{NoOverwrite: true})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSkipped, report.Results[0].Outcome)
	got, err := e.Text(ctx, "GREETING")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	report, err = x.Import(ctx, update, Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdated, report.Results[0].Outcome)
	p, err := e.Get(ctx, "GREETING")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Description)
	got, err = e.Text(ctx, "GREETING")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", got)
}

func TestImportMinimalRecordDefaults(t *testing.T) {
	e := newEngine(t, nil)
	x := New(e)
	ctx := context.Background()

	report, err := x.Import(ctx, []byte(`[{"name": "X"}]`), Options{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, engine.OutcomeCreated, report.Results[0].Outcome)
	assert.Equal(t, "X", report.Results[0].Slug)

	p, err := e.Get(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "X", p.Name)
	assert.Equal(t, types.ValueTypeString, p.ValueType)
	assert.Empty(t, p.Description)
	assert.False(t, p.IsGlobal)
	assert.False(t, p.EnableCypher)
	assert.False(t, p.EnableHistory)
	assert.Empty(t, p.Validators)

	got, err := e.Text(ctx, "X")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestImportReplacesValidators(t *testing.T) {
	e := newEngine(t, nil)
	x := New(e)
	ctx := context.Background()

	initial := `[{"name": "Code", "value": "hello",
	  "validators": [{"validator_type": "MinLengthValidator", "validator_params": {"limit_value": 5}}]}]`
	_, err := x.Import(ctx, []byte(initial), Options{})
	require.NoError(t, err)
	p, err := e.Get(ctx, "CODE")
	require.NoError(t, err)
	require.Len(t, p.Validators, 1)

	err = e.SetText(ctx, "CODE", "hi")
	require.ErrorIs(t, err, types.ErrValidation)

	report, err := x.Import(ctx, []byte(`[{"name": "Code", "value": "hi", "validators": []}]`), Options{})
	require.NoError(t, err)
	require.Empty(t, report.Failed())
	assert.Equal(t, engine.OutcomeUpdated, report.Results[0].Outcome)

	p, err = e.Get(ctx, "CODE")
	require.NoError(t, err)
	assert.Empty(t, p.Validators, "empty list replaces the stored set")
	got, err := e.Text(ctx, "CODE")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestImportFailuresAreIsolated(t *testing.T) {
	m := metrics.New()
	e := newEngine(t, m)
	x := New(e, WithMetrics(m))
	ctx := context.Background()
	_, err := e.Create(ctx, types.ParameterSpec{Name: "Port", ValueType: types.ValueTypeInt, Value: "8080"})
	require.NoError(t, err)

	data := `[
	  {"value": "no name"},
	  {"name": "Bad Type", "value_type": "NOPE"},
	  {"name": "Bad Int", "value": "abc", "value_type": "INT"},
	  {"name": "Port", "value": "x", "value_type": "STR"},
	  {"name": "Fine", "value": "ok"},
	  {"name": "Too Small", "value": "0", "value_type": "INT",
	   "validators": [{"validator_type": "MinValueValidator", "validator_params": {"limit_value": 1}}]},
	  "not an object"
	]`
	report, err := x.Import(ctx, []byte(data), Options{})
	require.NoError(t, err)
	require.Len(t, report.Results, 7)

	tests := []struct {
		index   int
		wantErr error
	}{
		{0, ErrInvalidRecord},
		{1, ErrInvalidRecord},
		{2, types.ErrConversion},
		{3, types.ErrTypeMismatch},
		{5, types.ErrValidation},
		{6, ErrInvalidRecord},
	}
	for _, tt := range tests {
		res := report.Results[tt.index]
		assert.Equal(t, ResultFailed, res.Outcome, "record %d", tt.index)
		assert.ErrorIs(t, res.Err, tt.wantErr, "record %d", tt.index)
	}
	assert.Equal(t, engine.OutcomeCreated, report.Results[4].Outcome)
	assert.Len(t, report.Failed(), 6)

	_, err = e.Get(ctx, "BAD_INT")
	assert.ErrorIs(t, err, types.ErrNotFound)
	port, err := e.Int(ctx, "PORT")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), port)
}

func TestImportRejectsNonArray(t *testing.T) {
	x := New(newEngine(t, nil))
	for _, doc := range []string{`{"name": "x"}`, `null`, `not json`, ``} {
		_, err := x.Import(context.Background(), []byte(doc), Options{})
		assert.ErrorIs(t, err, ErrNotArray, doc)
	}

	report, err := x.Import(context.Background(), []byte(`[]`), Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}

func TestImportUpdateKeepsStoredType(t *testing.T) {
	e := newEngine(t, nil)
	x := New(e)
	ctx := context.Background()
	_, err := e.Create(ctx, types.ParameterSpec{Name: "Ratio", ValueType: types.ValueTypeFloat, Value: "0.5"})
	require.NoError(t, err)

	report, err := x.Import(ctx, []byte(`[{"name": "Ratio", "value": 0.75}]`), Options{})
	require.NoError(t, err)
	require.NoError(t, report.Results[0].Err)

	got, err := e.Float(ctx, "RATIO")
	require.NoError(t, err)
	assert.Equal(t, 0.75, got)
}

func TestExportImportAcrossKeys(t *testing.T) {
	ctx := context.Background()
	src := newEngine(t, nil)
	_, err := src.Create(ctx, types.ParameterSpec{Name: "Secret", Value: "hunter2", EnableCypher: true})
	require.NoError(t, err)
	_, err = src.Create(ctx, types.ParameterSpec{
		Name: "Limit", ValueType: types.ValueTypeInt, Value: "10", IsGlobal: true,
		Validators: []types.Validator{{Type: validators.MaxValue, Params: map[string]any{"limit_value": 100}}},
	})
	require.NoError(t, err)

	records, err := New(src).Export(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "LIMIT", records[0].Slug)
	assert.Equal(t, "hunter2", records[1].Value, "export carries plaintext")
	assert.NotNil(t, records[1].Validators)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, records, 4))

	dst := newEngine(t, nil)
	report, err := New(dst).Import(ctx, buf.Bytes(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(engine.OutcomeCreated))

	secret, err := dst.String(ctx, "SECRET")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)

	p, err := dst.Get(ctx, "LIMIT")
	require.NoError(t, err)
	assert.True(t, p.IsGlobal)
	require.Len(t, p.Validators, 1)
	assert.Equal(t, validators.MaxValue, p.Validators[0].Type)
}

func TestExportOmitsHistory(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	_, err := e.Create(ctx, types.ParameterSpec{Name: "Tracked", Value: "a", EnableHistory: true})
	require.NoError(t, err)
	require.NoError(t, e.SetString(ctx, "TRACKED", "b"))

	records, err := New(e).Export(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, records, 0))
	var generic []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &generic))
	require.Len(t, generic, 1)
	assert.NotContains(t, generic[0], "history")
	assert.Equal(t, "b", generic[0]["value"])
	assert.Equal(t, []any{}, generic[0]["validators"])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil, 2))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	rec := Record{Name: "A & B", Slug: "A_B", Value: "<x>", ValueType: "STR", Validators: []ValidatorRecord{}}
	require.NoError(t, WriteJSON(&buf, []Record{rec}, 2))
	assert.Contains(t, buf.String(), "\n  {\n    \"name\": \"A & B\"")
	assert.Contains(t, buf.String(), `"value": "<x>"`)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "params.json")
	require.NoError(t, WriteFile(path, []Record{{Name: "X", Slug: "X"}}, 4))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []Record
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "X", out[0].Name)
}

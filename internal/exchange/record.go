package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mesh-intelligence/params/pkg/types"
)

// ValidatorRecord is a validator as it appears in a bulk file.
type ValidatorRecord struct {
	ValidatorType   string         `json:"validator_type"`
	ValidatorParams map[string]any `json:"validator_params"`
}

// Record is one parameter in a bulk file. Value is always plaintext.
// Absent fields take their zero value; value_type defaults to STR on
// creation.
type Record struct {
	Name          string            `json:"name"`
	Slug          string            `json:"slug"`
	Value         string            `json:"value"`
	ValueType     string            `json:"value_type"`
	Description   string            `json:"description"`
	IsGlobal      bool              `json:"is_global"`
	EnableCypher  bool              `json:"enable_cypher"`
	EnableHistory bool              `json:"enable_history"`
	Validators    []ValidatorRecord `json:"validators"`
}

// UnmarshalJSON accepts a scalar value of any JSON type. Numbers and
// booleans keep their literal text; null is the empty string.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		Value json.RawMessage `json:"value"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.Value)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		r.Value = ""
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &r.Value); err != nil {
			return err
		}
	default:
		r.Value = string(raw)
	}
	return nil
}

// ToRecord converts a stored parameter to its bulk form. plaintext is the
// opened value of p.
func ToRecord(p *types.Parameter, plaintext string) Record {
	rec := Record{
		Name:          p.Name,
		Slug:          p.Slug,
		Value:         plaintext,
		ValueType:     string(p.ValueType),
		Description:   p.Description,
		IsGlobal:      p.IsGlobal,
		EnableCypher:  p.EnableCypher,
		EnableHistory: p.EnableHistory,
		Validators:    make([]ValidatorRecord, 0, len(p.Validators)),
	}
	for _, v := range p.Validators {
		params := v.Clone().Params
		if params == nil {
			params = map[string]any{}
		}
		rec.Validators = append(rec.Validators, ValidatorRecord{ValidatorType: v.Type, ValidatorParams: params})
	}
	return rec
}

// FromRecord converts a bulk record to a parameter spec. An absent
// value_type stays empty so that an update keeps the stored type.
// Validators without a type are dropped.
func FromRecord(rec Record) (types.ParameterSpec, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return types.ParameterSpec{}, fmt.Errorf("%w: name is required", types.ErrInvalidName)
	}
	var vt types.ValueType
	if rec.ValueType != "" {
		parsed, err := types.ParseValueType(rec.ValueType)
		if err != nil {
			return types.ParameterSpec{}, fmt.Errorf("%w: %q", err, rec.ValueType)
		}
		vt = parsed
	}

	spec := types.ParameterSpec{
		Name:          rec.Name,
		Slug:          rec.Slug,
		ValueType:     vt,
		Value:         rec.Value,
		Description:   rec.Description,
		IsGlobal:      rec.IsGlobal,
		EnableCypher:  rec.EnableCypher,
		EnableHistory: rec.EnableHistory,
	}
	for _, v := range rec.Validators {
		if v.ValidatorType == "" {
			continue
		}
		spec.Validators = append(spec.Validators, types.Validator{Type: v.ValidatorType, Params: v.ValidatorParams})
	}
	return spec, nil
}

// recordSchema is the JSON Schema every input record is checked against.
var recordSchema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	codes := []string{""}
	for _, vt := range types.ValueTypes() {
		codes = append(codes, string(vt))
	}
	nullableBool := map[string]any{"type": []string{"boolean", "null"}}
	doc := map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name":           map[string]any{"type": "string", "minLength": 1},
			"slug":           map[string]any{"type": []string{"string", "null"}},
			"value":          map[string]any{"type": []string{"string", "number", "boolean", "null"}},
			"value_type":     map[string]any{"type": "string", "enum": codes},
			"description":    map[string]any{"type": []string{"string", "null"}},
			"is_global":      nullableBool,
			"enable_cypher":  nullableBool,
			"enable_history": nullableBool,
			"validators": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"validator_type":   map[string]any{"type": []string{"string", "null"}},
						"validator_params": map[string]any{"type": []string{"object", "null"}},
					},
				},
			},
		},
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("exchange: compiling record schema: %v", err))
	}
	return schema
}

// checkRecord validates one raw record against the record schema.
func checkRecord(raw []byte) error {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
}

// decodeRecord checks raw against the schema and decodes it.
func decodeRecord(raw []byte) (Record, error) {
	if err := checkRecord(raw); err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}

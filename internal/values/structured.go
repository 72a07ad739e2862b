package values

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mesh-intelligence/params/pkg/types"
)

// formats checks URL and email syntax.
var formats = validator.New()

var (
	errInvalidURL   = errors.New("invalid URL")
	errInvalidEmail = errors.New("invalid email")
	errListComma    = errors.New("list items must not contain commas")
)

// ValidURL reports whether s is an absolute URL with a scheme and host.
func ValidURL(s string) bool {
	return s != "" && formats.Var(s, "url") == nil
}

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return s != "" && formats.Var(s, "email") == nil
}

func decodeURL(raw string) (any, error) {
	if !ValidURL(raw) {
		return nil, errInvalidURL
	}
	return raw, nil
}

func encodeURL(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errMismatch{}
	}
	if !ValidURL(s) {
		return "", errInvalidURL
	}
	return s, nil
}

func decodeEmail(raw string) (any, error) {
	if !ValidEmail(raw) {
		return nil, errInvalidEmail
	}
	return raw, nil
}

func encodeEmail(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errMismatch{}
	}
	if !ValidEmail(s) {
		return "", errInvalidEmail
	}
	return s, nil
}

// Lists are stored comma separated. Items are trimmed on read, so items with
// surrounding blanks lose them.
func decodeList(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out, nil
}

func encodeList(v any) (string, error) {
	items, ok := v.([]string)
	if !ok {
		return "", errMismatch{}
	}
	for _, it := range items {
		if strings.Contains(it, ",") {
			return "", errListComma
		}
	}
	return strings.Join(items, ", "), nil
}

func decodeDict(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &types.TypeMismatchError{Expected: types.ValueTypeDict, Got: jsonKind(v)}
	}
	return m, nil
}

func encodeDict(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", errMismatch{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		var ute *json.UnsupportedTypeError
		if errors.As(err, &ute) {
			return "", errMismatch{}
		}
		return "", err
	}
	return string(b), nil
}

// Paths are cleaned lexically; the filesystem is never consulted.
func decodePath(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	return filepath.Clean(raw), nil
}

func encodePath(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errMismatch{}
	}
	if s == "" {
		return "", nil
	}
	return filepath.Clean(s), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

package validators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/params/internal/values"
	"github.com/mesh-intelligence/params/pkg/types"
)

func TestBuiltinValidators(t *testing.T) {
	tests := []struct {
		name    string
		spec    types.Validator
		value   any
		wantErr string
	}{
		{"min value passes", types.Validator{Type: MinValue, Params: map[string]any{"limit_value": 10.0}}, int64(10), ""},
		{"min value fails", types.Validator{Type: MinValue, Params: map[string]any{"limit_value": 10.0}}, int64(9),
			"Ensure this value is greater than or equal to 10."},
		{"max value on float", types.Validator{Type: MaxValue, Params: map[string]any{"limit_value": 1.5}}, 1.6,
			"Ensure this value is less than or equal to 1.5."},
		{"max value on decimal", types.Validator{Type: MaxValue, Params: map[string]any{"limit_value": "99.99"}},
			decimal.RequireFromString("99.99"), ""},
		{"max value on duration seconds", types.Validator{Type: MaxValue, Params: map[string]any{"limit_value": 3600.0}},
			2 * time.Hour, "Ensure this value is less than or equal to 3600."},
		{"max value on string is rejected", types.Validator{Type: MaxValue, Params: map[string]any{"limit_value": 3.0}},
			"abc", "value of type string cannot be compared with 3"},
		{"min length counts runes", types.Validator{Type: MinLength, Params: map[string]any{"limit_value": 3.0}}, "été", ""},
		{"min length fails", types.Validator{Type: MinLength, Params: map[string]any{"limit_value": 5.0}}, "abc",
			"Ensure this value has at least 5 characters (it has 3)."},
		{"max length on list", types.Validator{Type: MaxLength, Params: map[string]any{"limit_value": 2.0}},
			[]string{"a", "b", "c"}, "Ensure this value has at most 2 characters (it has 3)."},
		{"regex match", types.Validator{Type: Regex, Params: map[string]any{"regex": `^[A-Z]{3}$`}}, "EUR", ""},
		{"regex custom message", types.Validator{Type: Regex, Params: map[string]any{"regex": `^[A-Z]{3}$`, "message": "ISO code expected"}},
			"euro", "ISO code expected"},
		{"regex inverse", types.Validator{Type: Regex, Params: map[string]any{"regex": `\s`, "inverse_match": true}},
			"has space", "Enter a valid value."},
		{"email ok", types.Validator{Type: Email}, "ops@example.com", ""},
		{"email bad", types.Validator{Type: Email}, "ops", "Enter a valid email address."},
		{"url ok", types.Validator{Type: URL}, "https://example.com", ""},
		{"url scheme not allowed", types.Validator{Type: URL}, "gopher://example.com", "Enter a valid URL."},
		{"url custom schemes", types.Validator{Type: URL, Params: map[string]any{"schemes": []any{"gopher"}}}, "gopher://example.com", ""},
		{"slug ok", types.Validator{Type: Slug}, "my-slug_1", ""},
		{"slug bad", types.Validator{Type: Slug}, "my slug",
			`Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`},
		{"ipv4 ok", types.Validator{Type: IPv4}, "192.168.1.10", ""},
		{"ipv4 bad", types.Validator{Type: IPv4}, "::1", "Enter a valid IPv4 address."},
		{"ipv6 ok", types.Validator{Type: IPv6}, "::1", ""},
		{"ipv6 bad", types.Validator{Type: IPv6}, "10.0.0.1", "Enter a valid IPv6 address."},
		{"file extension ok", types.Validator{Type: FileExtension, Params: map[string]any{"allowed_extensions": []any{"pdf", ".TXT"}}},
			"/docs/readme.txt", ""},
		{"file extension bad", types.Validator{Type: FileExtension, Params: map[string]any{"allowed_extensions": "pdf, txt"}},
			"/docs/image.png", `File extension "png" is not allowed. Allowed extensions are: pdf, txt.`},
		{"clock as string", types.Validator{Type: Regex, Params: map[string]any{"regex": `^09:`}},
			values.Clock{Hour: 9}, ""},
	}
	reg := NewRegistry(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := reg.Build(tt.spec)
			require.NoError(t, err)
			err = v.Validate(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestBuiltinParamErrors(t *testing.T) {
	tests := []struct {
		name string
		spec types.Validator
	}{
		{"min value without limit", types.Validator{Type: MinValue}},
		{"max value non numeric", types.Validator{Type: MaxValue, Params: map[string]any{"limit_value": "lots"}}},
		{"max length fractional", types.Validator{Type: MaxLength, Params: map[string]any{"limit_value": 2.5}}},
		{"regex missing", types.Validator{Type: Regex}},
		{"regex invalid", types.Validator{Type: Regex, Params: map[string]any{"regex": "("}}},
		{"extensions wrong shape", types.Validator{Type: FileExtension, Params: map[string]any{"allowed_extensions": 3.0}}},
	}
	reg := NewRegistry(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Build(tt.spec)
			assert.ErrorIs(t, err, types.ErrInvalidValidatorParams)
		})
	}
}

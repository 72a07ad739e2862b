package validators

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/params/pkg/types"
)

// Built-in validator names. These names are stored with parameters and
// appear in exchange files.
const (
	MinValue      = "MinValueValidator"
	MaxValue      = "MaxValueValidator"
	MinLength     = "MinLengthValidator"
	MaxLength     = "MaxLengthValidator"
	Regex         = "RegexValidator"
	Email         = "EmailValidator"
	URL           = "URLValidator"
	Slug          = "validate_slug"
	IPv4          = "validate_ipv4_address"
	IPv6          = "validate_ipv6_address"
	FileExtension = "FileExtensionValidator"
)

var builtins = map[string]Factory{
	MinValue:      newMinValue,
	MaxValue:      newMaxValue,
	MinLength:     newMinLength,
	MaxLength:     newMaxLength,
	Regex:         newRegex,
	Email:         fixed(checkFormat("email", "Enter a valid email address.")),
	URL:           newURL,
	Slug:          fixed(matchSlug),
	IPv4:          fixed(checkFormat("ipv4", "Enter a valid IPv4 address.")),
	IPv6:          fixed(checkFormat("ipv6", "Enter a valid IPv6 address.")),
	FileExtension: newFileExtension,
}

var formats = validator.New()

func fixed(fn Func) Factory {
	return func(map[string]any) (Validator, error) { return fn, nil }
}

func checkFormat(tag, msg string) Func {
	return func(value any) error {
		s := stringOf(value)
		if s == "" || formats.Var(s, tag) != nil {
			return errors.New(msg)
		}
		return nil
	}
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func matchSlug(value any) error {
	if !slugPattern.MatchString(stringOf(value)) {
		return errors.New(`Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`)
	}
	return nil
}

func newMinValue(params map[string]any) (Validator, error) {
	limit, err := limitParam(MinValue, params)
	if err != nil {
		return nil, err
	}
	return Func(func(value any) error {
		cmp, err := compare(value, limit)
		if err != nil {
			return err
		}
		if cmp < 0 {
			return fmt.Errorf("Ensure this value is greater than or equal to %s.", limit)
		}
		return nil
	}), nil
}

func newMaxValue(params map[string]any) (Validator, error) {
	limit, err := limitParam(MaxValue, params)
	if err != nil {
		return nil, err
	}
	return Func(func(value any) error {
		cmp, err := compare(value, limit)
		if err != nil {
			return err
		}
		if cmp > 0 {
			return fmt.Errorf("Ensure this value is less than or equal to %s.", limit)
		}
		return nil
	}), nil
}

func newMinLength(params map[string]any) (Validator, error) {
	limit, err := intParam(MinLength, params, "limit_value")
	if err != nil {
		return nil, err
	}
	return Func(func(value any) error {
		n, err := lengthOf(value)
		if err != nil {
			return err
		}
		if n < limit {
			return fmt.Errorf("Ensure this value has at least %d characters (it has %d).", limit, n)
		}
		return nil
	}), nil
}

func newMaxLength(params map[string]any) (Validator, error) {
	limit, err := intParam(MaxLength, params, "limit_value")
	if err != nil {
		return nil, err
	}
	return Func(func(value any) error {
		n, err := lengthOf(value)
		if err != nil {
			return err
		}
		if n > limit {
			return fmt.Errorf("Ensure this value has at most %d characters (it has %d).", limit, n)
		}
		return nil
	}), nil
}

func newRegex(params map[string]any) (Validator, error) {
	pattern, _ := params["regex"].(string)
	if pattern == "" {
		return nil, fmt.Errorf("%w: %s requires regex", types.ErrInvalidValidatorParams, Regex)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidValidatorParams, Regex, err)
	}
	msg, _ := params["message"].(string)
	if msg == "" {
		msg = "Enter a valid value."
	}
	inverse, _ := params["inverse_match"].(bool)
	return Func(func(value any) error {
		if re.MatchString(stringOf(value)) == inverse {
			return errors.New(msg)
		}
		return nil
	}), nil
}

var defaultSchemes = []string{"http", "https", "ftp", "ftps"}

func newURL(params map[string]any) (Validator, error) {
	schemes, err := stringsParam(URL, params, "schemes")
	if err != nil {
		return nil, err
	}
	if len(schemes) == 0 {
		schemes = defaultSchemes
	}
	return Func(func(value any) error {
		s := stringOf(value)
		scheme, _, found := strings.Cut(s, "://")
		if !found || formats.Var(s, "url") != nil || !slices.Contains(schemes, strings.ToLower(scheme)) {
			return errors.New("Enter a valid URL.")
		}
		return nil
	}), nil
}

func newFileExtension(params map[string]any) (Validator, error) {
	allowed, err := stringsParam(FileExtension, params, "allowed_extensions")
	if err != nil {
		return nil, err
	}
	for i, ext := range allowed {
		allowed[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return Func(func(value any) error {
		if len(allowed) == 0 {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(stringOf(value)), "."))
		if !slices.Contains(allowed, ext) {
			return fmt.Errorf("File extension %q is not allowed. Allowed extensions are: %s.",
				ext, strings.Join(allowed, ", "))
		}
		return nil
	}), nil
}

// lengthOf measures strings in characters and collections in items.
func lengthOf(value any) (int, error) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), nil
	case []string:
		return len(v), nil
	case []any:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	default:
		return 0, fmt.Errorf("value of type %T has no length", value)
	}
}

// stringOf renders a typed value the way string validators see it.
func stringOf(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func limitParam(name string, params map[string]any) (decimal.Decimal, error) {
	raw, ok := params["limit_value"]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s requires limit_value", types.ErrInvalidValidatorParams, name)
	}
	d, ok := toDecimal(raw)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s limit_value %v is not a number",
			types.ErrInvalidValidatorParams, name, raw)
	}
	return d, nil
}

func intParam(name string, params map[string]any, key string) (int, error) {
	d, ok := toDecimal(params[key])
	if !ok || !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s requires integer %s", types.ErrInvalidValidatorParams, name, key)
	}
	return int(d.IntPart()), nil
}

// stringsParam reads a list param given as a JSON array or a comma separated
// string. A missing key yields nil.
func stringsParam(name string, params map[string]any, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return slices.Clone(v), nil
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s %s must hold strings", types.ErrInvalidValidatorParams, name, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s %s must be a list", types.ErrInvalidValidatorParams, name, key)
	}
}

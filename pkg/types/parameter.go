package types

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stored value limits, in characters.
const (
	MaxValueLength       = 250
	MaxCypherValueLength = 190
)

// Parameter is a named, typed configuration value.
type Parameter struct {
	Name          string      // Human-readable label (required, non-empty).
	Slug          string      // Unique key derived from Name at creation; immutable.
	ValueType     ValueType   // Immutable after creation.
	Value         string      // Stored text; ciphertext when EnableCypher is set.
	Description   string      // Optional.
	IsGlobal      bool        // Exposed to the presentation layer through Globals.
	EnableCypher  bool        // Value is sealed at rest.
	EnableHistory bool        // Writes append the previous value to the history ledger.
	Validators    []Validator // Ordered; replaced as a complete set.
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MaxLength returns the plaintext limit that applies to the parameter.
func (p *Parameter) MaxLength() int {
	if p.EnableCypher {
		return MaxCypherValueLength
	}
	return MaxValueLength
}

// Clone returns a deep copy of p. Validator params are copied one level deep.
func (p *Parameter) Clone() *Parameter {
	cp := *p
	if p.Validators != nil {
		cp.Validators = make([]Validator, len(p.Validators))
		for i, v := range p.Validators {
			cp.Validators[i] = v.Clone()
		}
	}
	return &cp
}

// Validator attaches a named validation rule to a parameter. Type names a
// built-in or registered validator; Params configures it.
type Validator struct {
	Type   string
	Params map[string]any
}

// Clone returns a copy of v with its own Params map.
func (v Validator) Clone() Validator {
	cp := Validator{Type: v.Type}
	if v.Params != nil {
		cp.Params = make(map[string]any, len(v.Params))
		for k, val := range v.Params {
			cp.Params[k] = val
		}
	}
	return cp
}

// HistoryEntry records the plaintext value a parameter held before a write.
// Entries are never mutated.
type HistoryEntry struct {
	ID            string    // UUID v7.
	Slug          string    // Owning parameter.
	PreviousValue string    // Plaintext, pre-encryption.
	Timestamp     time.Time // When the overwrite happened.
}

// ParameterSpec is the desired state of a parameter, as read from an
// exchange record or supplied by a caller creating one. Value is text in the
// storage format of ValueType.
type ParameterSpec struct {
	Name          string
	Slug          string
	ValueType     ValueType
	Value         string
	Description   string
	IsGlobal      bool
	EnableCypher  bool
	EnableHistory bool
	Validators    []Validator
}

// ResolvedSlug returns the explicit slug when set, otherwise the slug derived
// from Name.
func (s ParameterSpec) ResolvedSlug() string {
	if s.Slug != "" {
		return s.Slug
	}
	return Slugify(s.Name)
}

// Slugify derives a parameter slug from a display name: accents are folded
// to ASCII, letters are uppercased, and every run of other characters
// collapses to a single underscore. Leading and trailing underscores are
// dropped, so "Tax Rate" becomes "TAX_RATE".
func Slugify(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

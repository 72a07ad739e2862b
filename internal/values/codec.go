// Package values converts between the text a parameter stores and the native
// Go value its type code stands for.
//
// Native types per code:
//
//	STR, URL, EMAIL, PATH  string
//	INT                    int64
//	FLT, PERCENTAGE        float64
//	DCL                    decimal.Decimal
//	BOO                    bool
//	DATE, DATETIME         time.Time
//	TIME                   Clock
//	LIST                   []string
//	DICT                   map[string]any
//	JSN                    any (the encoding/json shape)
//	DURATION               time.Duration
//
// For every valid native value v of type t, Decode(t, Encode(t, v)) equals v.
package values

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/params/pkg/types"
)

// codec holds both directions for one value type. Every value type must have
// an entry with both functions set; codec_test.go enforces it.
type codec struct {
	decode func(raw string) (any, error)
	encode func(v any) (string, error)
}

var codecs = map[types.ValueType]codec{
	types.ValueTypeString:     {decode: decodeString, encode: encodeString},
	types.ValueTypeInt:        {decode: decodeInt, encode: encodeInt},
	types.ValueTypeFloat:      {decode: decodeFloat, encode: encodeFloat},
	types.ValueTypeDecimal:    {decode: decodeDecimal, encode: encodeDecimal},
	types.ValueTypeBool:       {decode: decodeBool, encode: encodeBool},
	types.ValueTypeDate:       {decode: decodeDate, encode: encodeDate},
	types.ValueTypeDateTime:   {decode: decodeDateTime, encode: encodeDateTime},
	types.ValueTypeTime:       {decode: decodeTime, encode: encodeTime},
	types.ValueTypeURL:        {decode: decodeURL, encode: encodeURL},
	types.ValueTypeEmail:      {decode: decodeEmail, encode: encodeEmail},
	types.ValueTypeList:       {decode: decodeList, encode: encodeList},
	types.ValueTypeDict:       {decode: decodeDict, encode: encodeDict},
	types.ValueTypeJSON:       {decode: decodeJSON, encode: encodeJSON},
	types.ValueTypePath:       {decode: decodePath, encode: encodePath},
	types.ValueTypeDuration:   {decode: decodeDuration, encode: encodeDuration},
	types.ValueTypePercentage: {decode: decodePercentage, encode: encodePercentage},
}

// Decode converts stored text to the native value of vt. It never runs
// validators.
// Returns a *types.ConversionError for unreadable text, a *types.RangeError
// for out-of-range percentages, a *types.TypeMismatchError when DICT text is
// valid JSON but not an object, and ErrInvalidValueType for unknown codes.
func Decode(vt types.ValueType, raw string) (any, error) {
	c, ok := codecs[vt]
	if !ok {
		return nil, fmt.Errorf("decoding %s: %w", vt, types.ErrInvalidValueType)
	}
	v, err := c.decode(raw)
	if err != nil {
		return nil, typed(vt, raw, err)
	}
	return v, nil
}

// Encode converts a native value to its stored text. The Go type of v must
// be one of the types accepted for vt.
// Returns a *types.TypeMismatchError for the wrong Go type, a
// *types.RangeError for out-of-range values, and a *types.ConversionError
// for values of the right type that have no text form (malformed URL, NaN).
func Encode(vt types.ValueType, v any) (string, error) {
	c, ok := codecs[vt]
	if !ok {
		return "", fmt.Errorf("encoding %s: %w", vt, types.ErrInvalidValueType)
	}
	s, err := c.encode(v)
	if err != nil {
		var mismatch errMismatch
		if errors.As(err, &mismatch) {
			return "", &types.TypeMismatchError{Expected: vt, Got: fmt.Sprintf("%T", v)}
		}
		return "", typed(vt, fmt.Sprint(v), err)
	}
	return s, nil
}

// Normalize decodes raw and encodes the result again, yielding the
// canonical stored form (for example "True" becomes "1" for BOO).
func Normalize(vt types.ValueType, raw string) (any, string, error) {
	v, err := Decode(vt, raw)
	if err != nil {
		return nil, "", err
	}
	s, err := Encode(vt, v)
	if err != nil {
		return nil, "", err
	}
	return v, s, nil
}

// errMismatch signals a Go type that the codec does not accept.
type errMismatch struct{}

func (errMismatch) Error() string { return "unsupported Go type" }

// errRange carries a range message up to Decode and Encode.
type errRange string

func (e errRange) Error() string { return string(e) }

// typed turns codec-internal errors into the public error types.
func typed(vt types.ValueType, raw string, err error) error {
	var r errRange
	if errors.As(err, &r) {
		return &types.RangeError{Type: vt, Message: string(r)}
	}
	var tm *types.TypeMismatchError
	if errors.As(err, &tm) {
		return tm
	}
	return &types.ConversionError{Type: vt, Raw: raw, Cause: err}
}

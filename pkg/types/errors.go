package types

import (
	"errors"
	"fmt"
)

// Value engine errors. Use errors.Is to test for these; the typed errors
// below unwrap to them.
var (
	ErrConversion       = errors.New("conversion failed")
	ErrRange            = errors.New("value out of range")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrUnknownValidator = errors.New("unknown validator")
	ErrValidation       = errors.New("validation failed")
	ErrMissingKey       = errors.New("no encryption key configured")
	ErrDecryption       = errors.New("decryption failed")
)

// Parameter and store errors.
var (
	ErrNotFound               = errors.New("parameter not found")
	ErrDuplicateSlug          = errors.New("slug already exists")
	ErrInvalidName            = errors.New("invalid name")
	ErrInvalidValueType       = errors.New("invalid value type")
	ErrValueTooLong           = errors.New("value too long")
	ErrInvalidValidatorParams = errors.New("invalid validator params")
	ErrStoreDetached          = errors.New("store is detached")
	ErrAlreadyAttached        = errors.New("store is already attached")
)

// ConversionError reports stored or supplied text that cannot be read as the
// declared type.
type ConversionError struct {
	Slug  string    // Parameter slug, empty when not yet known.
	Type  ValueType // Declared type.
	Raw   string    // Offending text.
	Cause error     // Parser error, if any.
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot convert %q to %s", e.Raw, e.Type.Label())
	if e.Slug != "" {
		msg = fmt.Sprintf("parameter %s: %s", e.Slug, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrConversion, e.Cause}
	}
	return []error{ErrConversion}
}

// RangeError reports a value outside the bounds of its type.
type RangeError struct {
	Slug    string
	Type    ValueType
	Message string // e.g. "must be between 0 and 100"
}

func (e *RangeError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("parameter %s: %s %s", e.Slug, e.Type.Label(), e.Message)
	}
	return fmt.Sprintf("%s %s", e.Type.Label(), e.Message)
}

func (e *RangeError) Unwrap() error {
	return ErrRange
}

// TypeMismatchError reports a native value whose Go type does not match the
// parameter's declared type, or a declared type that differs from the one an
// operation requires.
type TypeMismatchError struct {
	Slug     string
	Expected ValueType
	Got      string // Go type or value type code that was supplied.
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("expected %s, got %s", e.Expected.Label(), e.Got)
	if e.Slug != "" {
		return fmt.Sprintf("parameter %s: %s", e.Slug, msg)
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// UnknownValidatorError reports a validator name that is neither built in
// nor registered.
type UnknownValidatorError struct {
	Name string
}

func (e *UnknownValidatorError) Error() string {
	return fmt.Sprintf("unknown validator %q", e.Name)
}

func (e *UnknownValidatorError) Unwrap() error {
	return ErrUnknownValidator
}

// ValidationError carries the message of the first validator that rejected
// a value.
type ValidationError struct {
	Slug      string
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("parameter %s: %s: %s", e.Slug, e.Validator, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Validator, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// WithSlug stamps slug onto the typed errors above that do not carry one yet
// and returns err. Other errors are returned unchanged.
func WithSlug(err error, slug string) error {
	var (
		ce *ConversionError
		re *RangeError
		te *TypeMismatchError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &ce):
		if ce.Slug == "" {
			ce.Slug = slug
		}
	case errors.As(err, &re):
		if re.Slug == "" {
			re.Slug = slug
		}
	case errors.As(err, &te):
		if te.Slug == "" {
			te.Slug = slug
		}
	case errors.As(err, &ve):
		if ve.Slug == "" {
			ve.Slug = slug
		}
	}
	return err
}

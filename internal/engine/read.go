package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/params/internal/values"
	"github.com/mesh-intelligence/params/pkg/types"
)

// Value returns the native value of slug. See package values for the Go
// type each value type decodes to.
func (e *Engine) Value(ctx context.Context, slug string) (any, error) {
	p, err := e.store.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	return e.decode(p)
}

// Text returns the plaintext stored text of slug, whatever its type.
func (e *Engine) Text(ctx context.Context, slug string) (string, error) {
	p, err := e.store.Get(ctx, slug)
	if err != nil {
		return "", err
	}
	return e.Plaintext(p)
}

func (e *Engine) decode(p *types.Parameter) (any, error) {
	plain, err := e.Plaintext(p)
	if err != nil {
		return nil, err
	}
	v, err := values.Decode(p.ValueType, plain)
	if err != nil {
		return nil, types.WithSlug(err, p.Slug)
	}
	return v, nil
}

// typedValue reads slug and returns its native value as T. The declared
// type must be one of accept.
func typedValue[T any](ctx context.Context, e *Engine, slug string, accept ...types.ValueType) (T, error) {
	var zero T
	p, err := e.store.Get(ctx, slug)
	if err != nil {
		return zero, err
	}
	if !slices.Contains(accept, p.ValueType) {
		return zero, &types.TypeMismatchError{Slug: slug, Expected: p.ValueType, Got: string(accept[0])}
	}
	v, err := e.decode(p)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &types.TypeMismatchError{Slug: slug, Expected: p.ValueType, Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}

// String reads a STR, URL, EMAIL or PATH parameter.
func (e *Engine) String(ctx context.Context, slug string) (string, error) {
	return typedValue[string](ctx, e, slug, stringTypes...)
}

// Int reads an INT parameter.
func (e *Engine) Int(ctx context.Context, slug string) (int64, error) {
	return typedValue[int64](ctx, e, slug, types.ValueTypeInt)
}

// Float reads a FLT parameter.
func (e *Engine) Float(ctx context.Context, slug string) (float64, error) {
	return typedValue[float64](ctx, e, slug, types.ValueTypeFloat)
}

// Decimal reads a DCL parameter.
func (e *Engine) Decimal(ctx context.Context, slug string) (decimal.Decimal, error) {
	return typedValue[decimal.Decimal](ctx, e, slug, types.ValueTypeDecimal)
}

// Bool reads a BOO parameter.
func (e *Engine) Bool(ctx context.Context, slug string) (bool, error) {
	return typedValue[bool](ctx, e, slug, types.ValueTypeBool)
}

// Date reads a DATE parameter as midnight UTC of that day.
func (e *Engine) Date(ctx context.Context, slug string) (time.Time, error) {
	return typedValue[time.Time](ctx, e, slug, types.ValueTypeDate)
}

// DateTime reads a DATETIME parameter.
func (e *Engine) DateTime(ctx context.Context, slug string) (time.Time, error) {
	return typedValue[time.Time](ctx, e, slug, types.ValueTypeDateTime)
}

// Time reads a TIME parameter.
func (e *Engine) Time(ctx context.Context, slug string) (values.Clock, error) {
	return typedValue[values.Clock](ctx, e, slug, types.ValueTypeTime)
}

// URL reads a URL parameter.
func (e *Engine) URL(ctx context.Context, slug string) (string, error) {
	return typedValue[string](ctx, e, slug, types.ValueTypeURL)
}

// Email reads an EMAIL parameter.
func (e *Engine) Email(ctx context.Context, slug string) (string, error) {
	return typedValue[string](ctx, e, slug, types.ValueTypeEmail)
}

// List reads a LIST parameter.
func (e *Engine) List(ctx context.Context, slug string) ([]string, error) {
	return typedValue[[]string](ctx, e, slug, types.ValueTypeList)
}

// Dict reads a DICT parameter.
func (e *Engine) Dict(ctx context.Context, slug string) (map[string]any, error) {
	return typedValue[map[string]any](ctx, e, slug, types.ValueTypeDict)
}

// JSON reads a JSN parameter in the shape encoding/json decodes to.
func (e *Engine) JSON(ctx context.Context, slug string) (any, error) {
	return typedValue[any](ctx, e, slug, types.ValueTypeJSON)
}

// Path reads a PATH parameter.
func (e *Engine) Path(ctx context.Context, slug string) (string, error) {
	return typedValue[string](ctx, e, slug, types.ValueTypePath)
}

// Duration reads a DURATION parameter.
func (e *Engine) Duration(ctx context.Context, slug string) (time.Duration, error) {
	return typedValue[time.Duration](ctx, e, slug, types.ValueTypeDuration)
}

// Percentage reads a PERCENTAGE parameter.
func (e *Engine) Percentage(ctx context.Context, slug string) (float64, error) {
	return typedValue[float64](ctx, e, slug, types.ValueTypePercentage)
}

// Parameters returns the stored parameters matching filter, ordered by slug.
// Values of encrypted parameters are ciphertext.
func (e *Engine) Parameters(ctx context.Context, filter types.Filter) ([]*types.Parameter, error) {
	return e.store.Fetch(ctx, filter)
}

// History returns the history ledger of slug, newest first.
// Returns ErrNotFound if slug does not exist.
func (e *Engine) History(ctx context.Context, slug string) ([]types.HistoryEntry, error) {
	if _, err := e.store.Get(ctx, slug); err != nil {
		return nil, err
	}
	return e.store.History(ctx, slug)
}

// Globals returns the native value of every global parameter keyed by slug,
// for exposure to templates and other presentation code.
func (e *Engine) Globals(ctx context.Context) (map[string]any, error) {
	params, err := e.store.Fetch(ctx, types.Filter{IsGlobal: types.Bool(true)})
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		v, err := e.decode(p)
		if err != nil {
			return nil, err
		}
		out[p.Slug] = v
	}
	return out, nil
}

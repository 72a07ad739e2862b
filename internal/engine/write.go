package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/params/internal/values"
	"github.com/mesh-intelligence/params/pkg/types"
)

// stringTypes are the value types whose native value is a string.
var stringTypes = []types.ValueType{
	types.ValueTypeString, types.ValueTypeURL, types.ValueTypeEmail, types.ValueTypePath,
}

// Set writes a native value to slug. The Go type of v must be one accepted
// for the parameter's declared type (see package values).
func (e *Engine) Set(ctx context.Context, slug string, v any) error {
	return e.write(ctx, slug, nil, func(*types.Parameter) (any, error) { return v, nil })
}

// SetText parses text in the storage format of the parameter's type and
// writes the result.
func (e *Engine) SetText(ctx context.Context, slug, text string) error {
	return e.write(ctx, slug, nil, func(p *types.Parameter) (any, error) {
		return values.Decode(p.ValueType, text)
	})
}

// SetString writes a STR, URL, EMAIL or PATH parameter.
func (e *Engine) SetString(ctx context.Context, slug, v string) error {
	return e.setAs(ctx, slug, v, stringTypes...)
}

// SetInt writes an INT parameter.
func (e *Engine) SetInt(ctx context.Context, slug string, v int64) error {
	return e.setAs(ctx, slug, v, types.ValueTypeInt)
}

// SetFloat writes a FLT parameter.
func (e *Engine) SetFloat(ctx context.Context, slug string, v float64) error {
	return e.setAs(ctx, slug, v, types.ValueTypeFloat)
}

// SetDecimal writes a DCL parameter.
func (e *Engine) SetDecimal(ctx context.Context, slug string, v decimal.Decimal) error {
	return e.setAs(ctx, slug, v, types.ValueTypeDecimal)
}

// SetBool writes a BOO parameter.
func (e *Engine) SetBool(ctx context.Context, slug string, v bool) error {
	return e.setAs(ctx, slug, v, types.ValueTypeBool)
}

// SetDate writes a DATE parameter; only the calendar date of v is kept.
func (e *Engine) SetDate(ctx context.Context, slug string, v time.Time) error {
	return e.setAs(ctx, slug, v, types.ValueTypeDate)
}

// SetDateTime writes a DATETIME parameter.
func (e *Engine) SetDateTime(ctx context.Context, slug string, v time.Time) error {
	return e.setAs(ctx, slug, v, types.ValueTypeDateTime)
}

// SetTime writes a TIME parameter.
func (e *Engine) SetTime(ctx context.Context, slug string, v values.Clock) error {
	return e.setAs(ctx, slug, v, types.ValueTypeTime)
}

// SetURL writes a URL parameter.
func (e *Engine) SetURL(ctx context.Context, slug, v string) error {
	return e.setAs(ctx, slug, v, types.ValueTypeURL)
}

// SetEmail writes an EMAIL parameter.
func (e *Engine) SetEmail(ctx context.Context, slug, v string) error {
	return e.setAs(ctx, slug, v, types.ValueTypeEmail)
}

// SetList writes a LIST parameter. Items must not contain commas.
func (e *Engine) SetList(ctx context.Context, slug string, v []string) error {
	return e.setAs(ctx, slug, v, types.ValueTypeList)
}

// SetDict writes a DICT parameter.
func (e *Engine) SetDict(ctx context.Context, slug string, v map[string]any) error {
	return e.setAs(ctx, slug, v, types.ValueTypeDict)
}

// SetJSON writes a JSN parameter. v may be any value encoding/json accepts.
func (e *Engine) SetJSON(ctx context.Context, slug string, v any) error {
	return e.setAs(ctx, slug, v, types.ValueTypeJSON)
}

// SetPath writes a PATH parameter.
func (e *Engine) SetPath(ctx context.Context, slug, v string) error {
	return e.setAs(ctx, slug, v, types.ValueTypePath)
}

// SetDuration writes a DURATION parameter. Durations are stored in whole
// seconds.
func (e *Engine) SetDuration(ctx context.Context, slug string, v time.Duration) error {
	return e.setAs(ctx, slug, v, types.ValueTypeDuration)
}

// SetPercentage writes a PERCENTAGE parameter; v must be within [0, 100].
func (e *Engine) SetPercentage(ctx context.Context, slug string, v float64) error {
	return e.setAs(ctx, slug, v, types.ValueTypePercentage)
}

func (e *Engine) setAs(ctx context.Context, slug string, v any, accept ...types.ValueType) error {
	return e.write(ctx, slug, accept, func(*types.Parameter) (any, error) { return v, nil })
}

// write loads slug, checks its declared type against accept (any type when
// accept is empty), obtains the native value and commits it.
func (e *Engine) write(ctx context.Context, slug string, accept []types.ValueType, value func(*types.Parameter) (any, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.writeLocked(ctx, slug, accept, value)
	e.metrics.RecordWrite("set", err)
	if err != nil {
		e.logger.Warn("parameter write rejected", "slug", slug, "error", err)
	}
	return err
}

func (e *Engine) writeLocked(ctx context.Context, slug string, accept []types.ValueType, value func(*types.Parameter) (any, error)) error {
	cur, err := e.store.Get(ctx, slug)
	if err != nil {
		return err
	}
	if len(accept) > 0 && !slices.Contains(accept, cur.ValueType) {
		return &types.TypeMismatchError{Slug: slug, Expected: cur.ValueType, Got: string(accept[0])}
	}
	native, err := value(cur)
	if err != nil {
		return types.WithSlug(err, slug)
	}
	return e.commit(ctx, cur, cur.Clone(), native)
}

// Attributes lists the metadata Update may change. Nil fields are left as
// they are.
type Attributes struct {
	Name          *string
	Description   *string
	IsGlobal      *bool
	EnableCypher  *bool
	EnableHistory *bool
}

// Update changes parameter metadata. Turning EnableCypher on seals the
// stored value under the active key; turning it off stores the plaintext.
// Slug and ValueType never change.
func (e *Engine) Update(ctx context.Context, slug string, attrs Attributes) (*types.Parameter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.update(ctx, slug, attrs)
	e.metrics.RecordWrite("update", err)
	return p, err
}

func (e *Engine) update(ctx context.Context, slug string, attrs Attributes) (*types.Parameter, error) {
	cur, err := e.store.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if attrs.Name != nil {
		name := strings.TrimSpace(*attrs.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", types.ErrInvalidName)
		}
		next.Name = name
	}
	if attrs.Description != nil {
		next.Description = *attrs.Description
	}
	if attrs.IsGlobal != nil {
		next.IsGlobal = *attrs.IsGlobal
	}
	if attrs.EnableHistory != nil {
		next.EnableHistory = *attrs.EnableHistory
	}
	if attrs.EnableCypher != nil && *attrs.EnableCypher != cur.EnableCypher {
		plain, err := e.Plaintext(cur)
		if err != nil {
			return nil, err
		}
		next.EnableCypher = *attrs.EnableCypher
		if err := checkLength(next, plain); err != nil {
			return nil, err
		}
		if next.Value, err = e.seal(next, plain); err != nil {
			return nil, err
		}
	}
	next.UpdatedAt = e.now()

	if err := e.store.Set(ctx, next, nil); err != nil {
		return nil, fmt.Errorf("storing %s: %w", slug, err)
	}
	e.logger.Info("parameter updated", "slug", slug, "cypher", next.EnableCypher, "global", next.IsGlobal)
	return next, nil
}

// SetValidators replaces the validator set of slug. Every entry must
// resolve and accept its params; the stored value is not re-checked.
func (e *Engine) SetValidators(ctx context.Context, slug string, list []types.Validator) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.setValidators(ctx, slug, list)
	e.metrics.RecordWrite("validators", err)
	return err
}

func (e *Engine) setValidators(ctx context.Context, slug string, list []types.Validator) error {
	cur, err := e.store.Get(ctx, slug)
	if err != nil {
		return err
	}
	if err := e.pipeline.Check(list); err != nil {
		return err
	}
	next := cur.Clone()
	next.Validators = cloneValidators(list)
	next.UpdatedAt = e.now()
	if err := e.store.Set(ctx, next, nil); err != nil {
		return fmt.Errorf("storing %s: %w", slug, err)
	}
	e.logger.Info("validators replaced", "slug", slug, "count", len(list))
	return nil
}

// Delete removes slug with its validators and history.
func (e *Engine) Delete(ctx context.Context, slug string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.Delete(ctx, slug)
	e.metrics.RecordWrite("delete", err)
	if err == nil {
		e.logger.Info("parameter deleted", "slug", slug)
	}
	return err
}

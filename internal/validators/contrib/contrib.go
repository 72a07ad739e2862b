// Package contrib holds ready-made custom validators a host can register
// next to the built-ins. Operators refer to them by the names below, or
// alias them in configuration.
package contrib

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/params/internal/validators"
	"github.com/mesh-intelligence/params/internal/values"
	"github.com/mesh-intelligence/params/pkg/types"
)

// Registered names.
const (
	EvenNumber    = "validate_even_number"
	Positive      = "validate_positive"
	BusinessHours = "validate_business_hours"
	AgeRange      = "AgeValidator"
)

// Register adds every contrib validator to reg.
func Register(reg *validators.Registry) error {
	funcs := map[string]validators.Func{
		EvenNumber:    evenNumber,
		Positive:      positive,
		BusinessHours: businessHours,
	}
	for name, fn := range funcs {
		if err := reg.RegisterFunc(name, fn); err != nil {
			return err
		}
	}
	return reg.Register(AgeRange, newAgeRange)
}

func evenNumber(value any) error {
	n, ok := value.(int64)
	if !ok {
		return fmt.Errorf("%v is not an integer", value)
	}
	if n%2 != 0 {
		return fmt.Errorf("%d is not an even number", n)
	}
	return nil
}

func positive(value any) error {
	var d decimal.Decimal
	switch n := value.(type) {
	case int64:
		d = decimal.NewFromInt(n)
	case float64:
		d = decimal.NewFromFloat(n)
	case decimal.Decimal:
		d = n
	default:
		return fmt.Errorf("%v is not a number", value)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%s is not positive", d)
	}
	return nil
}

// businessHours accepts times from 09:00:00 through 17:59:59.
func businessHours(value any) error {
	var c values.Clock
	switch t := value.(type) {
	case values.Clock:
		c = t
	case time.Time:
		c = values.ClockOf(t)
	default:
		return fmt.Errorf("%v is not a time of day", value)
	}
	if c.Hour < 9 || c.Hour >= 18 {
		return fmt.Errorf("%s must be between 09:00:00 and 17:59:59 (business hours)", c)
	}
	return nil
}

func newAgeRange(params map[string]any) (validators.Validator, error) {
	minAge, err := intOr(params, "min_age", 18)
	if err != nil {
		return nil, err
	}
	maxAge, err := intOr(params, "max_age", 120)
	if err != nil {
		return nil, err
	}
	if minAge > maxAge {
		return nil, fmt.Errorf("%w: min_age %d exceeds max_age %d", types.ErrInvalidValidatorParams, minAge, maxAge)
	}
	return validators.Func(func(value any) error {
		age, ok := value.(int64)
		if !ok {
			return fmt.Errorf("invalid age: %v", value)
		}
		if age < int64(minAge) || age > int64(maxAge) {
			return fmt.Errorf("age must be between %d and %d, got %d", minAge, maxAge, age)
		}
		return nil
	}), nil
}

func intOr(params map[string]any, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch n := raw.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer", types.ErrInvalidValidatorParams, key)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", types.ErrInvalidValidatorParams, key)
	}
}

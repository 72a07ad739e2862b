package validators

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// toDecimal reads numeric params and values. Durations count in seconds.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case time.Duration:
		return decimal.NewFromFloat(n.Seconds()), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// compare returns -1, 0 or +1 as value is below, at or above limit.
func compare(value any, limit decimal.Decimal) (int, error) {
	if _, isString := value.(string); isString {
		return 0, fmt.Errorf("value of type string cannot be compared with %s", limit)
	}
	d, ok := toDecimal(value)
	if !ok {
		return 0, fmt.Errorf("value of type %T cannot be compared with %s", value, limit)
	}
	return d.Cmp(limit), nil
}

package values

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func decodeString(raw string) (any, error) {
	return raw, nil
}

func encodeString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errMismatch{}
	}
	return s, nil
}

func decodeInt(raw string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func encodeInt(v any) (string, error) {
	n, ok := asInt64(v)
	if !ok {
		return "", errMismatch{}
	}
	return strconv.FormatInt(n, 10), nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}

func decodeFloat(raw string) (any, error) {
	f, err := parseFinite(raw)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// parseFinite parses raw as a float, rejecting NaN and infinities.
func parseFinite(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func encodeFloat(v any) (string, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		return "", errMismatch{}
	}
	return formatFloat(f)
}

var errNotFinite = errors.New("value is not finite")

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errNotFinite
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func decodeDecimal(raw string) (any, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func encodeDecimal(v any) (string, error) {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return "", errMismatch{}
	}
	// Keep the scale the value was written with: "20.00" stays "20.00".
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp), nil
	}
	return d.String(), nil
}

func decodeBool(raw string) (any, error) {
	switch strings.ToLower(raw) {
	case "", "false", "0":
		return false, nil
	default:
		return true, nil
	}
}

func encodeBool(v any) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", errMismatch{}
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

// maxDurationSeconds is the largest whole-second count a time.Duration holds.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

var errDurationRange = errors.New("duration out of range")

// Durations are stored as seconds. Encoding truncates to whole seconds;
// decoding also accepts fractional seconds.
func decodeDuration(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > maxDurationSeconds || n < -maxDurationSeconds {
			return nil, errDurationRange
		}
		return time.Duration(n) * time.Second, nil
	}
	f, err := parseFinite(s)
	if err != nil {
		return nil, err
	}
	if math.Abs(f) > float64(maxDurationSeconds) {
		return nil, errDurationRange
	}
	return time.Duration(f * float64(time.Second)), nil
}

func encodeDuration(v any) (string, error) {
	d, ok := v.(time.Duration)
	if !ok {
		return "", errMismatch{}
	}
	return strconv.FormatInt(int64(d/time.Second), 10), nil
}

const percentageRange = errRange("must be between 0 and 100")

func decodePercentage(raw string) (any, error) {
	f, err := parseFinite(raw)
	if err != nil {
		return nil, err
	}
	if f < 0 || f > 100 {
		return nil, percentageRange
	}
	return f, nil
}

func encodePercentage(v any) (string, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		i, ok := asInt64(v)
		if !ok {
			return "", errMismatch{}
		}
		f = float64(i)
	}
	if math.IsNaN(f) {
		return "", errNotFinite
	}
	if f < 0 || f > 100 {
		return "", percentageRange
	}
	return formatFloat(f)
}

package values

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts accepted when reading DATETIME text. Text without an offset is
// read as UTC.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func decodeDate(raw string) (any, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func encodeDate(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", errMismatch{}
	}
	return t.Format(dateLayout), nil
}

func decodeDateTime(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	var firstErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func encodeDateTime(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", errMismatch{}
	}
	return t.Format(time.RFC3339Nano), nil
}

// Clock is a time of day without a date or zone, the native value of TIME
// parameters.
type Clock struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// ClockOf returns the wall clock reading of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanosecond: t.Nanosecond()}
}

// String formats c as HH:MM:SS, adding a trimmed fraction when
// Nanosecond is set.
func (c Clock) String() string {
	s := fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	if c.Nanosecond != 0 {
		frac := strings.TrimRight(fmt.Sprintf("%09d", c.Nanosecond), "0")
		s += "." + frac
	}
	return s
}

// MarshalText encodes c in its String form.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Valid reports whether every field is within its clock range.
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 &&
		c.Minute >= 0 && c.Minute < 60 &&
		c.Second >= 0 && c.Second < 60 &&
		c.Nanosecond >= 0 && c.Nanosecond < int(time.Second)
}

var timeLayouts = []string{
	"15:04:05.999999999",
	"15:04",
}

func decodeTime(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return ClockOf(t), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func encodeTime(v any) (string, error) {
	var c Clock
	switch t := v.(type) {
	case Clock:
		c = t
	case time.Time:
		c = ClockOf(t)
	default:
		return "", errMismatch{}
	}
	if !c.Valid() {
		return "", fmt.Errorf("invalid time of day %+v", c)
	}
	return c.String(), nil
}

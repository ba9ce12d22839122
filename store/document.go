package store

import (
	"strconv"
	"time"
)

// Document is a stored record: its server-assigned id plus its fields.
type Document struct {
	ID     string
	Fields Fields
}

// Fields maps field names to values. Values read back from the store are
// normalized to string, int64, float64, bool, time.Time or nil.
type Fields map[string]any

// String returns the field as a string, or "" when absent or NULL.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int returns the field as an int, or 0 when absent or NULL.
func (f Fields) Int(key string) int {
	if p := f.OptionalInt(key); p != nil {
		return *p
	}
	return 0
}

// OptionalInt returns nil when the field is absent or NULL.
func (f Fields) OptionalInt(key string) *int {
	var n int
	switch v := f[key].(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

// timeLayouts are the textual forms SQLite drivers may hand back for
// TIMESTAMP columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Time returns the field as a UTC time, or the zero time when absent.
func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

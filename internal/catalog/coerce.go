package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joaquim-lab/chipstage/pkg/table"
)

var unitSuffix = regexp.MustCompile(`[A-Za-z%°µμ]+$`)

var trueValues = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true, "y": true,
}
var falseValues = map[string]bool{
	"0": true, "false": true, "no": true, "off": true, "n": true,
}

// Coerce is the pure type-coercion function. It never throws: on
// failure it returns the original string unchanged with ok=false, leaving
// the caller to decide whether that becomes a validation error or warning.
func Coerce(raw string, typ table.ColumnType) (value interface{}, ok bool) {
	trimmed := strings.TrimSpace(raw)

	switch typ {
	case table.TypeInt:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return raw, false
		}
		return n, true

	case table.TypeFloat:
		stripped := unitSuffix.ReplaceAllString(trimmed, "")
		stripped = strings.TrimSpace(stripped)
		f, err := strconv.ParseFloat(stripped, 64)
		if err != nil {
			return raw, false
		}
		return f, true

	case table.TypeStrictFloat:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return raw, false
		}
		return f, true

	case table.TypeBool:
		lower := strings.ToLower(trimmed)
		if trueValues[lower] {
			return true, true
		}
		if falseValues[lower] {
			return false, true
		}
		return raw, false

	case table.TypeTimestamp:
		if v, ok := coerceTimestamp(trimmed); ok {
			return v, true
		}
		return raw, false

	case table.TypeString:
		return raw, true

	default:
		return raw, false
	}
}

// coerceTimestamp accepts ISO-8601 with or without a timezone, or a Unix
// epoch in seconds (integer or float).
func coerceTimestamp(s string) (interface{}, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	}
	return s, false
}

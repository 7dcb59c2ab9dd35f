// Package valuebag implements the typed key/value structure that backs a
// measurement's parameter and metadata bags. The source format is a
// dynamic dict of strings; per the design notes' "dynamic dict-based value
// bags" redesign flag, that maps here to a tagged variant over a fixed set
// of Go kinds instead of interface{} grab-bags.
package valuebag

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies which field of Value is populated.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindNull
)

// Value is a tagged union over the scalar kinds a catalog field may declare.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
	Time time.Time
}

func Null() Value                  { return Value{Kind: KindNull} }
func FromString(s string) Value    { return Value{Kind: KindString, Str: s} }
func FromInt(i int64) Value        { return Value{Kind: KindInt, Int: i} }
func FromFloat(f float64) Value    { return Value{Kind: KindFloat, Flt: f} }
func FromBool(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func FromTime(t time.Time) Value   { return Value{Kind: KindTime, Time: t} }

// IsNull reports whether the value carries no data.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsString renders the value for display/logging and for string-typed
// fields; it never fails.
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// Bag is a map of Values: one bag for Parameters, one for Metadata, as
// parsed from a raw file's preamble. Keys are stored exactly as the source
// declared them; lookups normalize on demand so alias matching can compare
// apples to apples (see NormalizeKey).
type Bag map[string]Value

// New returns an empty bag.
func New() Bag { return make(Bag) }

// Get returns the raw value for a key and whether it exists.
func (b Bag) Get(key string) (Value, bool) {
	v, ok := b[key]
	return v, ok
}

// Lookup performs case/whitespace/punctuation-insensitive lookup, trying
// every key in the bag and comparing normalized forms. Used by alias
// resolution, which only knows the canonical field's declared alias
// patterns, not the bag's exact casing.
func (b Bag) Lookup(normalizedKey string) (Value, bool) {
	for k, v := range b {
		if NormalizeKey(k) == normalizedKey {
			return v, true
		}
	}
	return Value{}, false
}

// NormalizeKey strips whitespace, lowercases, and removes all
// non-alphanumeric characters — the "normalized exact match" rule,
// shared between column alignment and bag lookups.
func NormalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package dataset

// value.go models the tagged scalar a parsed cell becomes.
//
// Every cell is coerced into a Value exactly once, at parse time. A Value
// is one of: null, string, number, or bool. The original cell text is kept
// alongside the typed form so that later classification can inspect the
// value exactly as it appeared in the file (a "0" cell coerced to the
// number 0 still classifies by its text form).
//
// CSV parsing uses CoerceValue for opportunistic typing; spreadsheet
// parsing uses StringValue and leaves typing to the inference pass.

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a tagged scalar: null, string, number, or bool.
// The zero Value is null.
type Value struct {
	kind ValueKind
	raw  string // original cell text; empty for null
	num  float64
	b    bool
}

// numericRegex validates that a string is a plain numeric literal.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// NullValue returns the null Value.
func NullValue() Value {
	return Value{kind: KindNull}
}

// StringValue returns a string Value carrying s verbatim.
func StringValue(s string) Value {
	return Value{kind: KindString, raw: s}
}

// NumberValue returns a number Value. The text form is the shortest
// decimal representation of f.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, raw: strconv.FormatFloat(f, 'f', -1, 64), num: f}
}

// BoolValue returns a bool Value with text form "true" or "false".
func BoolValue(b bool) Value {
	raw := "false"
	if b {
		raw = "true"
	}
	return Value{kind: KindBool, raw: raw, b: b}
}

// CoerceValue converts raw cell text into a typed Value.
//
// Coercion is deliberately narrow: exactly "true"/"false" become bools,
// plain numeric literals become numbers, everything else stays a string.
// The original text is always preserved as the Value's string form.
func CoerceValue(s string) Value {
	switch s {
	case "true":
		return Value{kind: KindBool, raw: s, b: true}
	case "false":
		return Value{kind: KindBool, raw: s, b: false}
	}

	if numericRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Value{kind: KindNumber, raw: s, num: f}
		}
	}

	return Value{kind: KindString, raw: s}
}

// Kind returns the variant of the Value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsMissing reports whether the Value counts toward a column's missing
// tally: null, or an empty/whitespace-free empty string cell.
func (v Value) IsMissing() bool {
	return v.kind == KindNull || (v.kind == KindString && v.raw == "")
}

// String returns the string coercion of the Value: the original cell
// text for parsed values, "" for null.
func (v Value) String() string {
	return v.raw
}

// Number returns the numeric coercion of the Value and whether it
// succeeded. Strings are parsed leniently (surrounding whitespace
// ignored); bools coerce to 1/0.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Bool returns the boolean payload of a bool Value.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// MarshalJSON renders the Value as the matching JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return json.Marshal(v.raw)
	}
}

// UnmarshalJSON restores a Value from a JSON scalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = NullValue()
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	}

	switch trimmed {
	case "true":
		*v = BoolValue(true)
		return nil
	case "false":
		*v = BoolValue(false)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value{kind: KindNumber, raw: trimmed, num: f}
	return nil
}

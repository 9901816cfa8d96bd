package events

import (
	"encoding/json"
	"strconv"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
)

type ValueKind uint8

const (
	StringKind ValueKind = iota
	NumberKind
	BoolKind
)

// Value is an event property: a string, a number or a bool.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func String(s string) Value { return Value{kind: StringKind, str: s} }

func Number(n float64) Value { return Value{kind: NumberKind, num: n} }

func Int(n int) Value { return Number(float64(n)) }

func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Str() (string, bool) { return v.str, v.kind == StringKind }

func (v Value) Num() (float64, bool) { return v.num, v.kind == NumberKind }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == BoolKind }

// Any returns the underlying Go value.
func (v Value) Any() any {
	switch v.kind {
	case NumberKind:
		return v.num
	case BoolKind:
		return v.b
	default:
		return v.str
	}
}

func (v Value) String() string {
	switch v.kind {
	case NumberKind:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// MarshalJSON writes non-finite numbers as "NaN", "+Inf" or "-Inf". Those
// decode back as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == NumberKind {
		return json.Marshal(export.Float(v.num))
	}

	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, string(data))
	}

	return nil
}

func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

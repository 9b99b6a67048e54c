package criterion

import (
	"fmt"
	"strconv"
)

// Value is one scalar a criterion can take.
type Value struct {
	raw any
}

func IntValue(i int64) Value     { return Value{raw: i} }
func FloatValue(f float64) Value { return Value{raw: f} }
func StringValue(s string) Value { return Value{raw: s} }

// valueOf converts a decoded YAML scalar.
func valueOf(v any) (Value, error) {
	switch x := v.(type) {
	case int:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint64:
		return IntValue(int64(x)), nil
	case float64:
		if x == float64(int64(x)) {
			return IntValue(int64(x)), nil
		}
		return FloatValue(x), nil
	case string:
		return StringValue(x), nil
	case bool:
		return Value{raw: x}, nil
	default:
		return Value{}, fmt.Errorf("unsupported criterion value %v (%T)", v, v)
	}
}

// Raw returns the underlying scalar.
func (v Value) Raw() any { return v.raw }

// String renders the canonical textual form used in names and commands.
func (v Value) String() string {
	switch x := v.raw.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// Number reports the numeric value, parsing strings when possible.
func (v Value) Number() (float64, bool) {
	switch x := v.raw.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int returns the value as an integer when it is integral.
func (v Value) Int() (int64, bool) {
	f, ok := v.Number()
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// IsNumeric reports whether the scalar itself is a number.
func (v Value) IsNumeric() bool {
	switch v.raw.(type) {
	case int64, float64:
		return true
	}
	return false
}

func (v Value) equal(o Value) bool {
	return v.String() == o.String()
}

package reading

import (
	"fmt"
	"math"
	"strconv"
)

type valueType uint8

const (
	typeString valueType = iota
	typeInt
	typeFloat
	typeStructured
)

// Value holds a reading's payload: an integer, a float, a string or a
// structured value such as a list of band powers.
type Value struct {
	typ valueType
	i   int64
	f   float64
	s   string
	v   any
}

func Int(v int64) Value { return Value{typ: typeInt, i: v} }

func Float(v float64) Value { return Value{typ: typeFloat, f: v} }

func String(v string) Value { return Value{typ: typeString, s: v} }

func Structured(v any) Value { return Value{typ: typeStructured, v: v} }

// IsNumeric reports whether the value holds an integer or a float.
func (v Value) IsNumeric() bool {
	return v.typ == typeInt || v.typ == typeFloat
}

// Float64 returns the numeric value. Strings are parsed when possible.
func (v Value) Float64() (float64, bool) {
	switch v.typ {
	case typeInt:
		return float64(v.i), true
	case typeFloat:
		return v.f, true
	case typeString:
		f, err := strconv.ParseFloat(v.s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int64 returns the value truncated to an integer. Floats that are not
// finite or do not fit in an int64 report false.
func (v Value) Int64() (int64, bool) {
	switch v.typ {
	case typeInt:
		return v.i, true
	case typeFloat:
		if !finite(v.f) || v.f < math.MinInt64 || v.f >= math.MaxInt64 {
			return 0, false
		}
		return int64(v.f), true
	case typeString:
		i, err := strconv.ParseInt(v.s, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Interface returns the underlying Go value.
func (v Value) Interface() any {
	switch v.typ {
	case typeInt:
		return v.i
	case typeFloat:
		return v.f
	case typeStructured:
		return v.v
	default:
		return v.s
	}
}

func (v Value) String() string {
	switch v.typ {
	case typeInt:
		return strconv.FormatInt(v.i, 10)
	case typeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case typeStructured:
		return fmt.Sprint(v.v)
	default:
		return v.s
	}
}

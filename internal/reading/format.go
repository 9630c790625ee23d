package reading

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Style selects how a value is rendered in the log.
type Style uint8

const (
	StyleQuoted Style = iota
	StyleInteger
	StyleFloat
	StyleFixed
	StyleStructured
)

// Format is a rendering directive for a reading's value. The zero value
// renders the value as a quoted string.
type Format struct {
	Style     Style
	Precision int
}

var (
	FormatQuoted     = Format{Style: StyleQuoted}
	FormatInteger    = Format{Style: StyleInteger}
	FormatFloat      = Format{Style: StyleFloat}
	FormatStructured = Format{Style: StyleStructured}
)

// FormatFixed renders floats with exactly precision decimal places.
func FormatFixed(precision int) Format {
	return Format{Style: StyleFixed, Precision: precision}
}

// RenderValue returns the textual form of v under f. Values that cannot be
// rendered in the requested style fall back to a quoted string so the
// output stays parseable.
func RenderValue(v Value, f Format) string {
	switch f.Style {
	case StyleInteger:
		if i, ok := v.Int64(); ok {
			return strconv.FormatInt(i, 10)
		}
	case StyleFloat:
		if x, ok := v.Float64(); ok && finite(x) {
			s := strconv.FormatFloat(x, 'f', -1, 64)
			if !strings.ContainsRune(s, '.') {
				s += ".0"
			}
			return s
		}
	case StyleFixed:
		if x, ok := v.Float64(); ok && finite(x) {
			return strconv.FormatFloat(x, 'f', max(f.Precision, 0), 64)
		}
	case StyleStructured:
		if b, err := json.Marshal(v.Interface()); err == nil {
			return string(b)
		}
	}
	return quote(v.String())
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

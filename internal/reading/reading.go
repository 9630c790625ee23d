// Package reading defines the timestamped, typed value that sources produce
// and the collector persists.
package reading

import (
	"strconv"
	"strings"
	"time"
)

// Reading is one timestamped value produced by a source. Seq is zero until
// the collector assigns it at drain time.
type Reading struct {
	Kind      Kind
	Value     Value
	Timestamp time.Time
	Seq       uint64
	Format    Format
}

// New creates a reading stamped with the current time.
func New(kind Kind, value Value, format Format) Reading {
	return NewAt(time.Now(), kind, value, format)
}

// NewAt creates a reading stamped with t.
func NewAt(t time.Time, kind Kind, value Value, format Format) Reading {
	return Reading{
		Kind:      kind,
		Value:     value,
		Timestamp: t,
		Format:    format,
	}
}

// WithSeq returns a copy of r carrying sequence index seq.
func (r Reading) WithSeq(seq uint64) Reading {
	r.Seq = seq
	return r
}

// Render returns the tuple form [seq, seconds, kind, value].
func (r Reading) Render() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strconv.FormatUint(r.Seq, 10))
	b.WriteString(", ")
	b.WriteString(FormatTimestamp(r.Timestamp))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(int(r.Kind)))
	b.WriteString(", ")
	b.WriteString(RenderValue(r.Value, r.Format))
	b.WriteByte(']')
	return b.String()
}

// FormatTimestamp renders t as Unix seconds with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.Round(time.Millisecond).UnixMilli())/1000, 'f', 3, 64)
}

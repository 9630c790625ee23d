package reading_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/biolog/internal/reading"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Unix(1700000000, 123_000_000)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		r    reading.Reading
		want string
	}{
		{
			name: "float",
			r:    reading.NewAt(t0, reading.KindHRV, reading.Float(55), reading.FormatFloat),
			want: "[0, 1700000000.123, 2000, 55.0]",
		},
		{
			name: "fractional float",
			r:    reading.NewAt(t0, reading.KindSCL, reading.Float(0.42), reading.FormatFloat).WithSeq(1),
			want: "[1, 1700000000.123, 2001, 0.42]",
		},
		{
			name: "fixed precision",
			r:    reading.NewAt(t0, reading.KindSCL, reading.Float(1.23456), reading.FormatFixed(3)).WithSeq(7),
			want: "[7, 1700000000.123, 2001, 1.235]",
		},
		{
			name: "integer",
			r:    reading.NewAt(t0, reading.KindAttention, reading.Int(61), reading.FormatInteger).WithSeq(2),
			want: "[2, 1700000000.123, 1004, 61]",
		},
		{
			name: "default quoted",
			r:    reading.NewAt(t0, reading.KindMarker, reading.String("Mark"), reading.Format{}),
			want: `[0, 1700000000.123, 0, "Mark"]`,
		},
		{
			name: "quoted escapes",
			r:    reading.NewAt(t0, reading.KindMarker, reading.String(`say "hi"`), reading.FormatQuoted),
			want: `[0, 1700000000.123, 0, "say \"hi\""]`,
		},
		{
			name: "structured",
			r:    reading.NewAt(t0, reading.KindEEGPower, reading.Structured([]int{1, 2, 3}), reading.FormatStructured),
			want: "[0, 1700000000.123, 1131, [1,2,3]]",
		},
		{
			name: "integer hint on string falls back to quoted",
			r:    reading.NewAt(t0, reading.KindMarker, reading.String("x"), reading.FormatInteger),
			want: `[0, 1700000000.123, 0, "x"]`,
		},
		{
			name: "integer hint on nan falls back to quoted",
			r:    reading.NewAt(t0, reading.KindAttention, reading.Float(math.NaN()), reading.FormatInteger),
			want: `[0, 1700000000.123, 1004, "NaN"]`,
		},
		{
			name: "integer hint on infinity falls back to quoted",
			r:    reading.NewAt(t0, reading.KindAttention, reading.Float(math.Inf(1)), reading.FormatInteger),
			want: `[0, 1700000000.123, 1004, "+Inf"]`,
		},
		{
			name: "integer hint out of range falls back to quoted",
			r:    reading.NewAt(t0, reading.KindAttention, reading.Float(1e20), reading.FormatInteger),
			want: `[0, 1700000000.123, 1004, "1e+20"]`,
		},
		{
			name: "integer hint truncates float",
			r:    reading.NewAt(t0, reading.KindAttention, reading.Float(61.7), reading.FormatInteger),
			want: "[0, 1700000000.123, 1004, 61]",
		},
		{
			name: "nan falls back to quoted",
			r:    reading.NewAt(t0, reading.KindSCL, reading.Float(math.NaN()), reading.FormatFixed(3)),
			want: `[0, 1700000000.123, 2001, "NaN"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Render())
		})
	}
}

func TestWithSeqDoesNotMutate(t *testing.T) {
	r := reading.NewAt(t0, reading.KindHRV, reading.Float(1), reading.FormatFloat)
	assigned := r.WithSeq(9)

	assert.Equal(t, uint64(0), r.Seq)
	assert.Equal(t, uint64(9), assigned.Seq)
}

func TestValueConversions(t *testing.T) {
	f, ok := reading.Int(3).Float64()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	i, ok := reading.Float(3.9).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)

	_, ok = reading.Float(math.Inf(-1)).Int64()
	assert.False(t, ok)
	_, ok = reading.Float(-1e19).Int64()
	assert.False(t, ok)

	_, ok = reading.Structured([]int{1}).Float64()
	assert.False(t, ok)

	assert.True(t, reading.Float(1).IsNumeric())
	assert.False(t, reading.String("1").IsNumeric())
	assert.Equal(t, "Mark", reading.String("Mark").String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "scl", reading.KindSCL.String())
	assert.Equal(t, "4242", reading.Kind(4242).String())
}

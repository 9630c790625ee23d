// Package marker turns operator keystrokes into marker readings. A line
// that begins with a space records a mark; anything else is ignored.
package marker

import (
	"bufio"
	"context"
	"io"
	"strings"

	"codeberg.org/mutker/biolog/internal/clock"
	"codeberg.org/mutker/biolog/internal/reading"
	"codeberg.org/mutker/biolog/internal/source"
)

const (
	// Value is the payload of every marker reading.
	Value = "Mark"

	prefix = " "
)

type Source struct {
	r       io.Reader
	clock   clock.Clock
	scanner *bufio.Scanner
}

type Option func(*Source)

func WithClock(c clock.Clock) Option {
	return func(s *Source) { s.clock = c }
}

func New(r io.Reader, opts ...Option) *Source {
	s := &Source{r: r, clock: clock.Real()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Open(context.Context) error {
	s.scanner = bufio.NewScanner(s.r)
	return nil
}

// Poll reads one line. The read itself cannot be interrupted; a worker
// blocked here is only released by input or end of file.
func (s *Source) Poll(_ context.Context, emit source.EmitFunc) error {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return err
		}
		return io.EOF
	}

	if !strings.HasPrefix(s.scanner.Text(), prefix) {
		return nil
	}

	return emit(reading.NewAt(s.clock.Now(), reading.KindMarker, reading.String(Value), reading.FormatQuoted))
}

// Close does not close the reader; the caller owns it.
func (s *Source) Close() error {
	return nil
}

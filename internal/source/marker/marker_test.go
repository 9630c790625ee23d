package marker_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/biolog/internal/clock"
	"codeberg.org/mutker/biolog/internal/reading"
	"codeberg.org/mutker/biolog/internal/source/marker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerLines(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	src := marker.New(strings.NewReader(" \nhello\n\n  go\nx \n"), marker.WithClock(clk))
	require.NoError(t, src.Open(context.Background()))

	var got []reading.Reading
	emit := func(r reading.Reading) error {
		got = append(got, r)
		return nil
	}

	var err error
	for err == nil {
		err = src.Poll(context.Background(), emit)
	}
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, src.Close())

	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, reading.KindMarker, r.Kind)
		assert.Equal(t, `[0, 1700000000.000, 0, "Mark"]`, r.Render())
	}
}

func TestMarkerEmitErrorIsReturned(t *testing.T) {
	src := marker.New(strings.NewReader(" \n"))
	require.NoError(t, src.Open(context.Background()))

	want := io.ErrClosedPipe
	err := src.Poll(context.Background(), func(reading.Reading) error { return want })
	assert.ErrorIs(t, err, want)
}

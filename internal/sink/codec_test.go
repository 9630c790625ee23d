package sink

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressorClose(t *testing.T) {
	for _, codec := range []Codec{CodecGzip, CodecZstd, CodecLZ4, CodecNone} {
		t.Run(string(codec), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := newCompressor(&buf, codec)
			require.NoError(t, err)
			_, err = io.WriteString(w, OpenMarker)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := newDecompressor(&buf)
			require.NoError(t, err)
			content, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, OpenMarker, string(content))
			assert.NoError(t, r.Close())
		})
	}
}

func TestZstdDecoderReleasedOnClose(t *testing.T) {
	var buf bytes.Buffer
	w, err := newCompressor(&buf, CodecZstd)
	require.NoError(t, err)
	_, err = io.WriteString(w, OpenMarker)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := newDecompressor(&buf)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Read(make([]byte, 1))
	assert.Error(t, err, "a closed decoder does not read")
}

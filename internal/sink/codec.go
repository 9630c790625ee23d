package sink

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/biolog/internal/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names the stream compression applied to the log.
type Codec string

const (
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
	CodecNone Codec = "none"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCodec parses a codec name. An empty name selects gzip.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(strings.ToLower(name)); c {
	case CodecGzip, CodecZstd, CodecLZ4, CodecNone:
		return c, nil
	case "":
		return CodecGzip, nil
	default:
		return "", errors.New().WithData(ErrInvalidCodec, name)
	}
}

// CodecForPath picks a codec from the output file extension, falling back
// to gzip.
func CodecForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CodecZstd
	case ".lz4":
		return CodecLZ4
	case ".json", ".log", ".txt":
		return CodecNone
	default:
		return CodecGzip
	}
}

type nopWriteCloser struct {
	*bufio.Writer
}

func (w nopWriteCloser) Close() error {
	return w.Flush()
}

func newCompressor(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecGzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case CodecZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecNone:
		return nopWriteCloser{bufio.NewWriter(w)}, nil
	default:
		return nil, errors.New().WithData(ErrInvalidCodec, codec)
	}
}

// newDecompressor sniffs the stream's magic bytes and returns a reader for
// the decoded content. The caller must close it.
func newDecompressor(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return gzip.NewReader(br)
	case bytes.HasPrefix(head, zstdMagic):
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case bytes.HasPrefix(head, lz4Magic):
		return io.NopCloser(lz4.NewReader(br)), nil
	default:
		return io.NopCloser(br), nil
	}
}

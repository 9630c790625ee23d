// Package sink writes the bracketed, stream-compressed reading log and
// reads it back.
package sink

import (
	"io"
	"os"
	"path/filepath"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
)

const (
	// OpenMarker starts the document.
	OpenMarker = "[\n"
	// Separator follows every entry.
	Separator = ",\n"
	// CloseMarker terminates the document.
	CloseMarker = "]\n"

	defaultDirPerm = 0o755
)

// Log is an append-only compressed log. It is not safe for concurrent use;
// the collector owns it.
type Log struct {
	path   string
	codec  Codec
	file   *os.File
	w      io.WriteCloser
	closed bool
}

// Open creates or truncates path and writes the opening marker.
func Open(path string, codec Codec) (*Log, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrSinkWrite, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrSinkWrite, err)
	}

	w, err := newCompressor(file, codec)
	if err != nil {
		file.Close()
		return nil, err
	}

	l := &Log{
		path:  path,
		codec: codec,
		file:  file,
		w:     w,
	}

	if err := l.Write(OpenMarker); err != nil {
		w.Close()
		file.Close()
		return nil, err
	}

	logger.Debug().
		Str("path", path).
		Str("codec", string(codec)).
		Msg("Log sink opened")

	return l, nil
}

// Write appends text to the stream.
func (l *Log) Write(text string) error {
	errFactory := errors.New()

	if l.closed {
		return errFactory.New(ErrSinkClosed)
	}

	if _, err := io.WriteString(l.w, text); err != nil {
		return errFactory.Wrap(ErrSinkWrite, err)
	}

	return nil
}

// Close writes the closing marker, finalizes compression and closes the
// file. Calls after the first are no-ops.
func (l *Log) Close() error {
	if l.closed {
		return nil
	}

	errFactory := errors.New()

	werr := l.Write(CloseMarker)
	l.closed = true

	if err := l.w.Close(); err != nil {
		l.file.Close()
		return errFactory.WithData(ErrSinkWrite, struct {
			Phase string
			Error string
		}{
			Phase: "finalize_compression",
			Error: err.Error(),
		})
	}

	if err := l.file.Close(); err != nil {
		return errFactory.WithData(ErrSinkWrite, struct {
			Phase string
			Error string
		}{
			Phase: "close_file",
			Error: err.Error(),
		})
	}

	if werr != nil {
		return werr
	}

	logger.Debug().Str("path", l.path).Msg("Log sink closed")

	return nil
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) Codec() Codec {
	return l.codec
}

func (l *Log) IsClosed() bool {
	return l.closed
}

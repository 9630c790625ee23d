package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/mutker/biolog/internal/errors"
	"github.com/goccy/go-json"
)

// Entry is one decoded [seq, time, kind, value] tuple.
type Entry struct {
	Seq   uint64
	Time  float64
	Kind  int
	Value json.RawMessage
}

// Document is a decoded log. Complete is false when the closing marker is
// missing, as happens when the writer did not shut down cleanly.
type Document struct {
	Entries  []Entry
	Complete bool
}

// ReadFile decompresses and decodes the log at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a log from r, detecting the compression from its header.
func Decode(r io.Reader) (*Document, error) {
	errFactory := errors.New()

	content, err := newDecompressor(r)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidDocument, err)
	}
	defer content.Close()

	doc := &Document{}
	opened := false
	scanner := bufio.NewScanner(content)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		switch {
		case !opened:
			if text != strings.TrimSpace(OpenMarker) {
				return nil, errFactory.WithData(ErrInvalidDocument, fmt.Sprintf("line %d: missing opening marker", line))
			}
			opened = true
		case doc.Complete:
			return nil, errFactory.WithData(ErrInvalidDocument, fmt.Sprintf("line %d: content after closing marker", line))
		case text == strings.TrimSpace(CloseMarker):
			doc.Complete = true
		default:
			entry, err := decodeEntry(strings.TrimSuffix(text, ","))
			if err != nil {
				return nil, errFactory.WithData(ErrInvalidDocument, fmt.Sprintf("line %d: %v", line, err))
			}
			doc.Entries = append(doc.Entries, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return doc, errFactory.Wrap(ErrInvalidDocument, err)
	}
	if !opened {
		return nil, errFactory.WithData(ErrInvalidDocument, "empty document")
	}

	return doc, nil
}

func decodeEntry(text string) (Entry, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Entry{}, err
	}
	if len(fields) != 4 {
		return Entry{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	var e Entry
	if err := json.Unmarshal(fields[0], &e.Seq); err != nil {
		return Entry{}, fmt.Errorf("sequence: %w", err)
	}
	if err := json.Unmarshal(fields[1], &e.Time); err != nil {
		return Entry{}, fmt.Errorf("time: %w", err)
	}
	if err := json.Unmarshal(fields[2], &e.Kind); err != nil {
		return Entry{}, fmt.Errorf("kind: %w", err)
	}
	e.Value = fields[3]

	return e, nil
}

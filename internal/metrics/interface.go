package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/biolog/internal/reading"
)

// SummaryRecorder defines the core domain interface
type SummaryRecorder interface {
	Record(ctx context.Context, snapshot *SummarySnapshot) error
	Close() error
}

// SummaryRepository defines the interface for summary data storage
type SummaryRepository interface {
	Record(snapshot *SummarySnapshot) error
	Close() error
}

// SummarySnapshot is one throttled report of the last known value of every
// watched kind.
type SummarySnapshot struct {
	Timestamp    time.Time
	LastSequence uint64
	Values       map[reading.Kind]float64
}

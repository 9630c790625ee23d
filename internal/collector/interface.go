package collector

import (
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/reading"
)

// Queue is the part of the event queue the collector consumes.
type Queue interface {
	PopAll() []reading.Reading
}

// Sink receives rendered entries, each already terminated by its separator.
type Sink interface {
	Write(text string) error
}

// Summary is the downsampled view of the watched kinds.
type Summary = metrics.SummarySnapshot

// Reporter receives every summary the collector emits. Implementations
// handle their own failures.
type Reporter interface {
	Report(summary *Summary)
}

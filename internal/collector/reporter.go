package collector

import (
	"context"
	"sort"
	"time"

	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/reading"
)

const recordTimeout = 2 * time.Second

// LogReporter writes each summary as one info line.
type LogReporter struct {
	log logger.Logger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(s *Summary) {
	event := r.log.Info().Uint64("last_sequence", s.LastSequence)
	for _, k := range sortedKinds(s.Values) {
		event.Float64(k.String(), s.Values[k])
	}
	event.Msg("Summary")
}

// RecordingReporter persists summaries through a metrics recorder.
type RecordingReporter struct {
	recorder metrics.SummaryRecorder
	log      logger.Logger
}

func NewRecordingReporter(recorder metrics.SummaryRecorder, log logger.Logger) *RecordingReporter {
	return &RecordingReporter{recorder: recorder, log: log}
}

func (r *RecordingReporter) Report(s *Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.recorder.Record(ctx, s); err != nil {
		r.log.Warn().Err(err).
			Uint64("last_sequence", s.LastSequence).
			Msg("Failed to record summary")
	}
}

type multiReporter []Reporter

// Reporters fans each summary out to every non-nil reporter in order.
func Reporters(rs ...Reporter) Reporter {
	out := make(multiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiReporter) Report(s *Summary) {
	for _, r := range m {
		r.Report(s)
	}
}

func sortedKinds(values map[reading.Kind]float64) []reading.Kind {
	kinds := make([]reading.Kind, 0, len(values))
	for k := range values {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

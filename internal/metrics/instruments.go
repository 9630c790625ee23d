package metrics

import (
	"net/http"
	"time"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/reading"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "biolog"

// Instruments exposes pipeline counters to Prometheus. A nil *Instruments
// is valid and records nothing.
type Instruments struct {
	readings       *prometheus.CounterVec
	drains         prometheus.Counter
	batchSize      prometheus.Gauge
	lastSequence   prometheus.Gauge
	summaries      prometheus.Counter
	workerFailures *prometheus.CounterVec
	joinTimeouts   *prometheus.CounterVec
}

// NewInstruments creates the pipeline collectors and registers them with
// reg when it is not nil.
func NewInstruments(reg prometheus.Registerer) (*Instruments, error) {
	in := &Instruments{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_written_total",
			Help:      "Readings written to the log sink, by kind.",
		}, []string{"kind"}),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drains_total",
			Help:      "Drain passes performed by the collector.",
		}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_size",
			Help:      "Readings processed by the most recent drain.",
		}),
		lastSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sequence_index",
			Help:      "Sequence index of the most recently written reading.",
		}),
		summaries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summary reports emitted.",
		}),
		workerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      "Source workers that terminated because their source became unavailable.",
		}, []string{"worker"}),
		joinTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_join_timeouts_total",
			Help:      "Source workers that did not terminate within the join timeout.",
		}, []string{"worker"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			in.readings, in.drains, in.batchSize, in.lastSequence,
			in.summaries, in.workerFailures, in.joinTimeouts,
		} {
			if err := reg.Register(c); err != nil {
				return nil, errors.New().Wrap(ErrInstruments, err)
			}
		}
	}

	return in, nil
}

func (in *Instruments) ObserveDrain(batch int) {
	if in == nil {
		return
	}
	in.drains.Inc()
	in.batchSize.Set(float64(batch))
}

func (in *Instruments) ObserveReading(r reading.Reading) {
	if in == nil {
		return
	}
	in.readings.WithLabelValues(r.Kind.String()).Inc()
	in.lastSequence.Set(float64(r.Seq))
}

func (in *Instruments) SummaryEmitted() {
	if in == nil {
		return
	}
	in.summaries.Inc()
}

func (in *Instruments) WorkerFailed(worker string) {
	if in == nil {
		return
	}
	in.workerFailures.WithLabelValues(worker).Inc()
}

func (in *Instruments) JoinTimedOut(worker string) {
	if in == nil {
		return
	}
	in.joinTimeouts.WithLabelValues(worker).Inc()
}

// NewServer returns an HTTP server exposing g on /metrics.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

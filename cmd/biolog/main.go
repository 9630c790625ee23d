package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/biolog/internal/collector"
	"codeberg.org/mutker/biolog/internal/config"
	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/pid"
	"codeberg.org/mutker/biolog/internal/queue"
	"codeberg.org/mutker/biolog/internal/sink"
	"codeberg.org/mutker/biolog/internal/source"
	"codeberg.org/mutker/biolog/internal/source/gpu"
	"codeberg.org/mutker/biolog/internal/source/marker"
	"codeberg.org/mutker/biolog/internal/source/thinkgear"
	"codeberg.org/mutker/biolog/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

const serverShutdownTimeout = 2 * time.Second

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	os.Exit(run())
}

func run() int {
	lock, err := pid.Write(os.TempDir(), cfg.Output)
	if err != nil {
		logError(err, "Refusing to start")
		return 1
	}
	defer func() {
		if err := lock.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	q, err := queue.New(cfg.Discipline(), cfg.Queue.Capacity)
	if err != nil {
		logError(err, "Failed to create event queue")
		return 1
	}

	instruments, stopServer, err := setupPrometheus()
	if err != nil {
		logError(err, "Failed to set up instrumentation")
		return 1
	}
	defer stopServer()

	recorder, err := metrics.NewService(cfg.MetricsConfig(), logger.Default())
	if err != nil {
		logError(err, "Failed to initialize summary storage")
		return 1
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close summary storage")
		}
	}()

	reporter := collector.Reporters(
		collector.NewLogReporter(logger.Default()),
		collector.NewRecordingReporter(recorder, logger.Default()),
	)

	codec, err := cfg.Codec()
	if err != nil {
		logError(err, "Invalid compression")
		return 1
	}
	openSink := func() (supervisor.Sink, error) {
		l, err := sink.Open(cfg.Output, codec)
		if err != nil {
			return nil, err
		}
		return l, nil
	}

	sup, err := supervisor.New(cfg.SupervisorConfig(), q, openSink, producers(q, instruments),
		supervisor.WithCollector(cfg.CollectorConfig(), collector.WithReporter(reporter)),
		supervisor.WithInstruments(instruments),
	)
	if err != nil {
		logError(err, "Failed to create supervisor")
		return 1
	}

	if err := sup.Start(); err != nil {
		logError(err, "Failed to start collection")
		_ = sup.Shutdown()
		return 1
	}

	if cfg.Marker.Enabled {
		logger.Info().Msg("Press space then enter to record a mark. Ctrl+C to stop.")
	}

	if err := sup.Run(ctx); err != nil {
		logError(err, "Collection failed")
		return 1
	}

	logger.Info().Msg("Exiting...")
	return 0
}

func producers(q *queue.Queue, instruments *metrics.Instruments) []source.Producer {
	opts := []source.WorkerOption{
		source.WithLogger(logger.Default()),
		source.WithInstruments(instruments),
	}

	var out []source.Producer
	if cfg.Marker.Enabled {
		out = append(out, source.NewWorker("marker", marker.New(os.Stdin), q, opts...))
	}
	if cfg.ThinkGear.Enabled {
		out = append(out, source.NewWorker("thinkgear", thinkgear.New(cfg.ThinkGearConfig()), q, opts...))
	}
	if cfg.GPU.Enabled {
		out = append(out, source.NewWorker("gpu", gpu.New(cfg.GPUConfig()), q, opts...))
	}

	if len(out) == 0 {
		logger.Warn().Msg("No sources enabled, only an empty log will be written")
	}

	return out
}

// setupPrometheus registers the pipeline instruments and, when an address
// is configured, serves them.
func setupPrometheus() (*metrics.Instruments, func(), error) {
	noop := func() {}
	if cfg.Prometheus.Addr == "" {
		return nil, noop, nil
	}

	reg := prometheus.NewRegistry()
	instruments, err := metrics.NewInstruments(reg)
	if err != nil {
		return nil, noop, err
	}

	server := metrics.NewServer(cfg.Prometheus.Addr, reg)
	go func() {
		logger.Info().Str("addr", cfg.Prometheus.Addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}

	return instruments, stop, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logError(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithCode(coded).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}

package metrics_test

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/reading"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(seq uint64, values map[reading.Kind]float64) *metrics.SummarySnapshot {
	return &metrics.SummarySnapshot{
		Timestamp:    time.Unix(1700000000, 0).Add(time.Duration(seq) * time.Second),
		LastSequence: seq,
		Values:       values,
	}
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM summaries").Scan(&n))
	return n
}

func TestDisabledServiceIsNoop(t *testing.T) {
	rec, err := metrics.NewService(metrics.DefaultConfig(), logger.Default())
	require.NoError(t, err)

	assert.NoError(t, rec.Record(context.Background(), snapshot(1, nil)))
	assert.NoError(t, rec.Close())
}

func TestConfigValidate(t *testing.T) {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))

	cfg = metrics.DefaultConfig()
	cfg.BatchSize = -1
	assert.Error(t, cfg.Validate())
}

func TestServiceRecordsSummaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.db")
	cfg := metrics.Config{DBPath: path, BatchSize: 2, Enabled: true}

	rec, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, snapshot(10, map[reading.Kind]float64{
		reading.KindPoorSignal: 0,
		reading.KindSCL:        1.5,
	})))
	require.NoError(t, rec.Record(ctx, snapshot(20, map[reading.Kind]float64{
		reading.KindSCL: 1.75,
	})))
	require.NoError(t, rec.Record(ctx, snapshot(30, map[reading.Kind]float64{
		reading.KindSCL: 2,
	})))

	// The third snapshot is still buffered and must be flushed on close.
	require.NoError(t, rec.Close())
	assert.Equal(t, 4, countRows(t, path))
	assert.NoError(t, rec.Close())
}

func TestServiceRejectsNilSnapshot(t *testing.T) {
	cfg := metrics.Config{DBPath: filepath.Join(t.TempDir(), "s.db"), BatchSize: 1, Enabled: true}
	rec, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)
	defer rec.Close()

	err = rec.Record(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidSnapshot))
}

func TestServiceHonoursCancelledContext(t *testing.T) {
	cfg := metrics.Config{DBPath: filepath.Join(t.TempDir(), "s.db"), BatchSize: 1, Enabled: true}
	rec, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)
	defer rec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = rec.Record(ctx, snapshot(1, map[reading.Kind]float64{reading.KindSCL: 1}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrOperationTimeout))
}

func TestSchemaIsReusedAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.db")
	cfg := metrics.Config{DBPath: path, BatchSize: 1, Enabled: true}

	repo, err := metrics.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, repo.Record(snapshot(1, map[reading.Kind]float64{reading.KindSCL: 1})))
	require.NoError(t, repo.Close())

	repo, err = metrics.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	assert.Equal(t, 1, countRows(t, path), "reopening with a current schema keeps existing rows")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	version, err := metrics.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, metrics.SchemaVersion, version)
}

func TestInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	in, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	in.ObserveDrain(2)
	in.ObserveReading(reading.NewAt(time.Now(), reading.KindSCL, reading.Float(1), reading.FormatFloat).WithSeq(0))
	in.ObserveReading(reading.NewAt(time.Now(), reading.KindSCL, reading.Float(1), reading.FormatFloat).WithSeq(1))
	in.SummaryEmitted()
	in.WorkerFailed("thinkgear")
	in.JoinTimedOut("marker")

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	_, err = metrics.NewInstruments(reg)
	assert.Error(t, err, "registering twice must fail")

	srv := httptest.NewServer(metrics.NewServer("", reg).Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestNilInstrumentsAreSafe(t *testing.T) {
	var in *metrics.Instruments

	assert.NotPanics(t, func() {
		in.ObserveDrain(1)
		in.ObserveReading(reading.Reading{})
		in.SummaryEmitted()
		in.WorkerFailed("x")
		in.JoinTimedOut("x")
	})
}

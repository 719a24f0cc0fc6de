package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestNewMetricsCollector_WithProcessMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableProcessMetrics: true, EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "go_goroutines")
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("events_total", "Events", "kind")
	vec.WithLabelValues("a").Inc()
	vec.WithLabelValues("a").Add(2)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_events_total{kind="a"} 3`)
}

func TestRegisterCounter_Idempotent(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "Dup", "kind").WithLabelValues("x").Inc()
	c.RegisterCounter("dup_total", "Dup", "kind").WithLabelValues("x").Inc()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_dup_total{kind="x"} 2`)
}

func TestRegister_TypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("mixed", "Mixed")
	g := c.RegisterGauge("mixed", "Mixed")
	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(3) })
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterGauge("level", "Level").WithLabelValues().Set(4.5)
	c.RegisterHistogram("latency_seconds", "Latency", []float64{1, 2}).WithLabelValues().Observe(1.5)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_unit_level 4.5")
	assert.Contains(t, out, `test_unit_latency_seconds_bucket{le="2"} 1`)
	assert.Contains(t, out, "test_unit_latency_seconds_count 1")
}

func TestWriteTextfile(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterGauge("level", "Level").WithLabelValues().Set(7)

	path := filepath.Join(t.TempDir(), "meshdecomp.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_unit_level 7")
}

func TestWriteTextfile_BadDir(t *testing.T) {
	c := newTestCollector(t)
	err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.True(t, errors.IsCode(err, errors.CodeWriteFailed))
}

func TestPush(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestCollector(t)
	c.RegisterGauge("level", "Level").WithLabelValues().Set(1)
	require.NoError(t, c.Push(context.Background(), srv.URL, "meshdecomp"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/meshdecomp", gotPath)
}

func TestPush_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestCollector(t)
	err := c.Push(context.Background(), srv.URL, "meshdecomp")
	assert.True(t, errors.IsCode(err, errors.CodeMetricsPush))

	err = c.Push(context.Background(), "", "meshdecomp")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "Op", nil)
	timer := NewTimer(h.WithLabelValues())
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.Greater(t, d, time.Duration(0))
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_op_seconds_count 1")
}

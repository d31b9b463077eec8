package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestFrame_RecordsCountersAndLatency(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Frame(ctx, "primary", 20*time.Millisecond, false, nil)
	m.Frame(ctx, "none", 300*time.Millisecond, true, []string{"User not looking at screen", "Low engagement detected"})

	rm := collect(t, reader)

	frames := findMetric(rm, "proctor.frames.processed")
	if frames == nil {
		t.Fatal("frames metric not found")
	}
	if got := sumInt(t, frames); got != 2 {
		t.Errorf("frames processed = %d, want 2", got)
	}

	if got := sumInt(t, findMetric(rm, "proctor.detector.timeouts")); got != 1 {
		t.Errorf("timeouts = %d, want 1", got)
	}
	if got := sumInt(t, findMetric(rm, "proctor.flags")); got != 2 {
		t.Errorf("flags = %d, want 2", got)
	}

	dur := findMetric(rm, "proctor.frame.duration")
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data is %T", dur.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("histogram points = %+v", hist.DataPoints)
	}
}

func TestSessions_UpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionOpened(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
	m.FrameError(ctx)

	rm := collect(t, reader)
	if got := sumInt(t, findMetric(rm, "proctor.sessions.active")); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
	if got := sumInt(t, findMetric(rm, "proctor.frames.errors")); got != 1 {
		t.Errorf("frame errors = %d, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.Frame(ctx, "primary", time.Millisecond, true, []string{"x"})
	m.FrameError(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
}

func TestPrometheusHandler(t *testing.T) {
	p, err := NewPrometheus("proctor-test", "dev")
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := New(p.MeterProvider)
	if err != nil {
		t.Fatal(err)
	}
	m.Frame(context.Background(), "primary", 10*time.Millisecond, false, nil)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "proctor_frames_processed") {
		t.Errorf("metrics output missing frames counter:\n%s", body)
	}
}

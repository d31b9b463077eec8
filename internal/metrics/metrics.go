// Package metrics holds the OpenTelemetry instruments for the proctor
// service. Instruments are created from any metric.MeterProvider; tests pass
// a provider backed by a ManualReader, the service passes the Prometheus
// bridge from NewPrometheus.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/triple4t/ai-interview"

// Metrics holds all instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// FramesProcessed counts analyzed frames. Attribute "source" is
	// "primary", "fallback" or "none".
	FramesProcessed metric.Int64Counter

	// FrameErrors counts frames that ended in the error record
	FrameErrors metric.Int64Counter

	// DetectorTimeouts counts frames whose detection overran the budget
	DetectorTimeouts metric.Int64Counter

	// FrameDuration tracks end-to-end per-frame latency
	FrameDuration metric.Float64Histogram

	// Flags counts suspicious-behavior entries by text
	Flags metric.Int64Counter

	// ActiveSessions tracks connected frame streams
	ActiveSessions metric.Int64UpDownCounter
}

// frameBuckets are latency boundaries in seconds around a 30 fps budget.
var frameBuckets = []float64{
	0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25, 0.5, 1,
}

// New creates the instruments from mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("proctor.frames.processed",
		metric.WithDescription("Frames analyzed, by detection source."),
	); err != nil {
		return nil, err
	}
	if met.FrameErrors, err = m.Int64Counter("proctor.frames.errors",
		metric.WithDescription("Frames that failed and produced the error record."),
	); err != nil {
		return nil, err
	}
	if met.DetectorTimeouts, err = m.Int64Counter("proctor.detector.timeouts",
		metric.WithDescription("Detections abandoned after exceeding the frame budget."),
	); err != nil {
		return nil, err
	}
	if met.FrameDuration, err = m.Float64Histogram("proctor.frame.duration",
		metric.WithDescription("End-to-end frame analysis latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Flags, err = m.Int64Counter("proctor.flags",
		metric.WithDescription("Suspicious-behavior entries emitted, by behavior."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("proctor.sessions.active",
		metric.WithDescription("Connected frame streams."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Frame records one analyzed frame.
func (m *Metrics) Frame(ctx context.Context, source string, d time.Duration, timedOut bool, flags []string) {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	m.FrameDuration.Record(ctx, d.Seconds())
	if timedOut {
		m.DetectorTimeouts.Add(ctx, 1)
	}
	for _, f := range flags {
		m.Flags.Add(ctx, 1, metric.WithAttributes(attribute.String("behavior", f)))
	}
}

// FrameError records a frame that produced the error record.
func (m *Metrics) FrameError(ctx context.Context) {
	if m == nil {
		return
	}
	m.FrameErrors.Add(ctx, 1)
}

// SessionOpened increments the active-session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionClosed decrements the active-session gauge.
func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}

// Package pipeline runs the per-frame analysis for one session: locate the
// face, debounce presence, run the geometry analyzers and frame heuristics,
// infer screen switching, read the voice signal and fuse everything into an
// analysis record.
//
// A Pipeline owns its session's sequential state and must be driven by a
// single goroutine, one frame at a time. Detector models and heuristics are
// shared read-only across pipelines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/internal/metrics"
	"github.com/triple4t/ai-interview/pkg/analysis"
	"github.com/triple4t/ai-interview/pkg/debug"
	"github.com/triple4t/ai-interview/pkg/vision/detection"
	"github.com/triple4t/ai-interview/pkg/vision/geometry"
	"github.com/triple4t/ai-interview/pkg/vision/heuristics"
	"github.com/triple4t/ai-interview/pkg/vision/presence"
	"github.com/triple4t/ai-interview/pkg/vision/screenswitch"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
)

var errEmptyFrame = errors.New("empty frame")

// Locator finds the face in a frame. It must not block past its own budget.
type Locator interface {
	Locate(ctx context.Context, img gocv.Mat) detection.Detection
}

// Heuristics runs the pixel-level activity checks.
type Heuristics interface {
	Run(ctx context.Context, img gocv.Mat, denseCount int) (heuristics.Report, error)
}

// Config holds the per-session thresholds.
type Config struct {
	Presence     presence.Config
	ScreenSwitch screenswitch.Config
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		Presence:     presence.DefaultConfig(),
		ScreenSwitch: screenswitch.DefaultConfig(),
	}
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithClock replaces the wall clock used by the screen-switch timers.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMetrics records per-frame metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline is one session's analysis engine.
type Pipeline struct {
	locator Locator
	heur    Heuristics
	voice   voicesignal.Source

	presence *presence.Stabilizer
	screen   *screenswitch.Inferencer

	now     func() time.Time
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a pipeline with fresh session state. heur and voice may be
// nil; their outputs are then empty and neutral.
func New(loc Locator, heur Heuristics, voice voicesignal.Source, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		locator: loc,
		heur:    heur,
		voice:   voice,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = log.L()
	}
	p.presence = presence.New(cfg.Presence)
	p.screen = screenswitch.New(cfg.ScreenSwitch, p.now)
	return p
}

// Presence returns the current presence counters
func (p *Pipeline) Presence() presence.State {
	return p.presence.State()
}

// ScreenSwitch returns the current screen-switch state
func (p *Pipeline) ScreenSwitch() screenswitch.State {
	return p.screen.State()
}

// Process analyzes one decoded BGR frame. It always returns a complete
// record: an unexpected failure anywhere is logged and converted into the
// error record, so one bad frame never ends the session.
func (p *Pipeline) Process(ctx context.Context, img gocv.Mat) (rec analysis.Record) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rec = p.fail(ctx, fmt.Errorf("frame processing panic: %v", r))
		}
	}()

	if img.Empty() {
		return p.fail(ctx, errEmptyFrame)
	}

	frame := geometry.Frame{Width: img.Cols(), Height: img.Rows()}

	det := p.locate(ctx, img)
	stable := p.presence.Update(det.Confidence)

	head := geometry.UnknownHeadPose()
	eyes := geometry.UnknownEyeTracking()
	var rep heuristics.Report
	voice := voicesignal.Neutral()

	if det.Confidence > 0 {
		head = geometry.EstimateHeadPose(frame, det.Landmarks)
		eyes = geometry.AnalyzeEyes(frame, det.Landmarks)
		rep = p.runHeuristics(ctx, img, det.Count)
		if p.voice != nil {
			voice = p.voice.Latest()
		}
	}

	screen := p.screen.Update(screenswitch.Input{
		Frame:         frame,
		StablePresent: stable,
		HeadPose:      head,
		Eyes:          eyes,
		Landmarks:     det.Landmarks,
	})

	rec = analysis.Fuse(analysis.Signals{
		StablePresent: stable,
		Confidence:    det.Confidence,
		HeadPose:      head,
		Eyes:          eyes,
		MultipleFaces: rep.MultipleFaces,
		Mobile:        rep.Mobile,
		Suspicious:    rep.Suspicious,
		Screen:        screen,
		Voice:         voice,
	})

	p.metrics.Frame(ctx, source(det), time.Since(start), det.TimedOut, rec.SuspiciousBehavior)
	debug.FrameLog("frame analyzed", "present", stable, "confidence", det.Confidence,
		"attention", rec.AttentionScore, "engagement", rec.EngagementLevel,
		"flags", len(rec.SuspiciousBehavior))
	return rec
}

func (p *Pipeline) fail(ctx context.Context, err error) analysis.Record {
	p.log.Error("frame processing failed", "error", err)
	p.metrics.FrameError(ctx)
	return analysis.ErrorRecord(err)
}

func (p *Pipeline) locate(ctx context.Context, img gocv.Mat) detection.Detection {
	if p.locator == nil {
		return detection.Detection{}
	}
	det := p.locator.Locate(ctx, img)
	if det.Err != nil && !det.Present {
		p.log.Debug("no face this frame", "error", det.Err, "timed_out", det.TimedOut)
	}
	return det
}

func (p *Pipeline) runHeuristics(ctx context.Context, img gocv.Mat, dense int) heuristics.Report {
	if p.heur == nil {
		return heuristics.Report{
			MultipleFaces: analysis.NewMultipleFaces(min(dense, heuristics.DefaultMaxFaces), 0),
		}
	}
	rep, err := p.heur.Run(ctx, img, dense)
	if err != nil {
		p.log.Warn("frame heuristic failed", "error", err)
	}
	return rep
}

func source(d detection.Detection) string {
	switch d.Source.(type) {
	case detection.PrimaryResult:
		return "primary"
	case detection.FallbackResult:
		return "fallback"
	default:
		return "none"
	}
}

package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/pkg/debug"
	"github.com/triple4t/ai-interview/pkg/vision/geometry"
)

// ErrBusy is reported when the previous frame's detection outlived its
// budget and is still running.
var ErrBusy = errors.New("previous detection still running")

// Adapter turns the primary and fallback detectors into one normalized
// Detection per frame. Use one adapter per session; the detectors it wraps
// may be shared. At most one detection runs per adapter, so a detector that
// keeps overrunning its budget skips frames instead of queueing them.
type Adapter struct {
	primary    FaceDetector
	landmarker Landmarker
	fallback   FaceDetector
	cfg        Config

	inflight atomic.Bool
}

// NewAdapter wires the detectors. Any of them may be nil.
func NewAdapter(primary FaceDetector, landmarker Landmarker, fallback FaceDetector, cfg Config) *Adapter {
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = DefaultConfig().FallbackConfidence
	}
	if cfg.FrameBudget <= 0 {
		cfg.FrameBudget = DefaultConfig().FrameBudget
	}
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = DefaultConfig().MaxFaces
	}
	return &Adapter{primary: primary, landmarker: landmarker, fallback: fallback, cfg: cfg}
}

// Locate runs detection on img within the frame budget. It never returns
// an error: failures, panics and timeouts all yield an absent Detection
// with Err set. While an overrun detection is still running, Locate
// returns a timed-out detection with ErrBusy at once.
func (a *Adapter) Locate(ctx context.Context, img gocv.Mat) Detection {
	if img.Empty() {
		return Detection{}
	}
	if !a.inflight.CompareAndSwap(false, true) {
		return Detection{TimedOut: true, Err: ErrBusy}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.FrameBudget)
	defer cancel()

	// The worker owns its own copy so a late finish cannot touch a frame the
	// caller has already released.
	frame := img.Clone()
	done := make(chan Detection, 1)
	go func() {
		d := a.locate(frame)
		frame.Close()
		a.inflight.Store(false)
		done <- d
	}()

	select {
	case d := <-done:
		return d
	case <-ctx.Done():
		log.Warn("face detection exceeded frame budget", "budget", a.cfg.FrameBudget)
		return Detection{TimedOut: true, Err: ctx.Err()}
	}
}

func (a *Adapter) locate(img gocv.Mat) (d Detection) {
	defer func() {
		if r := recover(); r != nil {
			d = Detection{Err: fmt.Errorf("detector panic: %v", r)}
		}
	}()

	res, err := a.detect(img)
	d = fromResult(res)
	d.Err = err
	if d.Present {
		debug.FrameLog("face located", "confidence", d.Confidence, "faces", d.Count,
			"fallback", d.Fallback(), "landmarks", len(d.Landmarks))
	}
	return d
}

func (a *Adapter) detect(img gocv.Mat) (Result, error) {
	var errs []error

	if a.primary != nil {
		faces, err := a.primary.DetectFaces(img)
		if err != nil {
			log.Warn("primary face detector failed", "error", err)
			errs = append(errs, fmt.Errorf("primary: %w", err))
		} else if best, ok := SelectBest(faces); ok {
			res := PrimaryResult{Best: best, Found: min(len(faces), a.cfg.MaxFaces)}
			res.Mesh = a.landmarks(img, best.Box)
			return res, nil
		}
	}

	if a.fallback != nil {
		faces, err := a.fallback.DetectFaces(img)
		if err != nil {
			log.Warn("fallback face detector failed", "error", err)
			errs = append(errs, fmt.Errorf("fallback: %w", err))
		} else if best, ok := SelectBest(faces); ok {
			best.Confidence = a.cfg.FallbackConfidence
			return FallbackResult{Best: best, Found: min(len(faces), a.cfg.MaxFaces)}, nil
		}
	}

	return nil, errors.Join(errs...)
}

func (a *Adapter) landmarks(img gocv.Mat, box image.Rectangle) geometry.Landmarks {
	if a.landmarker == nil {
		return nil
	}
	lm, err := a.landmarker.Landmarks(img, box)
	if err != nil {
		log.Warn("face landmarker failed", "error", err)
		return nil
	}
	return lm
}

// Package heuristics implements the classical-CV activity checks that run
// on raw frame pixels: the multi-face counter and the contour heuristics for
// mobile devices and paper notes. The contour heuristics are geometry only
// and deliberately permissive; expect false positives.
package heuristics

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/triple4t/ai-interview/pkg/analysis"
	"github.com/triple4t/ai-interview/pkg/debug"
)

// FaceFinder reports whether an image region contains a face. Object
// candidates that contain a face are discarded.
type FaceFinder interface {
	ContainsFace(roi gocv.Mat) bool
}

// FaceCounter counts faces with a classical detector
type FaceCounter interface {
	CountFaces(img gocv.Mat) int
}

// DefaultMaxFaces caps the dense face count
const DefaultMaxFaces = 10

// Analyzer runs the frame heuristics. It holds no per-session state and
// may be shared; the face checks it calls must be safe for concurrent use.
type Analyzer struct {
	faces    FaceFinder
	counter  FaceCounter
	maxFaces int
}

// New creates an analyzer. Either dependency may be nil: a nil finder
// never vetoes a candidate and a nil counter counts zero.
func New(faces FaceFinder, counter FaceCounter, maxFaces int) *Analyzer {
	if maxFaces <= 0 {
		maxFaces = DefaultMaxFaces
	}
	return &Analyzer{faces: faces, counter: counter, maxFaces: maxFaces}
}

// Report bundles the three heuristic outputs for one frame
type Report struct {
	MultipleFaces analysis.MultipleFaces
	Mobile        analysis.ObjectReport
	Suspicious    analysis.ObjectReport
}

// Run evaluates the three heuristics in parallel. denseCount is the face
// count from the primary detector pass. A failing heuristic reports empty
// and its error is returned alongside the other results.
func (a *Analyzer) Run(ctx context.Context, img gocv.Mat, denseCount int) (Report, error) {
	rep := Report{
		MultipleFaces: analysis.NewMultipleFaces(0, 0),
		Mobile:        analysis.NewObjectReport(nil),
		Suspicious:    analysis.NewObjectReport(nil),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return guard(ctx, "multiple faces", func() {
			rep.MultipleFaces = a.MultipleFaces(img, denseCount)
		})
	})
	g.Go(func() error {
		return guard(ctx, "mobile devices", func() {
			rep.Mobile = a.MobileDevices(img)
		})
	})
	g.Go(func() error {
		return guard(ctx, "suspicious objects", func() {
			rep.Suspicious = a.SuspiciousObjects(img)
		})
	})
	err := g.Wait()

	debug.FrameLog("heuristics done", "faces", rep.MultipleFaces.Count,
		"devices", rep.Mobile.Count, "objects", rep.Suspicious.Count)
	return rep, err
}

func guard(ctx context.Context, name string, fn func()) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s heuristic panic: %v", name, r)
		}
	}()
	fn()
	return nil
}

// MultipleFaces combines the dense count with a cascade count, keeping the
// larger.
func (a *Analyzer) MultipleFaces(img gocv.Mat, denseCount int) analysis.MultipleFaces {
	dense := min(max(denseCount, 0), a.maxFaces)
	cascade := 0
	if a.counter != nil && !img.Empty() {
		cascade = a.counter.CountFaces(img)
	}
	return analysis.NewMultipleFaces(dense, cascade)
}

// Package detection locates the candidate's face in a frame. A primary
// detector (YuNet plus a dense face-mesh landmarker) is tried first and a
// Haar cascade serves as the always-available fallback. Detector failures
// never propagate: they become an absent detection.
package detection

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/pkg/vision/geometry"
)

// ErrModelNotFound is returned when a model file is missing at load time.
var ErrModelNotFound = errors.New("model file not found")

// Face is one candidate face box in frame pixels.
type Face struct {
	Box        image.Rectangle
	Confidence float64
}

// Area returns the box area in pixels
func (f Face) Area() int {
	return f.Box.Dx() * f.Box.Dy()
}

// FaceDetector finds face boxes in a BGR frame
type FaceDetector interface {
	DetectFaces(img gocv.Mat) ([]Face, error)
	Close() error
}

// Landmarker produces a dense landmark set for the face inside box
type Landmarker interface {
	Landmarks(img gocv.Mat, box image.Rectangle) (geometry.Landmarks, error)
	Close() error
}

// Result is the tagged outcome of a successful detection: either a
// PrimaryResult or a FallbackResult.
type Result interface {
	Face() Face
	Landmarks() geometry.Landmarks
	Faces() int
	sealed()
}

// PrimaryResult comes from the high-accuracy detector and carries a native
// confidence and, when the landmarker succeeded, a dense mesh.
type PrimaryResult struct {
	Best  Face
	Mesh  geometry.Landmarks
	Found int
}

func (r PrimaryResult) Face() Face                    { return r.Best }
func (r PrimaryResult) Landmarks() geometry.Landmarks { return r.Mesh }
func (r PrimaryResult) Faces() int                    { return r.Found }
func (PrimaryResult) sealed()                         {}

// FallbackResult comes from the cascade. The cascade has no native score, so
// Best.Confidence holds the configured synthetic confidence.
type FallbackResult struct {
	Best  Face
	Found int
}

func (r FallbackResult) Face() Face                  { return r.Best }
func (FallbackResult) Landmarks() geometry.Landmarks { return nil }
func (r FallbackResult) Faces() int                  { return r.Found }
func (FallbackResult) sealed()                       {}

// Detection is the normalized per-frame output of the adapter.
type Detection struct {
	Present    bool
	Confidence float64
	Landmarks  geometry.Landmarks
	Count      int

	// Source is the tagged result behind a present detection; nil otherwise.
	Source Result

	// Err is an absorbed detector failure, kept for logging and metrics.
	Err      error
	TimedOut bool
}

// Fallback reports whether the detection came from the fallback detector.
func (d Detection) Fallback() bool {
	_, ok := d.Source.(FallbackResult)
	return ok
}

func fromResult(r Result) Detection {
	if r == nil {
		return Detection{}
	}
	return Detection{
		Present:    true,
		Confidence: r.Face().Confidence,
		Landmarks:  r.Landmarks(),
		Count:      r.Faces(),
		Source:     r,
	}
}

// Config holds detector configuration
type Config struct {
	YuNetPath   string // YuNet ONNX face detector
	MeshPath    string // 468-point face landmark ONNX model
	CascadePath string // Haar cascade XML

	ConfidenceThresh   float64 // YuNet score threshold
	InputWidth         int
	InputHeight        int
	FallbackConfidence float64       // reported for cascade hits
	FrameBudget        time.Duration // per-frame detector time limit
	MaxFaces           int           // cap on counted faces
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		YuNetPath:          "models/face_detection_yunet.onnx",
		MeshPath:           "models/face_landmark.onnx",
		CascadePath:        "models/haarcascade_frontalface_default.xml",
		ConfidenceThresh:   0.5,
		InputWidth:         320,
		InputHeight:        320,
		FallbackConfidence: 0.6,
		FrameBudget:        250 * time.Millisecond,
		MaxFaces:           10,
	}
}

// SelectBest picks the face with the highest confidence, breaking ties by
// larger box area. ok is false for an empty slice.
func SelectBest(faces []Face) (best Face, ok bool) {
	for i, f := range faces {
		if i == 0 || f.Confidence > best.Confidence ||
			(f.Confidence == best.Confidence && f.Area() > best.Area()) {
			best = f
		}
	}
	return best, len(faces) > 0
}

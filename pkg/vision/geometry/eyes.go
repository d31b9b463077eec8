package geometry

import "math"

// EyeState classifies eyelid openness.
type EyeState string

const (
	EyeOpen     EyeState = "open"
	EyeBlinking EyeState = "blinking"
	EyeClosed   EyeState = "closed"
	EyeUnknown  EyeState = "unknown"
)

// GazeDirection classifies where the eye pair points.
type GazeDirection string

const (
	GazeAtScreen GazeDirection = "looking_at_screen"
	GazeAway     GazeDirection = "looking_away"
	GazeUnknown  GazeDirection = "unknown"
)

// EAR thresholds.
const (
	ClosedEAR   = 0.20
	BlinkingEAR = 0.25
)

// EyeTracking is the output of AnalyzeEyes.
type EyeTracking struct {
	State          EyeState      `json:"state"`
	Direction      GazeDirection `json:"direction"`
	Ratio          float64       `json:"ratio"`
	ScreenDistance float64       `json:"screen_distance"`
}

// UnknownEyeTracking is returned when landmarks are missing or sparse.
func UnknownEyeTracking() EyeTracking {
	return EyeTracking{State: EyeUnknown, Direction: GazeUnknown}
}

// AspectRatio computes the eye-aspect-ratio of one eye contour: eyelid
// separation over eye width. Separation is measured twice, as the straight
// top-bottom distance and as its vertical component, and the two are
// averaged. A degenerate (zero-width) eye yields 0.
func AspectRatio(e EyeContour) float64 {
	width := e.Outer.Dist(e.Inner)
	if width == 0 {
		return 0
	}
	a := e.Top.Dist(e.Bottom)
	b := math.Abs(e.Top.Y - e.Bottom.Y)
	return (a + b) / (2 * width)
}

// ClassifyEAR maps an averaged EAR to an eye state.
func ClassifyEAR(ear float64) EyeState {
	switch {
	case ear < ClosedEAR:
		return EyeClosed
	case ear < BlinkingEAR:
		return EyeBlinking
	default:
		return EyeOpen
	}
}

// AnalyzeEyes classifies eye openness from the averaged EAR of both eyes and
// gaze from the eye-pair centroid's distance to the frame center. The gaze
// rule uses the same threshold as EstimateHeadPose but a different point
// set, so either signal can fail without taking the other down.
func AnalyzeEyes(f Frame, lm Landmarks) EyeTracking {
	if !lm.Dense() || f.Width <= 0 || f.Height <= 0 {
		return UnknownEyeTracking()
	}

	left, right := lm.LeftEye(), lm.RightEye()
	ear := (AspectRatio(left) + AspectRatio(right)) / 2

	center := Midpoint(Centroid(left.Points()...), Centroid(right.Points()...))
	dist := center.Dist(f.Center())

	dir := GazeAway
	if dist < float64(f.Width)*ScreenGazeFraction {
		dir = GazeAtScreen
	}

	return EyeTracking{
		State:          ClassifyEAR(ear),
		Direction:      dir,
		Ratio:          ear,
		ScreenDistance: dist,
	}
}

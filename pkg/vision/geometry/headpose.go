package geometry

// PoseLabel is the coarse head direction.
type PoseLabel string

const (
	PoseCenter  PoseLabel = "center"
	PoseLeft    PoseLabel = "left"
	PoseRight   PoseLabel = "right"
	PoseUp      PoseLabel = "up"
	PoseDown    PoseLabel = "down"
	PoseUnknown PoseLabel = "unknown"
)

// Turned reports whether the label is one of the four off-center directions.
func (p PoseLabel) Turned() bool {
	switch p {
	case PoseLeft, PoseRight, PoseUp, PoseDown:
		return true
	}
	return false
}

// ScreenGazeFraction is the gaze-distance limit, as a fraction of frame
// width, under which the candidate counts as looking at the screen.
const ScreenGazeFraction = 0.3

// Axis thresholds for the pose label, as fractions of width/height.
const (
	poseLowFraction  = 0.4
	poseHighFraction = 0.6
)

// HeadPose is the output of EstimateHeadPose.
type HeadPose struct {
	LookingAtScreen bool      `json:"looking_at_screen"`
	Label           PoseLabel `json:"label"`
	GazeDistance    float64   `json:"gaze_distance"`
}

// UnknownHeadPose is returned when landmarks are missing or sparse.
func UnknownHeadPose() HeadPose {
	return HeadPose{Label: PoseUnknown}
}

// EstimateHeadPose approximates head direction from the outer eye corners.
// It is a 2D heuristic: the midpoint of the corners is compared with the
// frame center, and the label comes from simple axis thresholds.
func EstimateHeadPose(f Frame, lm Landmarks) HeadPose {
	if !lm.Dense() || f.Width <= 0 || f.Height <= 0 {
		return UnknownHeadPose()
	}

	w, h := float64(f.Width), float64(f.Height)
	left := lm[LeftEyeOuter]
	right := lm[RightEyeOuter]
	eyeCenter := Midpoint(left, right)

	gaze := eyeCenter.Dist(f.Center())

	label := PoseCenter
	switch {
	case left.X < w*poseLowFraction:
		label = PoseLeft
	case right.X > w*poseHighFraction:
		label = PoseRight
	case eyeCenter.Y < h*poseLowFraction:
		label = PoseUp
	case eyeCenter.Y > h*poseHighFraction:
		label = PoseDown
	}

	return HeadPose{
		LookingAtScreen: gaze < w*ScreenGazeFraction,
		Label:           label,
		GazeDistance:    gaze,
	}
}

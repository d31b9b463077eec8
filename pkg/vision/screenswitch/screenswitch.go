// Package screenswitch infers that a candidate has switched away from the
// interview tab or application. Five independent triggers each carry their
// own debounce; any one of them raises the flag for the current frame.
package screenswitch

import (
	"time"

	"github.com/triple4t/ai-interview/pkg/vision/geometry"
)

// Reason strings, one per trigger
const (
	ReasonAbsent       = "No face detected for extended period (likely tab switching)"
	ReasonSuddenMove   = "Sudden large face movement (possible tab switching)"
	ReasonLookingAway  = "Sustained looking away (possible tab switching)"
	ReasonEyesAway     = "Sustained eye movement away (possible tab switching)"
	ReasonHeadPoseHeld = "Sustained head pose change (possible tab switching)"
)

// Config holds the trigger thresholds. Movement is a fraction of frame
// width so the rule is resolution independent.
type Config struct {
	AbsenceTimeout   time.Duration `yaml:"absence_timeout"`
	MovementFraction float64       `yaml:"movement_fraction"`
	HeadAwayFrames   int           `yaml:"head_away_frames"`
	EyesAwayFrames   int           `yaml:"eyes_away_frames"`
	PoseHold         time.Duration `yaml:"pose_hold"`
}

// DefaultConfig returns the stock thresholds. The movement base is 50px on
// a 640px-wide frame; the sudden-move trigger fires at twice that.
func DefaultConfig() Config {
	return Config{
		AbsenceTimeout:   5 * time.Second,
		MovementFraction: 50.0 / 640.0,
		HeadAwayFrames:   30,
		EyesAwayFrames:   20,
		PoseHold:         2 * time.Second,
	}
}

// State is the session-scoped accumulator. Every field is named so the
// machine's full state can be inspected and snapshotted.
type State struct {
	LastActivity       time.Time
	LookingAwayFrames  int
	EyesAwayFrames     int
	LastHeadPoseLabel  geometry.PoseLabel
	HeadPoseChangeTime time.Time
	SwitchActive       bool
	SwitchStart        time.Time
	LastFaceCenter     geometry.Point
	HasFaceCenter      bool
}

// Input is everything one frame contributes to the inferencer.
type Input struct {
	Frame         geometry.Frame
	StablePresent bool
	HeadPose      geometry.HeadPose
	Eyes          geometry.EyeTracking
	Landmarks     geometry.Landmarks
}

// Result is the per-frame screen-switch signal.
type Result struct {
	Flag                  bool     `json:"flag"`
	Reasons               []string `json:"reasons"`
	Duration              float64  `json:"duration"`
	TimeSinceLastActivity float64  `json:"time_since_last_activity"`
}

// Inferencer evaluates the triggers frame by frame. Not safe for concurrent
// use; one per session.
type Inferencer struct {
	cfg   Config
	now   func() time.Time
	state State
}

// New creates an inferencer. now may be nil, in which case wall-clock time
// is used. Last activity starts at creation time.
func New(cfg Config, now func() time.Time) *Inferencer {
	def := DefaultConfig()
	if cfg.AbsenceTimeout <= 0 {
		cfg.AbsenceTimeout = def.AbsenceTimeout
	}
	if cfg.MovementFraction <= 0 {
		cfg.MovementFraction = def.MovementFraction
	}
	if cfg.HeadAwayFrames <= 0 {
		cfg.HeadAwayFrames = def.HeadAwayFrames
	}
	if cfg.EyesAwayFrames <= 0 {
		cfg.EyesAwayFrames = def.EyesAwayFrames
	}
	if cfg.PoseHold <= 0 {
		cfg.PoseHold = def.PoseHold
	}
	if now == nil {
		now = time.Now
	}
	return &Inferencer{
		cfg:   cfg,
		now:   now,
		state: State{LastActivity: now()},
	}
}

// State returns a snapshot of the accumulator
func (s *Inferencer) State() State {
	return s.state
}

// Update evaluates all five triggers for one frame.
func (s *Inferencer) Update(in Input) Result {
	now := s.now()
	st := &s.state
	reasons := []string{}

	sinceActivity := now.Sub(st.LastActivity)

	// 1. prolonged absence
	if !in.StablePresent && sinceActivity > s.cfg.AbsenceTimeout {
		reasons = append(reasons, ReasonAbsent)
	}

	// 2. sudden jump of the face center between frames
	if center, ok := in.Landmarks.FaceCenter(); ok {
		if st.HasFaceCenter {
			limit := 2 * s.cfg.MovementFraction * float64(in.Frame.Width)
			if center.Dist(st.LastFaceCenter) > limit {
				reasons = append(reasons, ReasonSuddenMove)
			}
		}
		st.LastFaceCenter = center
		st.HasFaceCenter = true
	}

	// 3. sustained head-pose looking away
	if in.StablePresent && known(in.HeadPose.Label) {
		if in.HeadPose.LookingAtScreen {
			st.LookingAwayFrames = 0
		} else {
			st.LookingAwayFrames++
		}
	}
	if st.LookingAwayFrames > s.cfg.HeadAwayFrames {
		reasons = append(reasons, ReasonLookingAway)
	}

	// 4. sustained eye gaze away
	if in.StablePresent {
		switch in.Eyes.Direction {
		case geometry.GazeAtScreen:
			st.EyesAwayFrames = 0
		case geometry.GazeAway:
			st.EyesAwayFrames++
		}
	}
	if st.EyesAwayFrames > s.cfg.EyesAwayFrames {
		reasons = append(reasons, ReasonEyesAway)
	}

	// 5. head pose label changed and held. The baseline is the centered
	// pose, or the first label seen; gaze does not move it.
	if label := in.HeadPose.Label; known(label) {
		switch {
		case st.LastHeadPoseLabel == "" || label == geometry.PoseCenter:
			st.LastHeadPoseLabel = label
			st.HeadPoseChangeTime = time.Time{}
		case label == st.LastHeadPoseLabel:
			st.HeadPoseChangeTime = time.Time{}
		case st.HeadPoseChangeTime.IsZero():
			st.HeadPoseChangeTime = now
		}
	}
	if !st.HeadPoseChangeTime.IsZero() && now.Sub(st.HeadPoseChangeTime) > s.cfg.PoseHold {
		reasons = append(reasons, ReasonHeadPoseHeld)
	}

	if in.StablePresent && in.HeadPose.LookingAtScreen {
		st.LastActivity = now
		sinceActivity = 0
	}

	flag := len(reasons) > 0
	switch {
	case flag && !st.SwitchActive:
		st.SwitchActive = true
		st.SwitchStart = now
	case !flag && st.SwitchActive:
		st.SwitchActive = false
		st.SwitchStart = time.Time{}
	}

	var duration float64
	if st.SwitchActive {
		duration = now.Sub(st.SwitchStart).Seconds()
	}

	return Result{
		Flag:                  flag,
		Reasons:               reasons,
		Duration:              duration,
		TimeSinceLastActivity: sinceActivity.Seconds(),
	}
}

func known(l geometry.PoseLabel) bool {
	return l != "" && l != geometry.PoseUnknown
}

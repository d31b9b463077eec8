// Package presence debounces per-frame face confidence into a stable
// "face present" flag.
package presence

// Default hysteresis thresholds
const (
	DefaultFlipUp   = 2
	DefaultFlipDown = 5
)

// Config holds the hysteresis thresholds
type Config struct {
	FlipUp   int `yaml:"flip_up"`
	FlipDown int `yaml:"flip_down"`
}

// DefaultConfig returns the standard asymmetric thresholds: quick to declare
// a face present, slow to declare it gone.
func DefaultConfig() Config {
	return Config{FlipUp: DefaultFlipUp, FlipDown: DefaultFlipDown}
}

// State is the session-scoped presence accumulator. The two counters are
// mutually exclusive: at most one is non-zero.
type State struct {
	PresentFrames int  `json:"consecutive_present_frames"`
	AbsentFrames  int  `json:"consecutive_absent_frames"`
	StablePresent bool `json:"stable_present"`
}

// Stabilizer applies hysteresis to a stream of confidences. Not safe for
// concurrent use; one per session.
type Stabilizer struct {
	cfg   Config
	state State
}

// New creates a stabilizer starting in the absent state
func New(cfg Config) *Stabilizer {
	if cfg.FlipUp < 1 {
		cfg.FlipUp = DefaultFlipUp
	}
	if cfg.FlipDown < 1 {
		cfg.FlipDown = DefaultFlipDown
	}
	return &Stabilizer{cfg: cfg}
}

// Update feeds one frame's confidence and returns the debounced flag.
func (s *Stabilizer) Update(confidence float64) bool {
	if confidence > 0 {
		s.state.PresentFrames++
		s.state.AbsentFrames = 0
		if !s.state.StablePresent && s.state.PresentFrames >= s.cfg.FlipUp {
			s.state.StablePresent = true
		}
	} else {
		s.state.AbsentFrames++
		s.state.PresentFrames = 0
		if s.state.StablePresent && s.state.AbsentFrames >= s.cfg.FlipDown {
			s.state.StablePresent = false
		}
	}
	return s.state.StablePresent
}

// Present returns the current debounced flag
func (s *Stabilizer) Present() bool {
	return s.state.StablePresent
}

// State returns a snapshot of the counters
func (s *Stabilizer) State() State {
	return s.state
}

// Reset returns the stabilizer to its initial absent state
func (s *Stabilizer) Reset() {
	s.state = State{}
}

// Package debug provides global verbose-trace switches
package debug

import "github.com/triple4t/ai-interview/internal/log"

// Enabled controls whether debug tracing is active
var Enabled bool

// Frames controls per-frame tracing (detections, heuristics, fused record).
// It is very verbose at 30 fps; enable with --debug-frames.
var Frames bool

// Log emits a debug trace if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// FrameLog emits a per-frame trace if frame tracing is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Debug(msg, args...)
	}
}

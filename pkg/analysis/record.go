// Package analysis defines the per-frame analysis record and the fusion step
// that scores attention and engagement and derives the recommendation and
// suspicious-behavior lists.
package analysis

import (
	"github.com/triple4t/ai-interview/pkg/vision/geometry"
	"github.com/triple4t/ai-interview/pkg/vision/screenswitch"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
)

// Engagement is the coarse engagement classification.
type Engagement string

const (
	EngagementLow    Engagement = "low"
	EngagementMedium Engagement = "medium"
	EngagementHigh   Engagement = "high"
)

// BBox is an axis-aligned box in frame pixels.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ObjectItem is one candidate region flagged by a contour heuristic.
// Confidence is a heuristic weight, not a calibrated probability.
type ObjectItem struct {
	Type        string  `json:"type"`
	BBox        BBox    `json:"bbox"`
	Confidence  float64 `json:"confidence"`
	Area        float64 `json:"area"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// ObjectReport aggregates the items a heuristic accepted.
type ObjectReport struct {
	Flag  bool         `json:"flag"`
	Count int          `json:"count"`
	Items []ObjectItem `json:"items"`
}

// NewObjectReport builds a report from accepted items
func NewObjectReport(items []ObjectItem) ObjectReport {
	if items == nil {
		items = []ObjectItem{}
	}
	return ObjectReport{Flag: len(items) > 0, Count: len(items), Items: items}
}

// MultipleFaces is the multi-face counter output.
type MultipleFaces struct {
	Count        int  `json:"count"`
	Flag         bool `json:"flag"`
	DenseCount   int  `json:"dense_count"`
	CascadeCount int  `json:"cascade_count"`
}

// NewMultipleFaces takes the larger of the two counts; under-counting is
// the worse failure for an integrity signal.
func NewMultipleFaces(dense, cascade int) MultipleFaces {
	n := max(dense, cascade)
	return MultipleFaces{Count: n, Flag: n > 1, DenseCount: dense, CascadeCount: cascade}
}

// Record is the complete per-frame judgment. It is immutable once built.
type Record struct {
	FaceDetected       bool                 `json:"face_detected"`
	FaceCount          int                  `json:"face_count"`
	Confidence         float64              `json:"confidence"`
	AttentionScore     float64              `json:"attention_score"`
	EngagementLevel    Engagement           `json:"engagement_level"`
	EyeTracking        geometry.EyeTracking `json:"eye_tracking"`
	HeadPose           geometry.HeadPose    `json:"head_pose"`
	MultipleFaces      MultipleFaces        `json:"multiple_faces"`
	MobileDevices      ObjectReport         `json:"mobile_devices"`
	SuspiciousObjects  ObjectReport         `json:"suspicious_objects"`
	ScreenSharing      screenswitch.Result  `json:"screen_sharing"`
	VoiceAnalysis      voicesignal.Snapshot `json:"voice_analysis"`
	Recommendations    []string             `json:"recommendations"`
	SuspiciousBehavior []string             `json:"suspicious_behavior"`
	Error              string               `json:"error,omitempty"`
}

// Error-record strings
const (
	ErrorRecommendation = "Please check camera connection"
	ErrorBehavior       = "Frame processing error"
)

// ErrorRecord returns a fully populated record at safe defaults carrying the
// failure message. It is what a frame turns into when processing fails
// unexpectedly.
func ErrorRecord(err error) Record {
	r := emptyRecord()
	r.Recommendations = []string{ErrorRecommendation}
	r.SuspiciousBehavior = []string{ErrorBehavior}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func emptyRecord() Record {
	return Record{
		EngagementLevel:    EngagementLow,
		EyeTracking:        geometry.UnknownEyeTracking(),
		HeadPose:           geometry.UnknownHeadPose(),
		MobileDevices:      NewObjectReport(nil),
		SuspiciousObjects:  NewObjectReport(nil),
		ScreenSharing:      screenswitch.Result{Reasons: []string{}},
		VoiceAnalysis:      voicesignal.Neutral(),
		Recommendations:    []string{},
		SuspiciousBehavior: []string{},
	}
}

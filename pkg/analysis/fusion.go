package analysis

import (
	"fmt"

	"github.com/triple4t/ai-interview/pkg/vision/geometry"
	"github.com/triple4t/ai-interview/pkg/vision/screenswitch"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
)

// Attention weights
const (
	weightHeadPose = 0.4
	weightEyesOpen = 0.3
	weightEyeGaze  = 0.3
)

// Voice rule thresholds
const (
	HighNervousness = 0.7
	LowConfidence   = 0.3
)

// Signals is everything the fusion step combines for one frame.
type Signals struct {
	StablePresent bool
	Confidence    float64
	HeadPose      geometry.HeadPose
	Eyes          geometry.EyeTracking
	MultipleFaces MultipleFaces
	Mobile        ObjectReport
	Suspicious    ObjectReport
	Screen        screenswitch.Result
	Voice         voicesignal.Snapshot
}

// AttentionScore sums the weighted indicator terms.
func AttentionScore(head geometry.HeadPose, eyes geometry.EyeTracking) float64 {
	var score float64
	if head.LookingAtScreen {
		score += weightHeadPose
	}
	if eyes.State == geometry.EyeOpen {
		score += weightEyesOpen
	}
	if eyes.Direction == geometry.GazeAtScreen {
		score += weightEyeGaze
	}
	return score
}

// ClassifyEngagement maps attention and detector confidence to a level.
func ClassifyEngagement(attention, confidence float64) Engagement {
	switch {
	case attention > 0.8 && confidence > 0.7:
		return EngagementHigh
	case attention > 0.5 && confidence > 0.5:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

// Fuse builds the analysis record. When confidence is zero the record
// short-circuits to unknown values and only the screen-switch signal is
// carried through.
func Fuse(s Signals) Record {
	if s.Confidence <= 0 {
		return absentRecord(s)
	}

	r := emptyRecord()
	r.FaceDetected = s.StablePresent
	r.FaceCount = s.MultipleFaces.Count
	r.Confidence = s.Confidence
	r.AttentionScore = AttentionScore(s.HeadPose, s.Eyes)
	r.EngagementLevel = ClassifyEngagement(r.AttentionScore, s.Confidence)
	r.EyeTracking = s.Eyes
	r.HeadPose = s.HeadPose
	r.MultipleFaces = s.MultipleFaces
	r.MobileDevices = NewObjectReport(s.Mobile.Items)
	r.SuspiciousObjects = NewObjectReport(s.Suspicious.Items)
	r.ScreenSharing = s.Screen
	r.VoiceAnalysis = s.Voice

	rl := newRuleList()
	for _, rule := range rules {
		rule(&r, rl)
	}
	r.Recommendations = rl.recs
	r.SuspiciousBehavior = rl.sus
	return r
}

func absentRecord(s Signals) Record {
	r := emptyRecord()
	r.FaceDetected = s.StablePresent
	r.ScreenSharing = s.Screen
	if r.ScreenSharing.Reasons == nil {
		r.ScreenSharing.Reasons = []string{}
	}

	rl := newRuleList()
	screenSwitchRule(&r, rl)
	r.Recommendations = rl.recs
	r.SuspiciousBehavior = rl.sus
	return r
}

type ruleList struct {
	recs []string
	sus  []string
}

func newRuleList() *ruleList {
	return &ruleList{recs: []string{}, sus: []string{}}
}

func (l *ruleList) add(rec, sus string) {
	l.recs = append(l.recs, rec)
	l.sus = append(l.sus, sus)
}

// Each rule reads the other components' outputs and appends at most one
// recommendation and one suspicious-behavior entry. Order is the output order.
var rules = []func(*Record, *ruleList){
	func(r *Record, l *ruleList) {
		if !r.HeadPose.LookingAtScreen {
			l.add("Please look directly at the camera", "User not looking at screen")
		}
	},
	func(r *Record, l *ruleList) {
		if p := r.HeadPose.Label; p.Turned() {
			l.add(fmt.Sprintf("Please face the camera directly (currently looking %s)", p), fmt.Sprintf("Head turned %s", p))
		}
	},
	func(r *Record, l *ruleList) {
		if r.EyeTracking.State == geometry.EyeClosed {
			l.add("Keep your eyes open and focused", "Eyes closed - may indicate inattention")
		}
	},
	func(r *Record, l *ruleList) {
		if r.EyeTracking.Direction == geometry.GazeAway {
			l.add("Please look at the camera", "Eyes not focused on screen")
		}
	},
	func(r *Record, l *ruleList) {
		if r.MultipleFaces.Flag {
			l.add("Only one person should be visible in the camera", fmt.Sprintf("Multiple faces detected (%d people)", r.MultipleFaces.Count))
		}
	},
	screenSwitchRule,
	func(r *Record, l *ruleList) {
		if r.MobileDevices.Flag {
			l.add("Please remove mobile devices from camera view", fmt.Sprintf("Mobile device detected (%d devices)", r.MobileDevices.Count))
		}
	},
	func(r *Record, l *ruleList) {
		if r.SuspiciousObjects.Flag {
			l.add("Please remove any papers, notes, or reference materials", fmt.Sprintf("Suspicious objects detected (%d objects)", r.SuspiciousObjects.Count))
		}
	},
	// The not-speaking snapshot scores zero confidence; only a spoken utterance is judged.
	func(r *Record, l *ruleList) {
		if r.VoiceAnalysis.Speaking && r.VoiceAnalysis.Nervousness > HighNervousness {
			l.add("Try to speak more confidently and clearly", "High nervousness detected in voice")
		}
	},
	func(r *Record, l *ruleList) {
		if r.VoiceAnalysis.Speaking && r.VoiceAnalysis.Confidence < LowConfidence {
			l.add("Speak with more confidence and clarity", "Low confidence detected in voice")
		}
	},
	func(r *Record, l *ruleList) {
		if r.EngagementLevel == EngagementLow {
			l.add("Please maintain focus and engagement", "Low engagement detected")
		}
	},
}

func screenSwitchRule(r *Record, l *ruleList) {
	if r.ScreenSharing.Flag {
		l.add("Please stay focused on the interview - avoid switching tabs or applications", "Potential tab/application switching detected")
	}
}

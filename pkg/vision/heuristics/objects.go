package heuristics

import (
	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/pkg/analysis"
)

// Item types
const (
	TypeMobileDevice = "potential_mobile_device"
	TypeDarkDevice   = "dark_mobile_device"
	TypePaperNote    = "potential_paper_note"
)

// Mobile-device thresholds, in reference pixels where applicable
const (
	mobileEdgeLow        = 30
	mobileEdgeHigh       = 100
	mobileEdgePrefilter  = 500.0
	mobileDarkPrefilter  = 1000.0
	mobileMinArea        = 2000.0
	mobileMinAspect      = 0.8
	mobileMaxAspect      = 4.0
	mobileMinRelArea     = 0.001
	mobileMaxRelArea     = 0.1
	mobileDedupDistance  = 50.0
	mobileEdgeConfidence = 0.8
	mobileDarkConfidence = 0.9
)

// Paper thresholds
const (
	paperEdgeLow    = 50
	paperEdgeHigh   = 150
	paperPrefilter  = 2000.0
	paperMinArea    = 3000.0
	paperMinAspect  = 0.5
	paperMaxAspect  = 2.0
	paperConfidence = 0.6
)

// MobileDevices runs the edge pass and the dark-region pass and unions the
// results. Dark candidates whose top-left corner lies within the dedup
// distance of an accepted box on both axes are dropped.
func (a *Analyzer) MobileDevices(img gocv.Mat) analysis.ObjectReport {
	if img.Empty() {
		return analysis.NewObjectReport(nil)
	}
	sc := scaleFor(img)
	var items []analysis.ObjectItem

	edges := edgeMask(img, mobileEdgeLow, mobileEdgeHigh)
	defer edges.Close()
	for _, c := range externalContours(edges) {
		if c.area <= mobileEdgePrefilter*sc.area || !mobileShape(c, sc) {
			continue
		}
		if a.hasFace(img, c.rect) {
			continue
		}
		rel := c.area / sc.frame
		if rel <= mobileMinRelArea || rel >= mobileMaxRelArea {
			continue
		}
		items = append(items, item(TypeMobileDevice, mobileEdgeConfidence, c))
	}

	dark := darkMask(img)
	defer dark.Close()
	for _, c := range externalContours(dark) {
		if c.area <= mobileDarkPrefilter*sc.area || !mobileShape(c, sc) {
			continue
		}
		if duplicate(items, c, mobileDedupDistance*sc.width) {
			continue
		}
		items = append(items, item(TypeDarkDevice, mobileDarkConfidence, c))
	}

	if len(items) > 0 {
		log.Debug("mobile devices detected", "count", len(items))
	}
	return analysis.NewObjectReport(items)
}

func mobileShape(c candidate, sc scale) bool {
	return c.aspect >= mobileMinAspect && c.aspect <= mobileMaxAspect && c.area > mobileMinArea*sc.area
}

func duplicate(items []analysis.ObjectItem, c candidate, dist float64) bool {
	for _, it := range items {
		dx := float64(c.rect.Min.X - it.BBox.X)
		dy := float64(c.rect.Min.Y - it.BBox.Y)
		if dx < dist && dx > -dist && dy < dist && dy > -dist {
			return true
		}
	}
	return false
}

// SuspiciousObjects looks for paper- or note-shaped regions: squarer than
// a phone and larger.
func (a *Analyzer) SuspiciousObjects(img gocv.Mat) analysis.ObjectReport {
	if img.Empty() {
		return analysis.NewObjectReport(nil)
	}
	sc := scaleFor(img)
	var items []analysis.ObjectItem

	edges := edgeMask(img, paperEdgeLow, paperEdgeHigh)
	defer edges.Close()
	for _, c := range externalContours(edges) {
		if c.area <= paperPrefilter*sc.area {
			continue
		}
		if c.aspect < paperMinAspect || c.aspect > paperMaxAspect || c.area <= paperMinArea*sc.area {
			continue
		}
		if a.hasFace(img, c.rect) {
			continue
		}
		items = append(items, item(TypePaperNote, paperConfidence, c))
	}
	return analysis.NewObjectReport(items)
}

func item(kind string, conf float64, c candidate) analysis.ObjectItem {
	return analysis.ObjectItem{
		Type: kind,
		BBox: analysis.BBox{
			X:      c.rect.Min.X,
			Y:      c.rect.Min.Y,
			Width:  c.rect.Dx(),
			Height: c.rect.Dy(),
		},
		Confidence:  conf,
		Area:        c.area,
		AspectRatio: c.aspect,
	}
}

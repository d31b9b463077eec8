package heuristics

import (
	"image"

	"gocv.io/x/gocv"
)

// Pixel thresholds are calibrated on a 640x480 frame and scaled by frame
// area (or width, for distances) so behavior is resolution independent.
const (
	refWidth  = 640
	refHeight = 480
)

type scale struct {
	area  float64 // frame area / reference area
	width float64 // frame width / reference width
	frame float64 // frame area in pixels
}

func scaleFor(img gocv.Mat) scale {
	w, h := float64(img.Cols()), float64(img.Rows())
	return scale{
		area:  (w * h) / (refWidth * refHeight),
		width: w / refWidth,
		frame: w * h,
	}
}

type candidate struct {
	rect   image.Rectangle
	area   float64
	aspect float64
}

// externalContours returns the bounding box, area and width/height aspect of
// every external contour in a binary mask.
func externalContours(mask gocv.Mat) []candidate {
	pv := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer pv.Close()

	out := make([]candidate, 0, pv.Size())
	for i := 0; i < pv.Size(); i++ {
		c := pv.At(i)
		r := gocv.BoundingRect(c)
		var aspect float64
		if r.Dy() > 0 {
			aspect = float64(r.Dx()) / float64(r.Dy())
		}
		out = append(out, candidate{rect: r, area: gocv.ContourArea(c), aspect: aspect})
	}
	return out
}

// edgeMask runs grayscale, 5x5 Gaussian blur and Canny.
func edgeMask(img gocv.Mat, low, high float32) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	gocv.Canny(blurred, &edges, low, high)
	return edges
}

// darkMask selects near-black pixels: any hue, any saturation, value <= 50.
func darkMask(img gocv.Mat) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(180, 255, 50, 0), &mask)
	return mask
}

// hasFace runs the face finder on the candidate region.
func (a *Analyzer) hasFace(img gocv.Mat, r image.Rectangle) bool {
	if a.faces == nil {
		return false
	}
	r = r.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if r.Empty() {
		return false
	}
	roi := img.Region(r)
	defer roi.Close()
	return a.faces.ContainsFace(roi)
}

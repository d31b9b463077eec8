// Package geometry provides landmark-based face analyzers: head pose and
// eye state/gaze. Everything here is a pure function of the frame size and a
// landmark set in pixel coordinates.
package geometry

import "math"

// Point is a 2D position in frame pixel coordinates.
type Point struct {
	X, Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Midpoint returns the point halfway between p and q.
func Midpoint(p, q Point) Point {
	return p.Add(q).Scale(0.5)
}

// Centroid returns the mean of pts, or the zero point for an empty slice.
func Centroid(pts ...Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pts)))
}

// Frame describes the dimensions of the image landmarks were taken from.
type Frame struct {
	Width, Height int
}

// Center returns the geometric center of the frame.
func (f Frame) Center() Point {
	return Point{X: float64(f.Width) / 2, Y: float64(f.Height) / 2}
}

// Face mesh topology (468-point dense mesh). Only the indices the analyzers
// read are named here.
const (
	MeshPointCount = 468

	NoseTip = 4

	LeftEyeOuter  = 33
	LeftEyeTop    = 159
	LeftEyeInner  = 133
	LeftEyeBottom = 145

	RightEyeOuter  = 263
	RightEyeTop    = 386
	RightEyeInner  = 362
	RightEyeBottom = 374
)

// Landmarks is an ordered set of facial landmark points in pixel space.
type Landmarks []Point

// Dense reports whether the set carries the full mesh the analyzers need.
func (l Landmarks) Dense() bool {
	return len(l) >= MeshPointCount
}

// EyeContour is the 4-point outline of one eye: the two corners plus the
// top and bottom eyelid points.
type EyeContour struct {
	Outer, Top, Inner, Bottom Point
}

// Points returns the contour points in outline order.
func (e EyeContour) Points() []Point {
	return []Point{e.Outer, e.Top, e.Inner, e.Bottom}
}

// LeftEye returns the left-eye contour. Callers must check Dense first.
func (l Landmarks) LeftEye() EyeContour {
	return EyeContour{Outer: l[LeftEyeOuter], Top: l[LeftEyeTop], Inner: l[LeftEyeInner], Bottom: l[LeftEyeBottom]}
}

// RightEye returns the right-eye contour. Callers must check Dense first.
func (l Landmarks) RightEye() EyeContour {
	return EyeContour{Outer: l[RightEyeOuter], Top: l[RightEyeTop], Inner: l[RightEyeInner], Bottom: l[RightEyeBottom]}
}

// FaceCenter returns the nose tip, used as the face's reference position.
// ok is false when the set is not dense.
func (l Landmarks) FaceCenter() (p Point, ok bool) {
	if !l.Dense() {
		return Point{}, false
	}
	return l[NoseTip], true
}

package geometry

// NewMesh builds a full-topology landmark set with the named eye and nose
// points filled in and every other point at the nose position. It exists
// for synthetic fixtures in tests across the vision packages; detectors
// produce real meshes.
func NewMesh(left, right EyeContour, nose Point) Landmarks {
	lm := make(Landmarks, MeshPointCount)
	for i := range lm {
		lm[i] = nose
	}
	lm[LeftEyeOuter], lm[LeftEyeTop], lm[LeftEyeInner], lm[LeftEyeBottom] = left.Outer, left.Top, left.Inner, left.Bottom
	lm[RightEyeOuter], lm[RightEyeTop], lm[RightEyeInner], lm[RightEyeBottom] = right.Outer, right.Top, right.Inner, right.Bottom
	lm[NoseTip] = nose
	return lm
}

// Offset returns a copy of lm translated by (dx, dy). Used with NewMesh
// to build moved or turned fixtures.
func (l Landmarks) Offset(dx, dy float64) Landmarks {
	out := make(Landmarks, len(l))
	for i, p := range l {
		out[i] = Point{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}

package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Haar detection parameters
const (
	cascadeScale        = 1.1
	cascadeMinNeighbors = 4
)

// Cascade wraps a Haar face cascade. It serves as the fallback face
// detector, the classical face counter, and the face check used to keep
// object heuristics from flagging a face.
type Cascade struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascade loads a Haar cascade XML file
func NewCascade(path string) (*Cascade, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return nil, fmt.Errorf("failed to load cascade from %s", path)
	}
	return &Cascade{classifier: c}, nil
}

func (c *Cascade) detect(img gocv.Mat) []image.Rectangle {
	if c == nil || img.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.DetectMultiScaleWithParams(gray, cascadeScale, cascadeMinNeighbors, 0,
		image.Point{}, image.Point{})
}

// DetectFaces returns cascade hits. The cascade has no score, so
// Confidence is left at zero; the adapter substitutes its fallback value.
func (c *Cascade) DetectFaces(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	rects := c.detect(img)
	faces := make([]Face, len(rects))
	for i, r := range rects {
		faces[i] = Face{Box: r}
	}
	return faces, nil
}

// CountFaces returns the number of cascade hits in img
func (c *Cascade) CountFaces(img gocv.Mat) int {
	return len(c.detect(img))
}

// ContainsFace reports whether the region holds a face
func (c *Cascade) ContainsFace(roi gocv.Mat) bool {
	return len(c.detect(roi)) > 0
}

// Close releases the classifier
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}

package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNet uses OpenCV's FaceDetectorYN as the primary face detector
type YuNet struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex // FaceDetectorYN is not safe for concurrent use
}

// NewYuNet loads the YuNet ONNX model
func NewYuNet(cfg Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.YuNetPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.YuNetPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.YuNetPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight), // updated per frame
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{detector: detector}, nil
}

// DetectFaces returns every face above the score threshold
func (d *YuNet) DetectFaces(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	d.detector.Detect(img, &out)

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	faces := make([]Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		// Row layout: 0-3 box (x, y, w, h in pixels), 4-13 five landmark
		// pairs, 14 score.
		x := int(out.GetFloatAt(r, 0))
		y := int(out.GetFloatAt(r, 1))
		w := int(out.GetFloatAt(r, 2))
		h := int(out.GetFloatAt(r, 3))

		box := image.Rect(x, y, x+w, y+h).Intersect(bounds)
		if box.Empty() {
			continue
		}
		faces = append(faces, Face{Box: box, Confidence: float64(out.GetFloatAt(r, 14))})
	}
	return faces, nil
}

// Close releases the detector
func (d *YuNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/pkg/vision/geometry"
)

const (
	meshInputSize = 192
	// The face crop is grown by this fraction on every side so the mesh
	// model sees the whole head, as it was trained.
	meshCropMargin = 0.25
)

// FaceMesh runs a 468-point face landmark ONNX model on a face crop
type FaceMesh struct {
	net gocv.Net
	mu  sync.Mutex
}

// NewFaceMesh loads the landmark model
func NewFaceMesh(cfg Config) (*FaceMesh, error) {
	if _, err := os.Stat(cfg.MeshPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.MeshPath)
	}

	net := gocv.ReadNetFromONNX(cfg.MeshPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load face mesh model from %s", cfg.MeshPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &FaceMesh{net: net}, nil
}

// Landmarks returns the mesh for the face in box, in frame pixels
func (m *FaceMesh) Landmarks(img gocv.Mat, box image.Rectangle) (geometry.Landmarks, error) {
	crop := expand(box, meshCropMargin).Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if crop.Empty() {
		return nil, fmt.Errorf("face box %v outside frame", box)
	}

	roi := img.Region(crop)
	defer roi.Close()

	blob := gocv.BlobFromImage(roi, 1.0/255.0, image.Pt(meshInputSize, meshInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.mu.Lock()
	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	m.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read mesh output: %w", err)
	}
	if len(data) < geometry.MeshPointCount*3 {
		return nil, fmt.Errorf("mesh output has %d values, want %d", len(data), geometry.MeshPointCount*3)
	}

	sx := float64(crop.Dx()) / meshInputSize
	sy := float64(crop.Dy()) / meshInputSize
	lm := make(geometry.Landmarks, geometry.MeshPointCount)
	for i := range lm {
		// x, y, z triplets in model input pixels
		lm[i] = geometry.Point{
			X: float64(crop.Min.X) + float64(data[i*3])*sx,
			Y: float64(crop.Min.Y) + float64(data[i*3+1])*sy,
		}
	}
	return lm, nil
}

// Close releases the network
func (m *FaceMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

func expand(r image.Rectangle, frac float64) image.Rectangle {
	dx := int(float64(r.Dx()) * frac)
	dy := int(float64(r.Dy()) * frac)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
}

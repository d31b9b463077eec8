package detection

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// findModel looks for a model file under the repository's models directory.
func findModel(name string) string {
	for _, dir := range []string{"../../../models", "../../models", "models"} {
		abs, err := filepath.Abs(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}

func TestYuNet_SolidFrameHasNoFaces(t *testing.T) {
	path := findModel("face_detection_yunet.onnx")
	if path == "" {
		t.Skip("YuNet model not found, skipping test")
	}
	cfg := DefaultConfig()
	cfg.YuNetPath = path

	d, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer d.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	faces, err := d.DetectFaces(frame)
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("found %d faces in a solid frame", len(faces))
	}
}

func TestCascade_SolidFrameHasNoFaces(t *testing.T) {
	path := findModel("haarcascade_frontalface_default.xml")
	if path == "" {
		t.Skip("Haar cascade not found, skipping test")
	}
	c, err := NewCascade(path)
	if err != nil {
		t.Fatalf("NewCascade failed: %v", err)
	}
	defer c.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if n := c.CountFaces(frame); n != 0 {
		t.Errorf("CountFaces() = %d, want 0", n)
	}
	if c.ContainsFace(frame) {
		t.Error("ContainsFace() = true on a solid frame")
	}
}

func TestFaceMesh_ReturnsFullTopology(t *testing.T) {
	path := findModel("face_landmark.onnx")
	if path == "" {
		t.Skip("face mesh model not found, skipping test")
	}
	cfg := DefaultConfig()
	cfg.MeshPath = path

	m, err := NewFaceMesh(cfg)
	if err != nil {
		t.Fatalf("NewFaceMesh failed: %v", err)
	}
	defer m.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(120, 120, 120, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	lm, err := m.Landmarks(frame, image.Rect(220, 140, 420, 340))
	if err != nil {
		t.Fatalf("Landmarks failed: %v", err)
	}
	if !lm.Dense() {
		t.Errorf("got %d landmarks", len(lm))
	}
}

package heuristics

import (
	"context"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

var black = color.RGBA{0, 0, 0, 0}

// grayFrame returns a uniform mid-gray 640x480 BGR frame.
func grayFrame(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(160, 160, 160, 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

// frameWithRect draws a filled black rectangle of size w x h at (x, y).
func frameWithRect(t *testing.T, x, y, w, h int) gocv.Mat {
	t.Helper()
	m := grayFrame(t)
	gocv.Rectangle(&m, image.Rect(x, y, x+w, y+h), black, -1)
	return m
}

type stubFinder struct{ found bool }

func (s stubFinder) ContainsFace(gocv.Mat) bool { return s.found }

type stubCounter struct{ n int }

func (s stubCounter) CountFaces(gocv.Mat) int { return s.n }

func TestMobileDevices_DarkRectangle(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		flagged bool
	}{
		{"aspect 2.0 area 5000", 100, 50, true},
		{"aspect 6.0 area ~5000", 174, 29, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := New(nil, nil, 0)
			rep := a.MobileDevices(frameWithRect(t, 270, 215, tc.w, tc.h))
			if rep.Flag != tc.flagged {
				t.Fatalf("Flag = %v, want %v (items %+v)", rep.Flag, tc.flagged, rep.Items)
			}
			if rep.Count != len(rep.Items) {
				t.Errorf("Count = %d, items = %d", rep.Count, len(rep.Items))
			}
		})
	}
}

func TestMobileDevices_DeduplicatesPasses(t *testing.T) {
	a := New(nil, nil, 0)
	rep := a.MobileDevices(frameWithRect(t, 270, 215, 100, 50))
	if rep.Count != 1 {
		t.Errorf("Count = %d, want edge and dark hits merged into 1 (items %+v)", rep.Count, rep.Items)
	}
	it := rep.Items[0]
	if it.Confidence != mobileEdgeConfidence && it.Confidence != mobileDarkConfidence {
		t.Errorf("Confidence = %v", it.Confidence)
	}
	if it.AspectRatio < 1.8 || it.AspectRatio > 2.2 {
		t.Errorf("AspectRatio = %v, want ~2", it.AspectRatio)
	}
}

func TestMobileDevices_UniformFrame(t *testing.T) {
	a := New(nil, nil, 0)
	if rep := a.MobileDevices(grayFrame(t)); rep.Flag || rep.Items == nil {
		t.Errorf("MobileDevices(uniform) = %+v", rep)
	}
}

func TestMobileDevices_TooSmall(t *testing.T) {
	a := New(nil, nil, 0)
	if rep := a.MobileDevices(frameWithRect(t, 300, 200, 40, 30)); rep.Flag {
		t.Errorf("1200px² rectangle flagged: %+v", rep.Items)
	}
}

func TestSuspiciousObjects(t *testing.T) {
	tests := []struct {
		name    string
		finder  FaceFinder
		w, h    int
		flagged bool
	}{
		{"note-shaped", nil, 120, 100, true},
		{"too elongated", nil, 240, 60, false},
		{"too small", nil, 50, 50, false},
		{"region is a face", stubFinder{found: true}, 120, 100, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := New(tc.finder, nil, 0)
			rep := a.SuspiciousObjects(frameWithRect(t, 250, 180, tc.w, tc.h))
			if rep.Flag != tc.flagged {
				t.Errorf("Flag = %v, want %v (items %+v)", rep.Flag, tc.flagged, rep.Items)
			}
			for _, it := range rep.Items {
				if it.Type != TypePaperNote {
					t.Errorf("Type = %q", it.Type)
				}
			}
		})
	}
}

func TestMultipleFaces(t *testing.T) {
	tests := []struct {
		name    string
		dense   int
		cascade int
		count   int
		flag    bool
	}{
		{"single", 1, 1, 1, false},
		{"cascade sees more", 1, 2, 2, true},
		{"dense sees more", 3, 1, 3, true},
		{"dense capped", 25, 0, 10, true},
		{"none", 0, 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := New(nil, stubCounter{n: tc.cascade}, 10)
			got := a.MultipleFaces(grayFrame(t), tc.dense)
			if got.Count != tc.count || got.Flag != tc.flag {
				t.Errorf("MultipleFaces() = %+v, want count %d flag %v", got, tc.count, tc.flag)
			}
		})
	}
}

func TestRun_CombinesHeuristics(t *testing.T) {
	a := New(stubFinder{}, stubCounter{n: 2}, 0)
	rep, err := a.Run(context.Background(), frameWithRect(t, 270, 215, 100, 50), 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.MultipleFaces.Flag || rep.MultipleFaces.Count != 2 {
		t.Errorf("MultipleFaces = %+v", rep.MultipleFaces)
	}
	if !rep.Mobile.Flag {
		t.Error("mobile device not flagged")
	}
}

type panicCounter struct{}

func (panicCounter) CountFaces(gocv.Mat) int { panic("cascade failure") }

func TestRun_PanicIsReported(t *testing.T) {
	a := New(nil, panicCounter{}, 0)
	rep, err := a.Run(context.Background(), grayFrame(t), 1)
	if err == nil {
		t.Fatal("expected error from panicking counter")
	}
	if rep.MultipleFaces.Count != 0 || rep.Mobile.Items == nil {
		t.Errorf("report not at defaults: %+v", rep)
	}
}

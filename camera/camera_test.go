package camera

import (
	"math"
	"testing"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 0.01
}

func TestNew(t *testing.T) {
	cam := New(1280, 720, 120)

	if cam.X != 0 || cam.Z != 0 {
		t.Errorf("expected camera at origin, got (%f, %f)", cam.X, cam.Z)
	}
	if !near(cam.Zoom, 6) {
		t.Errorf("expected fit zoom 6, got %f", cam.Zoom)
	}
}

func TestWorldToScreenCentered(t *testing.T) {
	cam := New(1280, 720, 120)

	sx, sy := cam.WorldToScreen(0, 0)
	if !near(sx, 640) || !near(sy, 360) {
		t.Errorf("expected screen center (640, 360), got (%f, %f)", sx, sy)
	}
}

func TestNorthIsUp(t *testing.T) {
	cam := New(1280, 720, 120)

	_, sy := cam.WorldToScreen(0, 10)
	if sy >= 360 {
		t.Errorf("expected north above center, got y=%f", sy)
	}
	sx, _ := cam.WorldToScreen(10, 0)
	if sx <= 640 {
		t.Errorf("expected east right of center, got x=%f", sx)
	}
}

func TestScreenToWorldRoundtrip(t *testing.T) {
	cam := New(1280, 720, 120)
	cam.Pan(50, -30)
	cam.ZoomBy(1.7)

	testCases := []struct{ sx, sy float32 }{
		{640, 360},  // center
		{100, 100},  // top-left
		{1200, 600}, // near bottom-right
	}

	for _, tc := range testCases {
		wx, wz := cam.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := cam.WorldToScreen(wx, wz)
		if !near(sx, tc.sx) || !near(sy, tc.sy) {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, wx, wz, sx, sy)
		}
	}
}

func TestPanClampsToArea(t *testing.T) {
	cam := New(1280, 720, 120)
	cam.Pan(1e6, 1e6)
	if cam.X != 60 || cam.Z != -60 {
		t.Errorf("expected clamp to (60, -60), got (%f, %f)", cam.X, cam.Z)
	}
}

func TestZoomClamped(t *testing.T) {
	cam := New(1280, 720, 120)

	cam.SetZoom(1e6)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected max zoom %f, got %f", cam.MaxZoom, cam.Zoom)
	}
	cam.SetZoom(0)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("expected min zoom %f, got %f", cam.MinZoom, cam.Zoom)
	}
	cam.Reset()
	if !near(cam.Zoom, 6) {
		t.Errorf("reset zoom = %f", cam.Zoom)
	}
}

func TestIsVisible(t *testing.T) {
	cam := New(1280, 720, 120)
	cam.SetZoom(12) // visible half extents 53.3 x 30

	tests := []struct {
		name   string
		x, z   float32
		radius float32
		want   bool
	}{
		{"center", 0, 0, 0, true},
		{"inside", 50, 25, 0, true},
		{"outside", 0, 40, 1, false},
		{"radius reaches in", 0, 31, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cam.IsVisible(tt.x, tt.z, tt.radius); got != tt.want {
				t.Errorf("IsVisible(%v, %v, %v) = %v, want %v", tt.x, tt.z, tt.radius, got, tt.want)
			}
		})
	}
}

func TestResize(t *testing.T) {
	cam := New(1280, 720, 120)
	cam.SetZoom(cam.MinZoom)
	cam.Resize(2560, 1440)
	if cam.Zoom < cam.MinZoom {
		t.Errorf("zoom %f below new min %f", cam.Zoom, cam.MinZoom)
	}
	if !near(cam.MinZoom, 6) {
		t.Errorf("min zoom = %f, want 6", cam.MinZoom)
	}
}

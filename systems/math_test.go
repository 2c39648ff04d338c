package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

const angleTol = 1e-9

func TestYawRoundTrip(t *testing.T) {
	for _, a := range []float64{0, 0.3, -1.2, math.Pi / 2, 3.1} {
		if got := Yaw(YawQuat(a)); math.Abs(normalizeAngle(got-a)) > angleTol {
			t.Errorf("Yaw(YawQuat(%v)) = %v", a, got)
		}
	}
}

func TestForwardAxes(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
		x, z  float64
	}{
		{"north", 0, 0, 1},
		{"east", math.Pi / 2, 1, 0},
		{"south", math.Pi, 0, -1},
		{"west", -math.Pi / 2, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Forward(YawQuat(tt.angle))
			if math.Abs(f.X-tt.x) > angleTol || math.Abs(f.Z-tt.z) > angleTol || f.Y != 0 {
				t.Errorf("Forward = %v, want (%v, 0, %v)", f, tt.x, tt.z)
			}
		})
	}
}

func TestLookAt(t *testing.T) {
	q, ok := LookAt(r2.Vec{X: 1, Y: 1})
	if !ok {
		t.Fatal("LookAt reported zero direction")
	}
	if got := Yaw(q); math.Abs(got-math.Pi/4) > angleTol {
		t.Errorf("yaw = %v, want Pi/4", got)
	}
	if _, ok := LookAt(r2.Vec{}); ok {
		t.Error("LookAt of zero vector should fail")
	}
}

func TestTurnComposes(t *testing.T) {
	q := Turn(Turn(Identity, 0.4), 0.5)
	if got := Yaw(q); math.Abs(got-0.9) > angleTol {
		t.Errorf("yaw = %v, want 0.9", got)
	}
}

func TestSlerp(t *testing.T) {
	a, b := YawQuat(0), YawQuat(1)
	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"start", 0, 0},
		{"half", 0.5, 0.5},
		{"end", 1, 1},
		{"clamped low", -3, 0},
		{"clamped high", 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Slerp(a, b, tt.t)
			if got := Yaw(q); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("yaw = %v, want %v", got, tt.want)
			}
			if n := quat.Abs(q); math.Abs(n-1) > 1e-9 {
				t.Errorf("|q| = %v, want 1", n)
			}
		})
	}
}

func TestSlerpTakesShortArc(t *testing.T) {
	a := YawQuat(3)
	b := quat.Scale(-1, YawQuat(-3))
	got := Yaw(Slerp(a, b, 0.5))
	if math.Abs(math.Abs(got)-math.Pi) > 1e-6 {
		t.Errorf("yaw = %v, want +-Pi", got)
	}
}

func TestRotateTowards(t *testing.T) {
	tests := []struct {
		name     string
		from, to float64
		step     float64
		want     float64
	}{
		{"fixed step left", 0, 1, 0.25, 0.25},
		{"fixed step right", 0, -1, 0.25, -0.25},
		{"same step far from target", 0, 2.5, 0.25, 0.25},
		{"snaps when close", 0, 0.1, 0.25, 0.1},
		{"across the seam", 3, -3, 0.1, 3.1},
		{"no step", 0.4, 1, 0, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := RotateTowards(YawQuat(tt.from), YawQuat(tt.to), tt.step)
			if got := Yaw(q); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("yaw = %v, want %v", got, tt.want)
			}
		})
	}
}

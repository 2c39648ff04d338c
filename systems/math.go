package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Agents face along +Z when unrotated. Positive yaw turns +Z toward +X.
var forwardAxis = r3.Vec{Z: 1}

// Identity is the unrotated facing.
var Identity = quat.Number{Real: 1}

// YawQuat returns a rotation of angle radians about the y axis.
func YawQuat(angle float64) quat.Number {
	s, c := math.Sincos(angle * 0.5)
	return quat.Number{Real: c, Jmag: s}
}

// Forward returns the unit facing direction of q on the ground plane.
func Forward(q quat.Number) r3.Vec {
	f := r3.Rotation(q).Rotate(forwardAxis)
	f.Y = 0
	n := r3.Norm(f)
	if n == 0 {
		return forwardAxis
	}
	return r3.Scale(1/n, f)
}

// Yaw returns the heading angle of q in (-Pi, Pi].
func Yaw(q quat.Number) float64 {
	f := Forward(q)
	return math.Atan2(f.X, f.Z)
}

// Turn rotates q by angle radians about the y axis in its local frame.
func Turn(q quat.Number, angle float64) quat.Number {
	if angle == 0 {
		return q
	}
	return quat.Mul(q, YawQuat(angle))
}

// LookAt returns the yaw rotation facing dir, where dir.X is world x and
// dir.Y is world z. ok is false for a zero direction.
func LookAt(dir r2.Vec) (q quat.Number, ok bool) {
	if dir.X == 0 && dir.Y == 0 {
		return Identity, false
	}
	return YawQuat(math.Atan2(dir.X, dir.Y)), true
}

// Direction returns the ground-plane unit vector for a yaw angle.
func Direction(angle float64) r3.Vec {
	s, c := math.Sincos(angle)
	return r3.Vec{X: s, Z: c}
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp interpolates along the shorter arc from a to b. t is clamped to [0, 1].
func Slerp(a, b quat.Number, t float64) quat.Number {
	t = clamp01(t)
	d := dot(a, b)
	if d < 0 {
		b = quat.Scale(-1, b)
		d = -d
	}
	if d > 0.9995 {
		// Nearly parallel: lerp is accurate and avoids dividing by sin(~0).
		return normalize(quat.Add(quat.Scale(1-t, a), quat.Scale(t, b)))
	}
	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	return normalize(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}

// RotateTowards turns a toward b by at most maxAngle radians along the
// shorter arc. It returns b once the remaining angle fits in one step.
func RotateTowards(a, b quat.Number, maxAngle float64) quat.Number {
	if maxAngle <= 0 {
		return a
	}
	angle := 2 * math.Acos(math.Min(1, math.Abs(dot(a, b))))
	if angle <= maxAngle {
		return b
	}
	return Slerp(a, b, maxAngle/angle)
}

// clamp01 clamps v to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeAngle wraps an angle to [-Pi, Pi].
func normalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle < -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// groundPoint drops y from a position.
func groundPoint(p r3.Vec) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Z}
}

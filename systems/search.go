package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/maps"
)

// Probe samples channel ch of m at origin + dir*distance.
func Probe(m *maps.SpatialMap, ch int, origin, dir r3.Vec, distance float64) uint8 {
	return m.Sample(r3.Add(origin, r3.Scale(distance, dir)), ch)
}

// ForwardStep computes the displacement of one step of length stepLen along
// rot and whether it is allowed. The step is allowed when the sample
// probeFactor steps ahead is strictly below block. It has no side effects.
func ForwardStep(m *maps.SpatialMap, ch int, pos r3.Vec, rot quat.Number, stepLen, probeFactor float64, block uint8) (r3.Vec, bool) {
	disp := r3.Scale(stepLen, Forward(rot))
	probe := r3.Add(pos, r3.Scale(probeFactor, disp))
	return disp, m.Sample(probe, ch) < block
}

// fanOffsets lists the search angles from straight ahead outward, positive
// side first, so ties resolve toward the smaller turn.
func fanOffsets(steps int, spread float64, dst []float64) []float64 {
	dst = append(dst[:0], 0)
	for i := 1; i <= steps; i++ {
		a := float64(i) * spread
		dst = append(dst, a, -a)
	}
	return dst
}

// bestFan returns the yaw offset in the fan around rot whose sample is
// preferred by better, and that sample.
func bestFan(m *maps.SpatialMap, ch int, pos r3.Vec, rot quat.Number, steps int, spread, distance float64, better func(v, best uint8) bool) (offset float64, value uint8) {
	var buf [16]float64
	offs := fanOffsets(steps, spread, buf[:0])
	yaw := Yaw(rot)
	for i, off := range offs {
		v := Probe(m, ch, pos, Direction(yaw+off), distance)
		if i == 0 || better(v, value) {
			offset, value = off, v
		}
	}
	return offset, value
}

func hotter(v, best uint8) bool { return v > best }
func cooler(v, best uint8) bool { return v < best }

// sideSums sums heat over n probes on each side of rot at multiples of
// stride*spread.
func sideSums(m *maps.SpatialMap, ch int, pos r3.Vec, rot quat.Number, n int, stride, spread, distance float64) (positive, negative int) {
	yaw := Yaw(rot)
	for i := 1; i <= n; i++ {
		a := float64(i) * stride * spread
		positive += int(Probe(m, ch, pos, Direction(yaw+a), distance))
		negative += int(Probe(m, ch, pos, Direction(yaw-a), distance))
	}
	return positive, negative
}

// sectorPeak scans n evenly spaced absolute directions and returns the angle
// of the strongest sample above floor. ok is false if none exceeds floor.
func sectorPeak(m *maps.SpatialMap, ch int, pos r3.Vec, n int, distance float64, floor uint8) (angle float64, value uint8, ok bool) {
	if n < 1 {
		return 0, 0, false
	}
	step := 2 * math.Pi / float64(n)
	value = floor
	for k := 0; k < n; k++ {
		a := float64(k) * step
		if v := Probe(m, ch, pos, Direction(a), distance); v > value {
			angle, value, ok = a, v, true
		}
	}
	return angle, value, ok
}

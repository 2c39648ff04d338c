package maps

import "gonum.org/v1/gonum/spatial/r2"

// InputPointSet holds the local-space points agents are drawn to and flee
// from. It is read-only for the duration of a tick.
type InputPointSet struct {
	Attract []r2.Vec
	Repulse []r2.Vec
}

// Clone returns a copy that shares no storage with s.
func (s *InputPointSet) Clone() *InputPointSet {
	if s == nil {
		return &InputPointSet{}
	}
	return &InputPointSet{
		Attract: append([]r2.Vec(nil), s.Attract...),
		Repulse: append([]r2.Vec(nil), s.Repulse...),
	}
}

// ClampAttract maps i into the attract range. It returns -1 when there are
// no attract points.
func (s *InputPointSet) ClampAttract(i int) int {
	if s == nil || len(s.Attract) == 0 {
		return -1
	}
	if i < 0 {
		return 0
	}
	if i >= len(s.Attract) {
		return len(s.Attract) - 1
	}
	return i
}

// AttractAt returns the attract point for index i, clamped into range.
func (s *InputPointSet) AttractAt(i int) (r2.Vec, bool) {
	i = s.ClampAttract(i)
	if i < 0 {
		return r2.Vec{}, false
	}
	return s.Attract[i], true
}

// NearestAttract returns the index of the attract point closest to p, or -1.
func (s *InputPointSet) NearestAttract(p r2.Vec) int {
	if s == nil {
		return -1
	}
	best, bestD := -1, 0.0
	for i, a := range s.Attract {
		d := r2.Norm2(r2.Sub(a, p))
		if best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

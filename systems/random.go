package systems

import "math/rand"

// RandomPool is a small set of uniform values refreshed once per tick.
// Agents index it by group id, so agents whose ids collide modulo the pool
// size share a draw for that tick.
type RandomPool struct {
	values []float64
	size   int
}

// NewRandomPool returns an empty pool that grows to size on refresh.
func NewRandomPool(size int) *RandomPool {
	if size < 1 {
		size = 1
	}
	return &RandomPool{values: make([]float64, 0, size), size: size}
}

// NewRandomPoolFrom returns a full pool holding values.
func NewRandomPoolFrom(values ...float64) *RandomPool {
	v := append([]float64(nil), values...)
	return &RandomPool{values: v, size: len(v)}
}

// Refresh redraws every value from rng. A pool shorter than its configured
// size is only grown, keeping the values it already had, and Refresh
// reports false.
func (p *RandomPool) Refresh(rng *rand.Rand) bool {
	if len(p.values) != p.size {
		for len(p.values) < p.size {
			p.values = append(p.values, rng.Float64())
		}
		p.values = p.values[:p.size]
		return false
	}
	for i := range p.values {
		p.values[i] = rng.Float64()
	}
	return true
}

// Value returns the draw for seed. An empty or nil pool yields 0.
func (p *RandomPool) Value(seed int) float64 {
	if p == nil {
		return 0
	}
	n := len(p.values)
	if n == 0 {
		return 0
	}
	i := seed % n
	if i < 0 {
		i += n
	}
	return p.values[i]
}

// Len returns the number of values currently held.
func (p *RandomPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// Values returns a copy of the current draws.
func (p *RandomPool) Values() []float64 {
	return append([]float64(nil), p.values...)
}

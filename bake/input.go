package bake

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

// InputBaker rasterizes the input point set. Repulse points write a linear
// falloff of strength; attract points write their color-coded index over a
// disc so agents passing through are retargeted.
type InputBaker struct {
	RepulseChannel   int
	AttractIDChannel int
	RepulseRadius    float64 // world units
	RepulseStrength  float64 // 1 is a full 255 at the centre
	AttractRadius    float64 // world units
}

// InputFromConfig returns the input baker for cfg.
func InputFromConfig(cfg *config.Config) InputBaker {
	side := cfg.Derived.PhysicalSide
	return InputBaker{
		RepulseChannel:   cfg.Channels.Repulse,
		AttractIDChannel: cfg.Channels.AttractID,
		RepulseRadius:    cfg.Bake.RepulseWidth * side,
		RepulseStrength:  cfg.Bake.RepulseStrength,
		AttractRadius:    cfg.Bake.AttractWidth * side,
	}
}

// Initialize returns a stateless handle for area.
func (b InputBaker) Initialize(area Area) (Handle, error) {
	if err := area.validate(); err != nil {
		return nil, err
	}
	return &InputHandle{b: b, area: area}, nil
}

// InputHandle rasterizes input points for one area.
type InputHandle struct {
	b    InputBaker
	area Area
}

// Bake overwrites dst with the repulse and attract-id layers for f.Points.
func (h *InputHandle) Bake(ctx context.Context, f *Frame, dst *maps.SpatialMap) error {
	if err := h.area.check(dst); err != nil {
		return err
	}
	clear(dst.Data)
	if f == nil || f.Points == nil {
		return nil
	}
	pts := f.Points
	n := h.area.Size
	for y := 0; y < n; y++ {
		if y%rowCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for x := 0; x < n; x++ {
			c := dst.TexelCenter(x, y)
			dst.Set(x, y, h.b.RepulseChannel, h.repulseAt(c, pts.Repulse))
			if h.b.AttractRadius > 0 {
				if i := pts.NearestAttract(c); i >= 0 && r2.Norm(r2.Sub(pts.Attract[i], c)) <= h.b.AttractRadius {
					dst.Set(x, y, h.b.AttractIDChannel, maps.IndexToColorCode(i))
				}
			}
		}
	}
	return nil
}

func (h *InputHandle) repulseAt(c r2.Vec, points []r2.Vec) uint8 {
	if h.b.RepulseRadius <= 0 {
		return 0
	}
	best := 0.0
	for _, p := range points {
		d := r2.Norm(r2.Sub(p, c))
		if d >= h.b.RepulseRadius {
			continue
		}
		best = math.Max(best, 1-d/h.b.RepulseRadius)
	}
	v := best * h.b.RepulseStrength * 255
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Package bake produces the spatial maps the herd steers by. Each baker
// rasterizes one kind of field; the Pipeline runs them off the simulation
// goroutine and publishes finished maps through maps.Buffer.
package bake

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

// Area is the square region every map covers, centred on the local origin.
type Area struct {
	Size     int     // texels per side
	Physical float64 // world-space side length
}

// AreaFromConfig returns the baked area for cfg.
func AreaFromConfig(cfg *config.Config) Area {
	return Area{Size: cfg.Derived.TextureSize, Physical: cfg.Derived.PhysicalSide}
}

// NewMap allocates an empty map covering a.
func (a Area) NewMap() *maps.SpatialMap {
	return maps.New(a.Size, a.Size, r2.Vec{X: a.Physical, Y: a.Physical})
}

// TexelSize is the world-space side of one texel.
func (a Area) TexelSize() float64 {
	return a.Physical / float64(a.Size)
}

func (a Area) validate() error {
	if a.Size <= 0 || a.Physical <= 0 {
		return fmt.Errorf("%w: area %d texels over %g", maps.ErrSizeMismatch, a.Size, a.Physical)
	}
	return nil
}

func (a Area) check(dst *maps.SpatialMap) error {
	if err := dst.Validate(); err != nil {
		return err
	}
	if dst.Width != a.Size || dst.Height != a.Size {
		return fmt.Errorf("%w: destination %dx%d, area %d", maps.ErrSizeMismatch, dst.Width, dst.Height, a.Size)
	}
	return nil
}

// Splat is one agent as seen by the bakers.
type Splat struct {
	Position r2.Vec // world x, world z
	Yaw      float64
}

// Frame is the producer input for one bake. The pipeline owns a frame once
// it has been requested; callers must not modify it afterwards.
type Frame struct {
	Agents []Splat
	Points *maps.InputPointSet
}

// Baker prepares a producer for an area.
type Baker interface {
	Initialize(area Area) (Handle, error)
}

// Handle rasterizes frames into destination maps covering its area. A
// handle may keep state between bakes and is not safe for concurrent use.
type Handle interface {
	Bake(ctx context.Context, f *Frame, dst *maps.SpatialMap) error
}

// InputsFromConfig converts the configured points to world space.
func InputsFromConfig(cfg *config.Config) *maps.InputPointSet {
	scale := cfg.World.Scale
	conv := func(ps []config.PointConfig) []r2.Vec {
		out := make([]r2.Vec, len(ps))
		for i, p := range ps {
			out[i] = r2.Vec{X: p.X * scale, Y: p.Y * scale}
		}
		return out
	}
	return &maps.InputPointSet{
		Attract: conv(cfg.Inputs.Attract),
		Repulse: conv(cfg.Inputs.Repulse),
	}
}

// rowCheck is how many rows a baker rasterizes between cancellation checks.
const rowCheck = 16

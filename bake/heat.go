package bake

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

// HeatBaker accumulates the herd's movement memory. Heat marks where agents
// crowd and trace marks the paths they walked; both decay every bake. An
// optional terrain layer is composed into the heat channel by max.
type HeatBaker struct {
	HeatChannel  int
	TraceChannel int
	HeatDecay    float64
	TraceDecay   float64
	Decal        Decal
	TraceDeposit uint8

	Terrain        *maps.SpatialMap
	TerrainChannel int
}

// HeatFromConfig returns the heat baker for cfg without a terrain layer.
func HeatFromConfig(cfg *config.Config) HeatBaker {
	b := cfg.Bake
	return HeatBaker{
		HeatChannel:    cfg.Channels.Heat,
		TraceChannel:   cfg.Channels.Trace,
		HeatDecay:      b.HeatDecay,
		TraceDecay:     b.TraceDecay,
		Decal:          NewDecal(b.DecalSize, b.DecalMax, b.DecalForwardStep, b.DecalSideStep),
		TraceDeposit:   b.TraceDeposit,
		TerrainChannel: cfg.Channels.Heat,
	}
}

// Initialize allocates the accumulators for area.
func (b HeatBaker) Initialize(area Area) (Handle, error) {
	if err := area.validate(); err != nil {
		return nil, err
	}
	if b.Terrain != nil {
		if err := area.check(b.Terrain); err != nil {
			return nil, err
		}
	}
	n := area.Size * area.Size
	return &HeatHandle{
		b:     b,
		area:  area,
		geom:  &maps.SpatialMap{Width: area.Size, Height: area.Size, PhysicalSize: r2.Vec{X: area.Physical, Y: area.Physical}},
		heat:  make([]float32, n),
		trace: make([]float32, n),
	}, nil
}

// HeatHandle holds the decaying heat and trace accumulators.
type HeatHandle struct {
	b     HeatBaker
	area  Area
	geom  *maps.SpatialMap // texel lookup only; holds no data
	heat  []float32
	trace []float32
	bakes int
}

// Bakes returns how many frames have been accumulated.
func (h *HeatHandle) Bakes() int {
	return h.bakes
}

// Bake decays the accumulators, stamps every agent in f, and writes the
// result into dst.
func (h *HeatHandle) Bake(ctx context.Context, f *Frame, dst *maps.SpatialMap) error {
	if err := h.area.check(dst); err != nil {
		return err
	}

	hd, td := float32(h.b.HeatDecay), float32(h.b.TraceDecay)
	for i := range h.heat {
		h.heat[i] *= hd
		h.trace[i] *= td
	}

	if f != nil {
		for i, s := range f.Agents {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			h.stamp(s)
		}
	}
	h.bakes++

	n := h.area.Size
	for y := 0; y < n; y++ {
		if y%rowCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for x := 0; x < n; x++ {
			i := y*n + x
			base := i * maps.Channels
			for c := 0; c < maps.Channels; c++ {
				dst.Data[base+c] = 0
			}
			heat := toByte(h.heat[i])
			if h.b.Terrain != nil {
				heat = max(heat, h.b.Terrain.Data[base+h.b.TerrainChannel])
			}
			dst.Data[base+h.b.HeatChannel] = heat
			// Trace shares the heat channel when both are configured on one.
			if h.b.TraceChannel != h.b.HeatChannel {
				dst.Data[base+h.b.TraceChannel] = toByte(h.trace[i])
			}
		}
	}
	return nil
}

// stamp adds the decal and the trace deposit for one agent.
func (h *HeatHandle) stamp(s Splat) {
	if x, y := h.geom.Texel(r3.Vec{X: s.Position.X, Z: s.Position.Y}); h.inGrid(x, y) {
		i := y*h.area.Size + x
		h.trace[i] = min(h.trace[i]+float32(h.b.TraceDeposit), 255)
	}

	d := h.b.Decal
	if len(d.Values) == 0 {
		return
	}
	ts := h.area.TexelSize()
	sin, cos := math.Sincos(s.Yaw)
	mid := d.Width / 2
	for row := 0; row < d.Height; row++ {
		back := -float64(row) * ts
		for col := 0; col < d.Width; col++ {
			v := d.Values[row*d.Width+col]
			if v == 0 {
				continue
			}
			side := float64(col-mid) * ts
			// forward is (sin, cos), right is (cos, -sin) on the xz plane
			p := r3.Vec{
				X: s.Position.X + back*sin + side*cos,
				Z: s.Position.Y + back*cos - side*sin,
			}
			x, y := h.geom.Texel(p)
			if !h.inGrid(x, y) {
				continue
			}
			i := y*h.area.Size + x
			h.heat[i] = min(h.heat[i]+float32(v), 255)
		}
	}
}

func (h *HeatHandle) inGrid(x, y int) bool {
	return x >= 0 && y >= 0 && x < h.area.Size && y < h.area.Size
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

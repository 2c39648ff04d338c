package bake

import (
	"context"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

// TerrainBaker rasterizes a static obstacle field from fractal simplex noise.
type TerrainBaker struct {
	Channel      int
	Seed         int64
	Frequency    float64 // noise frequency per texel
	Octaves      int
	Threshold    float64 // normalized noise above this is an obstacle
	ObstacleHeat uint8
}

// TerrainFromConfig returns the terrain baker for cfg.
func TerrainFromConfig(cfg *config.Config) TerrainBaker {
	t := cfg.Bake.Terrain
	return TerrainBaker{
		Channel:      cfg.Channels.Heat,
		Seed:         t.Seed,
		Frequency:    t.Scale,
		Octaves:      t.Octaves,
		Threshold:    t.Threshold,
		ObstacleHeat: t.ObstacleHeat,
	}
}

// Initialize generates the obstacle layer once.
func (b TerrainBaker) Initialize(area Area) (Handle, error) {
	if err := area.validate(); err != nil {
		return nil, err
	}
	layer := area.NewMap()
	if b.Octaves > 0 && b.ObstacleHeat > 0 {
		noise := opensimplex.NewNormalized(b.Seed)
		for y := 0; y < area.Size; y++ {
			for x := 0; x < area.Size; x++ {
				v := octaveNoise(noise, float64(x), float64(y), b.Octaves, b.Frequency, 0.5)
				if v > b.Threshold {
					layer.Set(x, y, b.Channel, b.ObstacleHeat)
				}
			}
		}
	}
	return &TerrainHandle{area: area, layer: layer, channel: b.Channel}, nil
}

// octaveNoise layers octaves of noise, each at double the frequency.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainHandle holds a generated obstacle layer.
type TerrainHandle struct {
	area    Area
	layer   *maps.SpatialMap
	channel int
}

// Layer returns the obstacle layer. It must not be modified.
func (h *TerrainHandle) Layer() *maps.SpatialMap {
	return h.layer
}

// Channel returns the channel the obstacles are written to.
func (h *TerrainHandle) Channel() int {
	return h.channel
}

// Coverage returns the fraction of texels that are obstacles.
func (h *TerrainHandle) Coverage() float64 {
	n := 0
	for y := 0; y < h.area.Size; y++ {
		for x := 0; x < h.area.Size; x++ {
			if h.layer.At(x, y, h.channel) > 0 {
				n++
			}
		}
	}
	return float64(n) / float64(h.area.Size*h.area.Size)
}

// Bake copies the obstacle layer into dst.
func (h *TerrainHandle) Bake(ctx context.Context, _ *Frame, dst *maps.SpatialMap) error {
	if err := h.area.check(dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return dst.CopyFrom(h.layer)
}

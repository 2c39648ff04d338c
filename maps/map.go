// Package maps holds the rasterized environment fields agents steer by and
// the buffers that hand them from producers to the simulation.
package maps

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Channels is the number of byte channels per cell.
const Channels = 4

// Blocked is returned for samples outside the map. Steering treats it as
// fully hot, so the edge of a map behaves like a wall.
const Blocked uint8 = 255

var (
	// ErrSizeMismatch reports a map whose data does not match its dimensions.
	ErrSizeMismatch = errors.New("maps: size mismatch")
	// ErrClosed is returned when publishing into a closed buffer.
	ErrClosed = errors.New("maps: buffer closed")
	// ErrNoFreeSlot is returned when every buffer slot is leased.
	ErrNoFreeSlot = errors.New("maps: no free slot")
)

// SpatialMap is a width x height grid of RGBA byte cells covering a
// rectangle of PhysicalSize centred on the local origin. Published maps are
// never written again.
type SpatialMap struct {
	Width        int
	Height       int
	Data         []byte
	PhysicalSize r2.Vec
}

// New allocates a zeroed map.
func New(width, height int, physical r2.Vec) *SpatialMap {
	return &SpatialMap{
		Width:        width,
		Height:       height,
		Data:         make([]byte, width*height*Channels),
		PhysicalSize: physical,
	}
}

// Validate reports ErrSizeMismatch for maps that cannot be sampled.
func (m *SpatialMap) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil map", ErrSizeMismatch)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d grid", ErrSizeMismatch, m.Width, m.Height)
	}
	if m.PhysicalSize.X <= 0 || m.PhysicalSize.Y <= 0 {
		return fmt.Errorf("%w: physical size %v", ErrSizeMismatch, m.PhysicalSize)
	}
	if want := m.Width * m.Height * Channels; len(m.Data) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d grid, want %d", ErrSizeMismatch, len(m.Data), m.Width, m.Height, want)
	}
	return nil
}

// Texel converts a local-space position to integer texel coordinates.
// The ground plane is xz; y is ignored.
func (m *SpatialMap) Texel(pos r3.Vec) (x, y int) {
	// Cells are square and the grid is aspect-matched to the rect.
	scale := float64(m.Width) / m.PhysicalSize.X
	px := (pos.X + m.PhysicalSize.X*0.5) * scale
	py := (pos.Z + m.PhysicalSize.Y*0.5) * scale
	if math.IsNaN(px) || math.IsNaN(py) {
		return -1, -1
	}
	// Floor, not truncation toward zero, so the strip just outside the
	// low edges is out of bounds too.
	return int(math.Floor(px)), int(math.Floor(py))
}

// Index returns the byte offset of channel ch at pos, or -1 when pos lies
// outside the map.
func (m *SpatialMap) Index(pos r3.Vec, ch int) int {
	x, y := m.Texel(pos)
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return -1
	}
	idx := (y*m.Width+x)*Channels + ch
	if idx < 0 || idx >= len(m.Data) {
		return -1
	}
	return idx
}

// Sample returns channel ch at pos, or Blocked outside the map.
func (m *SpatialMap) Sample(pos r3.Vec, ch int) uint8 {
	idx := m.Index(pos, ch)
	if idx < 0 {
		return Blocked
	}
	return m.Data[idx]
}

// At returns channel ch of texel (x, y), or Blocked outside the grid.
func (m *SpatialMap) At(x, y, ch int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return Blocked
	}
	return m.Data[(y*m.Width+x)*Channels+ch]
}

// Set writes channel ch of texel (x, y). Out-of-grid writes are ignored.
func (m *SpatialMap) Set(x, y, ch int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Data[(y*m.Width+x)*Channels+ch] = v
}

// TexelCenter returns the local-space position of the centre of texel (x, y).
func (m *SpatialMap) TexelCenter(x, y int) r2.Vec {
	inv := m.PhysicalSize.X / float64(m.Width)
	return r2.Vec{
		X: (float64(x)+0.5)*inv - m.PhysicalSize.X*0.5,
		Y: (float64(y)+0.5)*inv - m.PhysicalSize.Y*0.5,
	}
}

// CopyFrom overwrites m with src. Both maps must have the same dimensions.
func (m *SpatialMap) CopyFrom(src *SpatialMap) error {
	if len(m.Data) != len(src.Data) || m.Width != src.Width || m.Height != src.Height {
		return fmt.Errorf("%w: copy %dx%d into %dx%d", ErrSizeMismatch, src.Width, src.Height, m.Width, m.Height)
	}
	copy(m.Data, src.Data)
	m.PhysicalSize = src.PhysicalSize
	return nil
}

// Clone returns a deep copy.
func (m *SpatialMap) Clone() *SpatialMap {
	c := *m
	c.Data = append([]byte(nil), m.Data...)
	return &c
}

// Bytes is the byte footprint of the map data.
func (m *SpatialMap) Bytes() uint64 {
	return uint64(len(m.Data))
}

// colorCodeStep spaces attract ids in a channel so they survive filtering.
const colorCodeStep = 20

// IndexToColorCode encodes an attract point index as a channel value.
// Index 0 maps to 20; zero is reserved for "no id".
func IndexToColorCode(i int) uint8 {
	v := (i + 1) * colorCodeStep
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ColorCodeToIndex decodes a channel value written by IndexToColorCode.
// Values below the first code clamp to index 0.
func ColorCodeToIndex(c uint8) int {
	i := int(c)/colorCodeStep - 1
	if i < 0 {
		return 0
	}
	return i
}

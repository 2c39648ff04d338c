// Package renderer draws baked maps and the herd with raylib. Nothing here
// runs in headless mode.
package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/camera"
	"github.com/pthm-cable/herd/maps"
)

// MapLayer shows one channel of a SpatialMap as a tinted texture whose alpha
// follows the channel value.
type MapLayer struct {
	Channel int
	Tint    rl.Color
	Gain    float32

	tex         rl.Texture2D
	w, h        int
	pixels      []color.RGBA
	version     uint64
	initialized bool
}

// NewMapLayer creates a layer for channel ch.
func NewMapLayer(ch int, tint rl.Color, gain float32) *MapLayer {
	return &MapLayer{Channel: ch, Tint: tint, Gain: gain}
}

// Init creates the texture (must be called after the raylib window is created).
func (l *MapLayer) Init(w, h int) {
	if l.initialized && l.w == w && l.h == h {
		return
	}
	l.Unload()
	l.w, l.h = w, h
	img := rl.GenImageColor(w, h, rl.Blank)
	l.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(l.tex, rl.FilterPoint)
	rl.UnloadImage(img)
	l.pixels = make([]color.RGBA, w*h)
	l.initialized = true
}

// Update uploads m when version differs from the last upload.
func (l *MapLayer) Update(m *maps.SpatialMap, version uint64) {
	if m == nil || m.Validate() != nil {
		return
	}
	if l.initialized && version == l.version && l.w == m.Width && l.h == m.Height {
		return
	}
	l.Init(m.Width, m.Height)
	l.pixels = channelPixels(m, l.Channel, l.Tint, l.Gain, l.pixels)
	rl.UpdateTexture(l.tex, l.pixels)
	l.version = version
}

// channelPixels converts one channel into texture rows, north row first.
func channelPixels(m *maps.SpatialMap, ch int, tint rl.Color, gain float32, dst []color.RGBA) []color.RGBA {
	n := m.Width * m.Height
	if cap(dst) < n {
		dst = make([]color.RGBA, n)
	}
	dst = dst[:n]
	for y := 0; y < m.Height; y++ {
		row := (m.Height - 1 - y) * m.Width
		for x := 0; x < m.Width; x++ {
			v := float32(m.Data[(y*m.Width+x)*4+ch]) * gain
			if v > 255 {
				v = 255
			}
			dst[row+x] = color.RGBA{R: tint.R, G: tint.G, B: tint.B, A: uint8(v)}
		}
	}
	return dst
}

// Draw stretches the texture over the area square.
func (l *MapLayer) Draw(cam *camera.Camera, side float32) {
	if !l.initialized {
		return
	}
	x0, y0 := cam.WorldToScreen(-side/2, side/2)
	srcRect := rl.Rectangle{X: 0, Y: 0, Width: float32(l.w), Height: float32(l.h)}
	dstRect := rl.Rectangle{X: x0, Y: y0, Width: side * cam.Zoom, Height: side * cam.Zoom}
	rl.DrawTexturePro(l.tex, srcRect, dstRect, rl.Vector2{}, 0, rl.White)
}

// Unload frees GPU resources.
func (l *MapLayer) Unload() {
	if !l.initialized {
		return
	}
	rl.UnloadTexture(l.tex)
	l.initialized = false
}

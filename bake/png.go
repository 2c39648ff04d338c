package bake

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/pthm-cable/herd/maps"
)

// Image converts m to an opaque RGBA image with the first three channels as
// color. Texel row 0 (lowest z) becomes the bottom image row so north is up.
func Image(m *maps.SpatialMap) (*image.NRGBA, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.SetNRGBA(x, m.Height-1-y, color.NRGBA{
				R: m.At(x, y, 0),
				G: m.At(x, y, 1),
				B: m.At(x, y, 2),
				A: 255,
			})
		}
	}
	return img, nil
}

// WritePNG encodes m as a PNG.
func WritePNG(w io.Writer, m *maps.SpatialMap) error {
	img, err := Image(m)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

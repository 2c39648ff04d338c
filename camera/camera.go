// Package camera provides a 2D top-down camera over the herd area.
package camera

// Camera controls the viewport into the simulation area. The area is a
// square centred on the local origin; world x maps to screen right and
// world z (north) maps to screen up.
type Camera struct {
	// Position is the camera center in world coordinates (x, z)
	X, Z float32

	// Zoom is screen pixels per world unit
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Side of the simulated area
	Side float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera centered on the area, zoomed so the whole square fits.
func New(viewportW, viewportH, side float32) *Camera {
	c := &Camera{
		ViewportW: viewportW,
		ViewportH: viewportH,
		Side:      side,
	}
	c.fitLimits()
	c.Reset()
	return c
}

// fitZoom is the zoom at which the area exactly fits the shorter viewport side.
func (c *Camera) fitZoom() float32 {
	if c.Side <= 0 {
		return 1
	}
	return min(c.ViewportW, c.ViewportH) / c.Side
}

func (c *Camera) fitLimits() {
	fit := c.fitZoom()
	c.MinZoom = fit * 0.5
	c.MaxZoom = fit * 16
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wz float32) (sx, sy float32) {
	sx = c.ViewportW/2 + (wx-c.X)*c.Zoom
	sy = c.ViewportH/2 - (wz-c.Z)*c.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (wx, wz float32) {
	wx = c.X + (sx-c.ViewportW/2)/c.Zoom
	wz = c.Z - (sy-c.ViewportH/2)/c.Zoom
	return wx, wz
}

// IsVisible returns true if a circle at (wx, wz) with given radius
// could be visible on screen (conservative check for culling).
func (c *Camera) IsVisible(wx, wz, radius float32) bool {
	halfW := c.ViewportW/(2*c.Zoom) + radius
	halfH := c.ViewportH/(2*c.Zoom) + radius
	return absf(wx-c.X) <= halfW && absf(wz-c.Z) <= halfH
}

// Resize updates viewport dimensions and recalculates zoom constraints.
func (c *Camera) Resize(viewportW, viewportH float32) {
	if viewportW == c.ViewportW && viewportH == c.ViewportH {
		return
	}
	c.ViewportW = viewportW
	c.ViewportH = viewportH
	c.fitLimits()
	c.Zoom = clamp(c.Zoom, c.MinZoom, c.MaxZoom)
}

// Pan moves the camera by the given delta in screen pixels. The center is
// kept inside the area.
func (c *Camera) Pan(dx, dy float32) {
	half := c.Side / 2
	c.X = clamp(c.X+dx/c.Zoom, -half, half)
	c.Z = clamp(c.Z-dy/c.Zoom, -half, half)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// Reset returns the camera to the area center at fit zoom.
func (c *Camera) Reset() {
	c.X, c.Z = 0, 0
	c.Zoom = c.fitZoom()
}

// VisibleWorldBounds returns the world-coordinate bounds of the visible area.
func (c *Camera) VisibleWorldBounds() (minX, minZ, maxX, maxZ float32) {
	halfW := c.ViewportW / (2 * c.Zoom)
	halfH := c.ViewportH / (2 * c.Zoom)
	return c.X - halfW, c.Z - halfH, c.X + halfW, c.Z + halfH
}

// absf returns the absolute value of a float32.
func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

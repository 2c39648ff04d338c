package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/camera"
	"github.com/pthm-cable/herd/maps"
	"github.com/pthm-cable/herd/systems"
)

// Marker colors
var (
	ColorAttract  = rl.Color{R: 90, G: 220, B: 120, A: 255}
	ColorRepulse  = rl.Color{R: 240, G: 80, B: 70, A: 255}
	ColorBorder   = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorSelected = rl.Color{R: 255, G: 255, B: 255, A: 220}
)

// DrawAgents draws every visible agent as a triangle along its heading.
// radius is in world units; agents smaller than a pixel become dots.
// highlight, when >= 0, is drawn with an outline.
func DrawAgents(cam *camera.Camera, agents []systems.Agent, radius float32, group, highlight int) {
	px := radius * cam.Zoom
	for i := range agents {
		a := &agents[i]
		x, z := float32(a.Position.X), float32(a.Position.Z)
		if !cam.IsVisible(x, z, radius) {
			continue
		}
		c := systems.StateColor(a.CurrentState())
		if group >= 0 && a.UpdateGroupID != group {
			c.A = 60
		}
		sx, sy := cam.WorldToScreen(x, z)
		if px < 1.5 {
			rl.DrawPixel(int32(sx), int32(sy), c)
			continue
		}
		drawOrientedTriangle(sx, sy, float32(systems.Yaw(a.Rotation)), px, c, i == highlight)
	}
}

// DrawTargets draws a line from the highlighted agent toward its target
// heading and its attract point.
func DrawTargets(cam *camera.Camera, a *systems.Agent, points *maps.InputPointSet, length float32) {
	sx, sy := cam.WorldToScreen(float32(a.Position.X), float32(a.Position.Z))
	yaw := systems.Yaw(a.TargetRotation)
	ex := sx + float32(math.Sin(yaw))*length*cam.Zoom
	ey := sy - float32(math.Cos(yaw))*length*cam.Zoom
	rl.DrawLineEx(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: ex, Y: ey}, 1, ColorSelected)

	if p, ok := points.AttractAt(a.InputAttractIndex); ok {
		tx, ty := cam.WorldToScreen(float32(p.X), float32(p.Y))
		rl.DrawLineEx(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: tx, Y: ty}, 1, rl.Fade(ColorAttract, 0.5))
	}
}

// DrawPoints marks attract and repulse points. active, when not nil, is
// the point currently being dragged.
func DrawPoints(cam *camera.Camera, points *maps.InputPointSet, active *PointRef) {
	if points == nil {
		return
	}
	for i, p := range points.Attract {
		drawPoint(cam, float32(p.X), float32(p.Y), ColorAttract, active != nil && active.Attract && active.Index == i)
	}
	for i, p := range points.Repulse {
		drawPoint(cam, float32(p.X), float32(p.Y), ColorRepulse, active != nil && !active.Attract && active.Index == i)
	}
}

// PointRef names one input point.
type PointRef struct {
	Attract bool
	Index   int
}

// PickPoint returns the input point within tolerance pixels of the screen
// point, checking repulse points first.
func PickPoint(cam *camera.Camera, points *maps.InputPointSet, sx, sy, tolerance float32) (PointRef, bool) {
	if points == nil {
		return PointRef{}, false
	}
	hit := func(x, y float64) bool {
		px, py := cam.WorldToScreen(float32(x), float32(y))
		dx, dy := sx-px, sy-py
		return dx*dx+dy*dy <= tolerance*tolerance
	}
	for i, p := range points.Repulse {
		if hit(p.X, p.Y) {
			return PointRef{Index: i}, true
		}
	}
	for i, p := range points.Attract {
		if hit(p.X, p.Y) {
			return PointRef{Attract: true, Index: i}, true
		}
	}
	return PointRef{}, false
}

// DrawBorder outlines the area square.
func DrawBorder(cam *camera.Camera, side float32) {
	x0, y0 := cam.WorldToScreen(-side/2, side/2)
	rl.DrawRectangleLinesEx(rl.Rectangle{X: x0, Y: y0, Width: side * cam.Zoom, Height: side * cam.Zoom}, 1, ColorBorder)
}

func drawPoint(cam *camera.Camera, x, z float32, c rl.Color, active bool) {
	sx, sy := cam.WorldToScreen(x, z)
	rl.DrawCircleLines(int32(sx), int32(sy), 8, c)
	rl.DrawCircle(int32(sx), int32(sy), 3, c)
	if active {
		rl.DrawCircleLines(int32(sx), int32(sy), 11, ColorSelected)
	}
}

// drawOrientedTriangle draws a triangle pointing along yaw, measured
// clockwise from screen up.
func drawOrientedTriangle(x, y, yaw, radius float32, color rl.Color, outline bool) {
	fx := float32(math.Sin(float64(yaw)))
	fy := -float32(math.Cos(float64(yaw)))

	// Front point
	v1 := rl.Vector2{X: x + fx*radius*1.5, Y: y + fy*radius*1.5}

	// Back corners
	backAngle := float64(yaw) + math.Pi*0.8
	v2 := rl.Vector2{X: x + float32(math.Sin(backAngle))*radius, Y: y - float32(math.Cos(backAngle))*radius}
	backAngle = float64(yaw) - math.Pi*0.8
	v3 := rl.Vector2{X: x + float32(math.Sin(backAngle))*radius, Y: y - float32(math.Cos(backAngle))*radius}

	// DrawTriangle requires counter-clockwise winding
	rl.DrawTriangle(v1, v3, v2, color)
	if outline {
		rl.DrawTriangleLines(v1, v2, v3, ColorSelected)
	}
}

package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/herd/renderer"
	"github.com/pthm-cable/herd/ui"
)

// pointPickRadius is the click tolerance for input points, in pixels.
const pointPickRadius = 12

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	g.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		g.state.Paused = !g.state.Paused
	}
	if rl.IsKeyPressed(rl.KeyN) {
		g.pending.Step = true
	}
	if rl.IsKeyPressed(rl.KeyK) {
		g.pending.Checkpoint = true
	}
	if rl.IsKeyPressed(rl.KeyE) {
		g.state.EditPoints = !g.state.EditPoints
		g.dragging = nil
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyF3) {
		g.showPerf = !g.showPerf
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.state.Speed > 1 {
		g.state.Speed--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.state.Speed < ui.MaxSpeed {
		g.state.Speed++
	}

	for key := rl.GetKeyPressed(); key != 0; key = rl.GetKeyPressed() {
		g.overlays.HandleKeyPress(key)
	}

	g.handleCameraInput()
	g.handleMouse()
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h

	g.camera.Resize(w, h)
	g.inspector.Resize(int32(w), int32(h))
	g.perfPanel.SetPosition(int32(w)-300, int32(h)-200)
}

// handleCameraInput processes camera pan/zoom controls.
func (g *Game) handleCameraInput() {
	const panPixels = 8

	if rl.IsKeyDown(rl.KeyRight) {
		g.camera.Pan(panPixels, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		g.camera.Pan(-panPixels, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		g.camera.Pan(0, panPixels)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		g.camera.Pan(0, -panPixels)
	}

	// Drag with the middle button
	if rl.IsMouseButtonDown(rl.MouseButtonMiddle) {
		d := rl.GetMouseDelta()
		g.camera.Pan(-d.X, -d.Y)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.camera.ZoomBy(1 + wheel*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.camera.ZoomBy(0.8)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		g.camera.Reset()
	}
}

// handleMouse drags input points in edit mode and selects sheep otherwise.
func (g *Game) handleMouse() {
	mouse := rl.GetMousePosition()

	if g.dragging != nil {
		if !rl.IsMouseButtonDown(rl.MouseButtonLeft) {
			g.dragging = nil
			return
		}
		wx, wz := g.camera.ScreenToWorld(mouse.X, mouse.Y)
		g.sim.MovePoint(g.dragging.Attract, g.dragging.Index, r2.Vec{X: float64(wx), Y: float64(wz)})
		return
	}

	if g.controls.Contains(mouse.X, mouse.Y, g.overlays) {
		return
	}

	if g.state.EditPoints && rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		if ref, ok := renderer.PickPoint(g.camera, g.sim.Points(), mouse.X, mouse.Y, pointPickRadius); ok {
			g.dragging = &ref
			return
		}
	}

	g.inspector.HandleInput(mouse.X, mouse.Y, g.camera, g.sim.Herd().Agents())
}

package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// MaxSpeed is the largest steps-per-frame the speed slider offers.
const MaxSpeed = 10

// ControlsState is the state the controls panel edits.
type ControlsState struct {
	Paused     bool
	Speed      int // simulation ticks per frame
	EditPoints bool
}

// ControlsAction reports one-shot requests made through the panel.
type ControlsAction struct {
	Step       bool // advance one tick while paused
	Checkpoint bool
	ResetView  bool
}

// ControlsPanel renders the left-side panel with raygui buttons, a speed
// slider and the overlay toggles.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Contains reports whether a screen point is over the panel.
func (c *ControlsPanel) Contains(x, y float32, overlays *OverlayRegistry) bool {
	if !c.visible {
		return false
	}
	return x >= float32(c.x) && x <= float32(c.x+c.width) &&
		y >= float32(c.y) && y <= float32(c.y+c.height(overlays))
}

func (c *ControlsPanel) height(overlays *OverlayRegistry) int32 {
	t := c.renderer.Theme
	rows := int32(0)
	for _, cat := range overlays.Categories() {
		rows += int32(len(overlays.ByCategory(cat))) + 1
	}
	return t.Padding*2 + 20 + 3*30 + 40 + rows*22
}

// Draw renders the panel and applies button presses to state.
func (c *ControlsPanel) Draw(state *ControlsState, overlays *OverlayRegistry) ControlsAction {
	var act ControlsAction
	if !c.visible {
		return act
	}

	r := c.renderer
	padding := r.Theme.Padding
	r.DrawPanel(c.x, c.y, c.width, c.height(overlays))

	x := float32(c.x + padding)
	y := float32(c.y + padding)
	inner := float32(c.width - padding*2)
	half := (inner - 6) / 2

	rl.DrawText("Controls", int32(x), int32(y), 16, rl.White)
	y += 20

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 24}, toggleText(state.Paused, "Resume", "Pause")) {
		state.Paused = !state.Paused
	}
	if gui.Button(rl.Rectangle{X: x + half + 6, Y: y, Width: half, Height: 24}, "Step") {
		act.Step = true
	}
	y += 30

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 24}, toggleText(state.EditPoints, "Done Editing", "Move Points")) {
		state.EditPoints = !state.EditPoints
	}
	if gui.Button(rl.Rectangle{X: x + half + 6, Y: y, Width: half, Height: 24}, "Checkpoint") {
		act.Checkpoint = true
	}
	y += 30

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: inner, Height: 24}, "Reset View") {
		act.ResetView = true
	}
	y += 30

	rl.DrawText(fmt.Sprintf("Speed: %dx", state.Speed), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	speed := gui.SliderBar(rl.Rectangle{X: x + 12, Y: y, Width: inner - 36, Height: 16}, "1", fmt.Sprint(MaxSpeed),
		float32(state.Speed), 1, MaxSpeed)
	state.Speed = int(speed + 0.5)
	y += 26

	for _, category := range overlays.Categories() {
		y = float32(r.DrawSectionHeader(int32(x), int32(y), categoryLabel(category))) + 6
		for _, desc := range overlays.ByCategory(category) {
			label := fmt.Sprintf("%s [%s]", desc.Name, desc.KeyLabel)
			if gui.Button(rl.Rectangle{X: x, Y: y, Width: inner, Height: 20}, toggleText(overlays.IsEnabled(desc.ID), "# "+label, label)) {
				overlays.Toggle(desc.ID)
			}
			y += 22
		}
	}

	return act
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}

// categoryLabel returns a display label for a category.
func categoryLabel(cat string) string {
	switch cat {
	case "maps":
		return "Maps"
	case "herd":
		return "Herd"
	default:
		return cat
	}
}

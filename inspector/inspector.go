package inspector

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/camera"
	"github.com/pthm-cable/herd/systems"
)

// Panel dimensions
const (
	PanelWidth   = 320
	PanelPadding = 10
	HeaderHeight = 30
)

// Panel colors
var (
	ColorPanelBg     = rl.Color{R: 30, G: 30, B: 35, A: 240}
	ColorPanelHeader = rl.Color{R: 45, G: 45, B: 55, A: 255}
	ColorPanelBorder = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorHeaderText  = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorCloseBtn    = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorSection     = rl.Color{R: 50, G: 50, B: 60, A: 255}
	ColorSectionText = rl.Color{R: 200, G: 200, B: 220, A: 255}
)

// hitRadius is the click tolerance in screen pixels.
const hitRadius = 10

// Inspector manages sheep selection and panel rendering. The selection is
// an index into the herd's agent order, which is stable for a session.
type Inspector struct {
	selected     int
	hasSelected  bool
	panelX       int32
	panelY       int32
	screenWidth  int32
	screenHeight int32
}

// NewInspector creates a new inspector instance.
func NewInspector(screenWidth, screenHeight int32) *Inspector {
	return &Inspector{
		panelX:       screenWidth - PanelWidth - 10,
		panelY:       10,
		screenWidth:  screenWidth,
		screenHeight: screenHeight,
	}
}

// Resize moves the panel for a new screen size.
func (ins *Inspector) Resize(screenWidth, screenHeight int32) {
	ins.screenWidth = screenWidth
	ins.screenHeight = screenHeight
	ins.panelX = screenWidth - PanelWidth - 10
}

// HandleInput processes click detection for sheep selection. It reports
// whether the click was consumed.
func (ins *Inspector) HandleInput(mouseX, mouseY float32, cam *camera.Camera, agents []systems.Agent) bool {
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) || rl.IsKeyPressed(rl.KeyEscape) {
		ins.Deselect()
		return false
	}

	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return false
	}

	if ins.hasSelected {
		closeX := ins.panelX + PanelWidth - 25
		closeY := ins.panelY + 5
		if int32(mouseX) >= closeX && int32(mouseX) <= closeX+20 &&
			int32(mouseY) >= closeY && int32(mouseY) <= closeY+20 {
			ins.Deselect()
			return true
		}

		if int32(mouseX) >= ins.panelX && int32(mouseX) <= ins.panelX+PanelWidth &&
			int32(mouseY) >= ins.panelY {
			return true
		}
	}

	if i, ok := Pick(mouseX, mouseY, cam, agents); ok {
		ins.selected = i
		ins.hasSelected = true
		return true
	}
	return false
}

// Pick returns the index of the agent closest to the screen point, if one
// lies within the click tolerance.
func Pick(sx, sy float32, cam *camera.Camera, agents []systems.Agent) (int, bool) {
	best, bestDist := -1, float32(hitRadius*hitRadius)
	for i := range agents {
		p := agents[i].Position
		ax, ay := cam.WorldToScreen(float32(p.X), float32(p.Z))
		dx, dy := sx-ax, sy-ay
		if d := dx*dx + dy*dy; d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

// Deselect clears the current selection.
func (ins *Inspector) Deselect() {
	ins.hasSelected = false
}

// Selected returns the index of the selected agent.
func (ins *Inspector) Selected() (int, bool) {
	return ins.selected, ins.hasSelected
}

// Draw renders the inspector panel for the selected sheep. rec holds the
// stored components and a the decoded agent.
func (ins *Inspector) Draw(rec systems.Record, a systems.Agent) {
	if !ins.hasSelected {
		return
	}

	sections := []struct {
		title  string
		fields []Field
	}{
		{"TRANSFORM", append(ExtractFields(rec.Position), ExtractFields(rec.Heading)...)},
		{"BEHAVIOR", ExtractFields(rec.Sheep)},
	}

	height := int32(HeaderHeight + PanelPadding + 22 + 8)
	for _, s := range sections {
		height += 24 + fieldsHeight(s.fields)
	}
	height += 22 + PanelPadding

	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, height, ColorPanelBg)
	rl.DrawRectangleLinesEx(
		rl.Rectangle{X: float32(ins.panelX), Y: float32(ins.panelY), Width: PanelWidth, Height: float32(height)},
		1,
		ColorPanelBorder,
	)

	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, HeaderHeight, ColorPanelHeader)
	rl.DrawText("INSPECTOR", ins.panelX+PanelPadding, ins.panelY+7, 16, ColorHeaderText)

	closeX := ins.panelX + PanelWidth - 25
	closeY := ins.panelY + 5
	rl.DrawRectangle(closeX, closeY, 20, 20, ColorCloseBtn)
	rl.DrawText("X", closeX+6, closeY+3, 14, rl.White)

	y := ins.panelY + HeaderHeight + PanelPadding
	x := ins.panelX + PanelPadding

	rl.DrawText(fmt.Sprintf("Sheep #%d  group %d", rec.Tag.ID, rec.Sheep.UpdateGroupID), x, y, 14, ColorHeaderText)
	y += 22

	rl.DrawLine(x, y, ins.panelX+PanelWidth-PanelPadding, y, ColorPanelBorder)
	y += 8

	for _, s := range sections {
		ins.drawSectionHeader(x, y, s.title)
		y += 20
		for _, f := range s.fields {
			y += DrawField(x, y, f)
		}
		y += 4
	}

	rl.DrawText(stateDetail(a.State), x, y, 14, ColorTextDim)
}

// stateDetail describes the payload of the current state.
func stateDetail(d systems.StateData) string {
	switch v := d.(type) {
	case systems.MoveToTargetData:
		return fmt.Sprintf("stuck for %d ticks", v.StuckTicks)
	case systems.FollowTraceData:
		return fmt.Sprintf("stuck for %d ticks", v.StuckTicks)
	case systems.MoveToLessHeatData:
		switch v.TurnSign {
		case 1:
			return "turning right"
		case -1:
			return "turning left"
		}
		return "not turning"
	case systems.IdleData:
		return fmt.Sprintf("idle for %ds", v.Duration)
	case systems.RunAwayData:
		return fmt.Sprintf("fleeing repulse %d", v.MaxRepulse)
	}
	return ""
}

func fieldsHeight(fields []Field) int32 {
	var h int32
	for _, f := range fields {
		switch f.Widget {
		case WidgetAngle:
			h += 44
		case WidgetLabel, WidgetAuto, WidgetGround:
			h += 20
		default:
			h += 18
		}
	}
	return h
}

// drawSectionHeader renders a section title.
func (ins *Inspector) drawSectionHeader(x, y int32, title string) {
	rl.DrawRectangle(x-2, y-2, PanelWidth-2*PanelPadding+4, 18, ColorSection)
	rl.DrawText(title, x+2, y, 14, ColorSectionText)
}

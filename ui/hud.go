package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/systems"
	"github.com/pthm-cable/herd/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title       string
	Agents      int
	States      [systems.NumStates]int
	Tick        int64
	SimTime     float64
	Iterator    int
	MaxGroups   int
	Speed       int
	FPS         int32
	Paused      bool
	EditPoints  bool
	MapVersion  uint64
	MapsDropped uint64
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD at (x, y) and returns the y below it.
func (h *HUD) Draw(x, y int32, data HUDData) int32 {
	rl.DrawText(data.Title, x, y, 20, rl.White)
	y += 25

	rl.DrawText(
		fmt.Sprintf("Sheep: %d | Tick: %d | Time: %.1fs | Group: %d/%d", data.Agents, data.Tick, data.SimTime, data.Iterator, data.MaxGroups),
		x, y, 16, rl.LightGray,
	)
	y += 20

	rl.DrawText(
		fmt.Sprintf("Speed: %dx | FPS: %d | Maps: v%d (%d dropped)", data.Speed, data.FPS, data.MapVersion, data.MapsDropped),
		x, y, 16, rl.LightGray,
	)
	y += 20

	status := "Running"
	if data.Paused {
		status = "PAUSED"
	}
	if data.EditPoints {
		status += " | drag points to move them"
	}
	rl.DrawText(status, x, y, 16, rl.Yellow)
	y += 22

	for s := systems.State(0); int(s) < systems.NumStates; s++ {
		frac := float32(0)
		if data.Agents > 0 {
			frac = float32(data.States[s]) / float32(data.Agents)
		}
		y = h.renderer.DrawBar(x, y, s.String(), frac, systems.StateColor(s), 260)
	}
	return y
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the tick phase breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats, workers int) {
	x := p.x
	y := p.y

	rl.DrawText("Tick Performance", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Avg: %s  TPS: %.0f  Workers: %d", stats.AvgTickDuration.Round(time.Microsecond), stats.TicksPerSecond, workers), x, y, 14, rl.Yellow)
	y += 16
	y = p.renderer.DrawLabelValue(x, y, "sheep/s", humanize.SIWithDigits(stats.AgentStepsPerSecond, 1, ""))
	y = p.renderer.DrawLabelValue(x, y, "ns/sheep", fmt.Sprintf("%.0f", stats.SteeringNsPerAgent))

	for _, name := range telemetry.Phases {
		avg := stats.PhaseAvg[name]
		pct := stats.PhasePct[name]

		color := p.renderer.Theme.ValueColor
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = p.renderer.Theme.Warn
		}

		rl.DrawText(
			fmt.Sprintf("%-14s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}

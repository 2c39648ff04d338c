// Package game is the raylib viewer. It drives a sim.Simulation and draws
// the baked maps, the herd and the control panels.
package game

import (
	"fmt"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/camera"
	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/inspector"
	"github.com/pthm-cable/herd/renderer"
	"github.com/pthm-cable/herd/sim"
	"github.com/pthm-cable/herd/ui"
)

// Map layer tints.
var (
	tintHeat      = rl.Color{R: 255, G: 140, B: 40, A: 255}
	tintTrace     = rl.Color{R: 80, G: 170, B: 255, A: 255}
	tintRepulse   = rl.Color{R: 230, G: 50, B: 60, A: 255}
	tintAttractID = rl.Color{R: 120, G: 255, B: 140, A: 255}
)

// agentRadius is the drawn sheep size in world units.
const agentRadius = 0.6

// Game holds the simulation and everything needed to show it.
type Game struct {
	cfg *config.Config
	sim *sim.Simulation

	camera    *camera.Camera
	heat      *renderer.MapLayer
	trace     *renderer.MapLayer
	repulse   *renderer.MapLayer
	attractID *renderer.MapLayer

	overlays  *ui.OverlayRegistry
	controls  *ui.ControlsPanel
	state     ui.ControlsState
	pending   ui.ControlsAction
	hud       *ui.HUD
	perfPanel *ui.PerfPanel
	showPerf  bool
	inspector *inspector.Inspector

	dragging    *renderer.PointRef
	snapshotDir string

	screenWidth, screenHeight float32
}

// New creates the viewer. The raylib window must already be open.
func New(cfg *config.Config, opts sim.Options, stepsPerUpdate int) (*Game, error) {
	s, err := sim.New(cfg, opts)
	if err != nil {
		return nil, err
	}

	w, h := float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight())
	side := float32(cfg.Derived.PhysicalSide)

	g := &Game{
		cfg:          cfg,
		sim:          s,
		camera:       camera.New(w, h, side),
		heat:         renderer.NewMapLayer(cfg.Channels.Heat, tintHeat, 0.8),
		trace:        renderer.NewMapLayer(cfg.Channels.Trace, tintTrace, 1.5),
		repulse:      renderer.NewMapLayer(cfg.Channels.Repulse, tintRepulse, 0.7),
		attractID:    renderer.NewMapLayer(cfg.Channels.AttractID, tintAttractID, 8),
		overlays:     ui.NewOverlayRegistry(),
		controls:     ui.NewControlsPanel(10, 210, 200),
		state:        ui.ControlsState{Speed: min(max(stepsPerUpdate, 1), ui.MaxSpeed)},
		hud:          ui.NewHUD(),
		perfPanel:    ui.NewPerfPanel(int32(w)-300, int32(h)-200),
		inspector:    inspector.NewInspector(int32(w), int32(h)),
		snapshotDir:  opts.SnapshotDir,
		screenWidth:  w,
		screenHeight: h,
	}
	if g.snapshotDir == "" {
		g.snapshotDir = "snapshots"
	}
	return g, nil
}

// Update handles input and advances the simulation for one frame.
func (g *Game) Update() {
	g.sim.Perf().RecordFrame()
	g.handleInput()
	g.applyActions()

	if g.state.Paused {
		return
	}
	for i := 0; i < g.state.Speed; i++ {
		if !g.step() {
			return
		}
	}
}

func (g *Game) step() bool {
	if err := g.sim.Step(); err != nil {
		slog.Error("simulation stopped", "error", err)
		g.state.Paused = true
		return false
	}
	return true
}

// applyActions runs the one-shot requests made through the controls panel
// on the previous frame.
func (g *Game) applyActions() {
	act := g.pending
	g.pending = ui.ControlsAction{}

	if act.Step && g.state.Paused {
		g.step()
	}
	if act.Checkpoint {
		g.checkpoint()
	}
	if act.ResetView {
		g.camera.Reset()
	}
}

// checkpoint archives the herd when a database is open, and writes a
// snapshot file otherwise.
func (g *Game) checkpoint() {
	if g.sim.RunID() != "" {
		id, err := g.sim.Checkpoint()
		if err != nil {
			slog.Error("checkpoint failed", "error", err)
		} else {
			slog.Info("checkpoint saved", "id", id, "tick", g.sim.Tick())
		}
		return
	}
	if _, err := g.sim.SaveSnapshot(g.snapshotDir); err != nil {
		slog.Error("snapshot failed", "error", err)
	}
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int64 {
	return g.sim.Tick()
}

// Unload releases textures and stops the simulation.
func (g *Game) Unload() {
	for _, l := range g.layers() {
		l.Unload()
	}
	if err := g.sim.Close(); err != nil {
		slog.Error("closing simulation", "error", err)
	}
}

func (g *Game) layers() []*renderer.MapLayer {
	return []*renderer.MapLayer{g.heat, g.trace, g.repulse, g.attractID}
}

func (g *Game) title() string {
	return fmt.Sprintf("Herd (%d sheep)", g.sim.Herd().Count())
}

package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/renderer"
	"github.com/pthm-cable/herd/ui"
)

var colorBackground = rl.Color{R: 18, G: 20, B: 24, A: 255}

const controlsLegend = "SPACE pause | N step | ,/. speed | E move points | K checkpoint | TAB panel | F3 perf | HOME reset view"

// Draw renders one frame.
func (g *Game) Draw() {
	rl.BeginDrawing()
	defer rl.EndDrawing()
	rl.ClearBackground(colorBackground)

	side := float32(g.cfg.Derived.PhysicalSide)
	g.uploadLayers()
	for _, l := range g.enabledLayers() {
		l.Draw(g.camera, side)
	}
	renderer.DrawBorder(g.camera, side)

	herd := g.sim.Herd()
	agents := herd.Agents()
	selected, hasSelected := g.inspector.Selected()
	if !hasSelected || selected >= len(agents) {
		selected = -1
	}

	group := -1
	if g.overlays.IsEnabled(ui.OverlayStagger) {
		group = herd.Stagger().Iterator
	}
	renderer.DrawAgents(g.camera, agents, agentRadius, group, selected)

	points := g.sim.Points()
	if g.overlays.IsEnabled(ui.OverlayTargets) {
		for i := range agents {
			a := &agents[i]
			if g.camera.IsVisible(float32(a.Position.X), float32(a.Position.Z), agentRadius) {
				renderer.DrawTargets(g.camera, a, nil, agentRadius*4)
			}
		}
	}
	if selected >= 0 {
		renderer.DrawTargets(g.camera, &agents[selected], points, agentRadius*4)
	}
	if g.overlays.IsEnabled(ui.OverlayPoints) || g.state.EditPoints {
		renderer.DrawPoints(g.camera, points, g.dragging)
	}

	g.drawHUD()
	g.pending = g.controls.Draw(&g.state, g.overlays)
	if g.showPerf {
		g.perfPanel.Draw(g.sim.Perf().Stats(), herd.Workers())
	}
	if selected >= 0 {
		if rec, ok := herd.Record(selected); ok {
			g.inspector.Draw(rec, agents[selected])
		}
	}
	g.hud.DrawControls(int32(g.screenHeight), controlsLegend)
}

// uploadLayers refreshes the map textures from the latest published maps.
func (g *Game) uploadLayers() {
	p := g.sim.Pipeline()
	if l, ok := p.Movement.Acquire(); ok {
		g.heat.Update(l.Value(), l.Version())
		g.trace.Update(l.Value(), l.Version())
		l.Release()
	}
	if l, ok := p.Input.Acquire(); ok {
		g.repulse.Update(l.Value().Map, l.Version())
		g.attractID.Update(l.Value().Map, l.Version())
		l.Release()
	}
}

func (g *Game) enabledLayers() []*renderer.MapLayer {
	var out []*renderer.MapLayer
	for _, e := range []struct {
		id    ui.OverlayID
		layer *renderer.MapLayer
	}{
		{ui.OverlayHeat, g.heat},
		{ui.OverlayTrace, g.trace},
		{ui.OverlayRepulse, g.repulse},
		{ui.OverlayAttractID, g.attractID},
	} {
		if g.overlays.IsEnabled(e.id) {
			out = append(out, e.layer)
		}
	}
	return out
}

func (g *Game) drawHUD() {
	herd := g.sim.Herd()
	clock := herd.Clock()
	data := ui.HUDData{
		Title:      g.title(),
		Agents:     herd.Count(),
		Tick:       clock.Tick,
		SimTime:    clock.Now,
		Iterator:   clock.Iterator,
		MaxGroups:  herd.Stagger().MaxGroups,
		Speed:      g.state.Speed,
		FPS:        rl.GetFPS(),
		Paused:     g.state.Paused,
		EditPoints: g.state.EditPoints,
	}
	for _, a := range herd.Agents() {
		data.States[a.CurrentState()]++
	}
	stats := g.sim.Pipeline().Stats()
	data.MapVersion = stats.MovementPublished
	data.MapsDropped = stats.MovementDropped + stats.InputDropped
	g.hud.Draw(10, 10, data)
}

// Package telemetry provides herd statistics windows, performance timing,
// bookmarks, and snapshots.
package telemetry

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/maps"
	"github.com/pthm-cable/herd/systems"
)

// Collector accumulates tick counters within time windows and produces
// WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64
	ticks           int
	agentTicks      int

	// Counters for current window
	counts       systems.TickCounters
	skippedTicks int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int64(1)
	if dt > 0 {
		ticksPerWindow = int64(windowDurationSec/dt + 0.5)
	}
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordTick adds one completed tick over agents agents.
func (c *Collector) RecordTick(counts systems.TickCounters, agents int) {
	c.counts.Add(counts)
	c.ticks++
	c.agentTicks += agents
}

// RecordSkippedTick records a tick whose steering was skipped.
func (c *Collector) RecordSkippedTick() {
	c.skippedTicks++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// HerdSample is the per-agent state sampled at window end.
type HerdSample struct {
	States          [systems.NumStates]int
	Heat            []float64
	TargetDistances []float64
	RepulseMean     float64
	MapVersion      uint64
	MapsDropped     uint64
}

// SampleHerd measures agents against the movement map and input points.
// movement and points may be nil.
func SampleHerd(agents []systems.Agent, movement *maps.SpatialMap, heatChannel int, points *maps.InputPointSet) HerdSample {
	s := HerdSample{
		Heat:            make([]float64, 0, len(agents)),
		TargetDistances: make([]float64, 0, len(agents)),
	}
	var repulse float64
	for i := range agents {
		a := &agents[i]
		if st := a.CurrentState(); int(st) < systems.NumStates {
			s.States[st]++
		}
		if movement != nil {
			s.Heat = append(s.Heat, float64(movement.Sample(a.Position, heatChannel)))
		}
		if target, ok := points.AttractAt(a.InputAttractIndex); ok {
			s.TargetDistances = append(s.TargetDistances, r2.Norm(r2.Sub(target, ground(a.Position))))
		}
		repulse += a.InputRepulseStrength
	}
	if len(agents) > 0 {
		s.RepulseMean = repulse / float64(len(agents))
	}
	return s
}

func ground(p r3.Vec) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Z}
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, sample HerdSample) WindowStats {
	heat := ComputeDistribution(sample.Heat)
	dist := ComputeDistribution(sample.TargetDistances)

	agents := 0
	for _, n := range sample.States {
		agents += n
	}

	var blockedRate float64
	if c.agentTicks > 0 {
		blockedRate = float64(c.counts.Blocked) / float64(c.agentTicks)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Agents:         agents,
		MoveToTarget:   sample.States[systems.StateMoveToTarget],
		FollowTrace:    sample.States[systems.StateFollowTrace],
		MoveToLessHeat: sample.States[systems.StateMoveToLessHeat],
		Idle:           sample.States[systems.StateIdle],
		RunAway:        sample.States[systems.StateRunAway],

		Transitions:    c.counts.Transitions,
		ForcedRunAways: c.counts.ForcedRunAways,
		Blocked:        c.counts.Blocked,
		Searches:       c.counts.Searches,
		Retargets:      c.counts.Retargets,
		SkippedTicks:   c.skippedTicks,
		BlockedRate:    blockedRate,

		HeatMean: heat.Mean,
		HeatStd:  heat.Std,
		HeatP10:  heat.P10,
		HeatP50:  heat.P50,
		HeatP90:  heat.P90,

		TargetDistMean: dist.Mean,
		TargetDistP50:  dist.P50,
		TargetDistP90:  dist.P90,

		RepulseMean: sample.RepulseMean,
		MapVersion:  sample.MapVersion,
		MapsDropped: sample.MapsDropped,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.counts = systems.TickCounters{}
	c.ticks = 0
	c.agentTicks = 0
	c.skippedTicks = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}

// StartAt begins the current window at tick. Used when resuming a run.
func (c *Collector) StartAt(tick int64) {
	c.windowStartTick = tick
}

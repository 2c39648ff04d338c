package telemetry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/maps"
	"github.com/pthm-cable/herd/systems"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(1.0, 0.1)
	if got := c.WindowDurationTicks(); got != 10 {
		t.Fatalf("WindowDurationTicks = %d, want 10", got)
	}
	if c.ShouldFlush(9) {
		t.Error("flush before window end")
	}
	if !c.ShouldFlush(10) {
		t.Error("no flush at window end")
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.0, 0.5)
	for i := 0; i < 2; i++ {
		c.RecordTick(systems.TickCounters{Transitions: 3, Blocked: 2, Searches: 1, Retargets: 1}, 4)
	}
	c.RecordSkippedTick()

	m := maps.New(10, 10, r2.Vec{X: 10, Y: 10})
	m.Set(5, 5, 0, 100)
	points := &maps.InputPointSet{Attract: []r2.Vec{{X: 3, Y: 4}}}
	agents := []systems.Agent{
		{State: systems.MoveToTargetData{}, Position: r3.Vec{X: 0.5, Z: 0.5}, InputRepulseStrength: 40},
		{State: systems.RunAwayData{}, Position: r3.Vec{X: 3, Z: -1}, InputRepulseStrength: 20},
		{State: systems.IdleData{}, Position: r3.Vec{X: 3, Z: -1}},
		{State: systems.IdleData{}, Position: r3.Vec{X: 3, Z: -1}},
	}
	stats := c.Flush(2, SampleHerd(agents, m, 0, points))

	if stats.Agents != 4 || stats.Idle != 2 || stats.RunAway != 1 || stats.MoveToTarget != 1 {
		t.Errorf("state counts = %+v", stats)
	}
	if stats.Transitions != 6 || stats.Blocked != 4 || stats.Retargets != 2 || stats.SkippedTicks != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if math.Abs(stats.BlockedRate-0.5) > 1e-9 {
		t.Errorf("blocked rate = %v, want 0.5", stats.BlockedRate)
	}
	if stats.HeatP90 <= 0 || stats.HeatP10 != 0 {
		t.Errorf("heat distribution p10=%v p90=%v", stats.HeatP10, stats.HeatP90)
	}
	if math.Abs(stats.TargetDistP50-5) > 0.5 {
		t.Errorf("target distance p50 = %v, want ~5", stats.TargetDistP50)
	}
	if stats.RepulseMean != 15 {
		t.Errorf("repulse mean = %v, want 15", stats.RepulseMean)
	}
	if stats.SimTimeSec != 1 {
		t.Errorf("sim time = %v, want 1", stats.SimTimeSec)
	}

	next := c.Flush(4, HerdSample{})
	if next.Transitions != 0 || next.SkippedTicks != 0 || next.WindowStartTick != 2 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestSampleHerdWithoutMaps(t *testing.T) {
	s := SampleHerd([]systems.Agent{{}}, nil, 0, nil)
	if len(s.Heat) != 0 || len(s.TargetDistances) != 0 {
		t.Errorf("sample = %+v", s)
	}
	if s.States[systems.StateMoveToTarget] != 1 {
		t.Errorf("nil state not counted as move_to_target")
	}
}

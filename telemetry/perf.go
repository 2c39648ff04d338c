package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/herd/systems"
)

// Phase names for the simulation step.
const (
	PhaseLease       = "lease"
	PhaseSnapshot    = systems.PhaseSnapshot
	PhaseSteering    = systems.PhaseSteering
	PhaseApply       = systems.PhaseApply
	PhaseBakeRequest = "bake_request"
	PhaseTelemetry   = "telemetry"
)

// Phases lists every phase in tick order.
var Phases = []string{
	PhaseLease, PhaseSnapshot, PhaseSteering,
	PhaseApply, PhaseBakeRequest, PhaseTelemetry,
}

// maxPhases bounds the number of distinct phase names a collector tracks.
// Names past the limit are not timed.
const maxPhases = 16

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Agents       int
	Phases       [maxPhases]time.Duration // indexed by collector slot
}

// PerfCollector tracks tick timing over a rolling window. Phase durations
// live in fixed slots so a tick allocates nothing.
type PerfCollector struct {
	windowSize  int
	samples     []PerfSample
	writeIndex  int
	sampleCount int

	slots   map[string]int
	names   []string
	current PerfSample

	tickStart  time.Time
	phaseStart time.Time
	lastSlot   int // -1 when no phase is open

	// Frame timing (for graphics mode)
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	p := &PerfCollector{
		windowSize: windowSize,
		samples:    make([]PerfSample, windowSize),
		slots:      make(map[string]int, maxPhases),
		lastSlot:   -1,
	}
	for _, name := range Phases {
		p.slot(name)
	}
	return p
}

func (p *PerfCollector) slot(name string) int {
	if i, ok := p.slots[name]; ok {
		return i
	}
	if len(p.names) == maxPhases {
		return -1
	}
	i := len(p.names)
	p.slots[name] = i
	p.names = append(p.names, name)
	return i
}

// StartTick begins timing a tick that steps agents sheep.
func (p *PerfCollector) StartTick(agents int) {
	p.tickStart = time.Now()
	p.current = PerfSample{Agents: agents}
	p.lastSlot = -1
}

// StartPhase closes the open phase and begins timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.lastSlot = p.slot(phase)
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.lastSlot >= 0 {
		p.current.Phases[p.lastSlot] += now.Sub(p.phaseStart)
	}
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.lastSlot = -1
	p.current.TickDuration = now.Sub(p.tickStart)

	p.samples[p.writeIndex] = p.current
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// RecordFrame records frame timing for graphics mode.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Tick timing
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total tick time
	PhasePct map[string]float64

	// Throughput
	TicksPerSecond      float64
	AgentStepsPerSecond float64 // sheep advanced per wall-clock second
	SteeringNsPerAgent  float64

	// Frame timing (graphics mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDuration,
	}
	if p.frameDuration > 0 {
		stats.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.sampleCount == 0 {
		return stats
	}

	var totalTick time.Duration
	var phaseSum [maxPhases]time.Duration
	agents := 0
	for i := 0; i < p.sampleCount; i++ {
		s := &p.samples[i]
		totalTick += s.TickDuration
		agents += s.Agents
		if i == 0 || s.TickDuration < stats.MinTickDuration {
			stats.MinTickDuration = s.TickDuration
		}
		stats.MaxTickDuration = max(stats.MaxTickDuration, s.TickDuration)
		for j := range p.names {
			phaseSum[j] += s.Phases[j]
		}
	}

	n := time.Duration(p.sampleCount)
	stats.AvgTickDuration = totalTick / n
	for j, name := range p.names {
		if phaseSum[j] == 0 {
			continue
		}
		avg := phaseSum[j] / n
		stats.PhaseAvg[name] = avg
		if stats.AvgTickDuration > 0 {
			stats.PhasePct[name] = float64(avg) / float64(stats.AvgTickDuration) * 100
		}
	}

	if totalTick > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
		stats.AgentStepsPerSecond = float64(agents) / totalTick.Seconds()
	}
	if agents > 0 {
		stats.SteeringNsPerAgent = float64(phaseSum[p.slots[PhaseSteering]]) / float64(agents)
	}
	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer for structured logging. Phases below
// 0.1% of the tick are left out.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
		slog.Int("agent_steps_per_sec", int(s.AgentStepsPerSecond)),
		slog.Float64("steering_ns_per_agent", s.SteeringNsPerAgent),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd          int64   `csv:"window_end"`
	AvgTickUS          int64   `csv:"avg_tick_us"`
	MinTickUS          int64   `csv:"min_tick_us"`
	MaxTickUS          int64   `csv:"max_tick_us"`
	TicksPerSec        float64 `csv:"ticks_per_sec"`
	AgentStepsPerSec   float64 `csv:"agent_steps_per_sec"`
	SteeringNsPerAgent float64 `csv:"steering_ns_per_agent"`
	FPS                float64 `csv:"fps"`
	LeasePct           float64 `csv:"lease_pct"`
	SnapshotPct        float64 `csv:"snapshot_pct"`
	SteeringPct        float64 `csv:"steering_pct"`
	ApplyPct           float64 `csv:"apply_pct"`
	BakeRequestPct     float64 `csv:"bake_request_pct"`
	TelemetryPct       float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:          windowEnd,
		AvgTickUS:          s.AvgTickDuration.Microseconds(),
		MinTickUS:          s.MinTickDuration.Microseconds(),
		MaxTickUS:          s.MaxTickDuration.Microseconds(),
		TicksPerSec:        s.TicksPerSecond,
		AgentStepsPerSec:   s.AgentStepsPerSecond,
		SteeringNsPerAgent: s.SteeringNsPerAgent,
		FPS:                s.FPS,
		LeasePct:           s.PhasePct[PhaseLease],
		SnapshotPct:        s.PhasePct[PhaseSnapshot],
		SteeringPct:        s.PhasePct[PhaseSteering],
		ApplyPct:           s.PhasePct[PhaseApply],
		BakeRequestPct:     s.PhasePct[PhaseBakeRequest],
		TelemetryPct:       s.PhasePct[PhaseTelemetry],
	}
}

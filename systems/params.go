package systems

import (
	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

// Params holds the steering constants. It is built once from config and
// never changes during a run.
type Params struct {
	MaxGroups  int
	WorldScale float64

	MoveSpeed      float64
	TurnSpeed      float64 // radians per second
	ProbeFactor    float64
	SearchDistance float64 // look-around probe distance in author units
	SearchSpread   float64 // radians
	FanSteps       int

	MoveBlock         uint8
	StuckBudget       int
	StuckEscapeChance float64
	TargetDwell       float64
	DwellExitChance   float64

	TraceFollow uint8
	TraceWeak   uint8

	LessHeatBlock       uint8
	LessHeatSideSamples int
	LessHeatSideStride  float64
	LessHeatTurnRate    float64
	ClearSideHeat       uint8
	LessHeatMinDwell    float64
	LessHeatDwellJitter float64
	LessHeatTargetOdds  float64
	LessHeatIdleOdds    float64
	LessHeatTraceOdds   float64

	IdleMin    int
	IdleJitter int

	RunAwayTrigger      uint8
	RunAwayBlock        uint8
	RunAwaySpeed        float64
	RunAwaySectors      int
	RunAwayScanDistance float64
	RunAwayExitChance   float64
	RunAwayTurnFactor   float64

	RetargetFromInputMap bool

	HeatChannel      int
	TraceChannel     int
	RepulseChannel   int
	AttractIDChannel int
}

// ParamsFromConfig copies the steering section of cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	s := cfg.Steering
	return Params{
		MaxGroups:  cfg.Herd.MaxGroups,
		WorldScale: cfg.World.Scale,

		MoveSpeed:      s.MoveSpeed,
		TurnSpeed:      s.TurnSpeed,
		ProbeFactor:    s.ProbeFactor,
		SearchDistance: s.SearchDistance,
		SearchSpread:   cfg.Derived.SearchSpread,
		FanSteps:       s.FanSteps,

		MoveBlock:         s.MoveBlock,
		StuckBudget:       s.StuckBudget,
		StuckEscapeChance: s.StuckEscapeChance,
		TargetDwell:       s.TargetDwell,
		DwellExitChance:   s.DwellExitChance,

		TraceFollow: s.TraceFollow,
		TraceWeak:   s.TraceWeak,

		LessHeatBlock:       s.LessHeatBlock,
		LessHeatSideSamples: s.LessHeatSideSamples,
		LessHeatSideStride:  s.LessHeatSideStride,
		LessHeatTurnRate:    s.LessHeatTurnRate,
		ClearSideHeat:       s.ClearSideHeat,
		LessHeatMinDwell:    s.LessHeatMinDwell,
		LessHeatDwellJitter: s.LessHeatDwellJitter,
		LessHeatTargetOdds:  s.LessHeatTargetOdds,
		LessHeatIdleOdds:    s.LessHeatIdleOdds,
		LessHeatTraceOdds:   s.LessHeatTraceOdds,

		IdleMin:    s.IdleMin,
		IdleJitter: s.IdleJitter,

		RunAwayTrigger:      s.RunAwayTrigger,
		RunAwayBlock:        s.RunAwayBlock,
		RunAwaySpeed:        s.RunAwaySpeed,
		RunAwaySectors:      s.RunAwaySectors,
		RunAwayScanDistance: s.RunAwayScanDistance,
		RunAwayExitChance:   s.RunAwayExitChance,
		RunAwayTurnFactor:   s.RunAwayTurnFactor,

		RetargetFromInputMap: s.RetargetFromInputMap,

		HeatChannel:      cfg.Channels.Heat,
		TraceChannel:     cfg.Channels.Trace,
		RepulseChannel:   cfg.Channels.Repulse,
		AttractIDChannel: cfg.Channels.AttractID,
	}
}

// TickInput is everything the engine reads during one tick. All of it is
// shared read-only across workers.
type TickInput struct {
	Movement *maps.SpatialMap    // heat and trace channels; required
	Input    *maps.SpatialMap    // repulse and attract id channels; nil disables both
	Points   *maps.InputPointSet // nil disables target seeking
	Random   *RandomPool
	Iterator int     // stagger group searching this tick
	Now      float64 // simulated seconds
	DT       float64
}

// TickCounters aggregates what happened to the herd during a tick.
type TickCounters struct {
	Transitions    int
	ForcedRunAways int
	Blocked        int
	Searches       int
	Retargets      int
}

// Add accumulates o into c.
func (c *TickCounters) Add(o TickCounters) {
	c.Transitions += o.Transitions
	c.ForcedRunAways += o.ForcedRunAways
	c.Blocked += o.Blocked
	c.Searches += o.Searches
	c.Retargets += o.Retargets
}

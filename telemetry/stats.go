package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/herd/systems"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Agents         int `csv:"agents"`
	MoveToTarget   int `csv:"move_to_target"`
	FollowTrace    int `csv:"follow_trace"`
	MoveToLessHeat int `csv:"move_to_less_heat"`
	Idle           int `csv:"idle"`
	RunAway        int `csv:"run_away"`

	// Events during window
	Transitions    int     `csv:"transitions"`
	ForcedRunAways int     `csv:"forced_run_aways"`
	Blocked        int     `csv:"blocked"`
	Searches       int     `csv:"searches"`
	Retargets      int     `csv:"retargets"`
	SkippedTicks   int     `csv:"skipped_ticks"`
	BlockedRate    float64 `csv:"blocked_rate"` // blocked forward checks per agent-tick

	// Heat under each agent (sampled at window end)
	HeatMean float64 `csv:"heat_mean"`
	HeatStd  float64 `csv:"heat_std"`
	HeatP10  float64 `csv:"heat_p10"`
	HeatP50  float64 `csv:"heat_p50"`
	HeatP90  float64 `csv:"heat_p90"`

	// Distance to each agent's attract point
	TargetDistMean float64 `csv:"target_dist_mean"`
	TargetDistP50  float64 `csv:"target_dist_p50"`
	TargetDistP90  float64 `csv:"target_dist_p90"`

	RepulseMean float64 `csv:"repulse_mean"`

	// Map hand-off
	MapVersion  uint64 `csv:"map_version"`
	MapsDropped uint64 `csv:"maps_dropped"`
}

// StateCount returns the number of agents in s.
func (s WindowStats) StateCount(st systems.State) int {
	switch st {
	case systems.StateMoveToTarget:
		return s.MoveToTarget
	case systems.StateFollowTrace:
		return s.FollowTrace
	case systems.StateMoveToLessHeat:
		return s.MoveToLessHeat
	case systems.StateIdle:
		return s.Idle
	case systems.StateRunAway:
		return s.RunAway
	}
	return 0
}

// Fraction returns the share of agents in st.
func (s WindowStats) Fraction(st systems.State) float64 {
	if s.Agents == 0 {
		return 0
	}
	return float64(s.StateCount(st)) / float64(s.Agents)
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution summarizes a sample.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// ComputeDistribution calculates mean, population std, and percentiles.
func ComputeDistribution(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	mean := stat.Mean(values, nil)
	// Population variance, matching a full census of the herd.
	std := stat.PopStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean: mean,
		Std:  std,
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("move_to_target", s.MoveToTarget),
		slog.Int("follow_trace", s.FollowTrace),
		slog.Int("move_to_less_heat", s.MoveToLessHeat),
		slog.Int("idle", s.Idle),
		slog.Int("run_away", s.RunAway),
		slog.Int("transitions", s.Transitions),
		slog.Int("forced_run_aways", s.ForcedRunAways),
		slog.Int("blocked", s.Blocked),
		slog.Int("searches", s.Searches),
		slog.Int("retargets", s.Retargets),
		slog.Int("skipped_ticks", s.SkippedTicks),
		slog.Float64("blocked_rate", s.BlockedRate),
		slog.Float64("heat_mean", s.HeatMean),
		slog.Float64("heat_std", s.HeatStd),
		slog.Float64("heat_p10", s.HeatP10),
		slog.Float64("heat_p50", s.HeatP50),
		slog.Float64("heat_p90", s.HeatP90),
		slog.Float64("target_dist_mean", s.TargetDistMean),
		slog.Float64("target_dist_p50", s.TargetDistP50),
		slog.Float64("target_dist_p90", s.TargetDistP90),
		slog.Float64("repulse_mean", s.RepulseMean),
		slog.Uint64("map_version", s.MapVersion),
		slog.Uint64("maps_dropped", s.MapsDropped),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.Agents,
		"move_to_target", s.MoveToTarget,
		"follow_trace", s.FollowTrace,
		"move_to_less_heat", s.MoveToLessHeat,
		"idle", s.Idle,
		"run_away", s.RunAway,
		"transitions", s.Transitions,
		"forced_run_aways", s.ForcedRunAways,
		"blocked_rate", s.BlockedRate,
		"retargets", s.Retargets,
		"skipped_ticks", s.SkippedTicks,
		"heat_mean", s.HeatMean,
		"heat_p90", s.HeatP90,
		"target_dist_p50", s.TargetDistP50,
		"map_version", s.MapVersion,
		"maps_dropped", s.MapsDropped,
	)
}

package main

import (
	"math"

	"github.com/pthm-cable/herd/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable steering parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Motion
			{Name: "move_speed", Path: "steering.move_speed", Min: 0.5, Max: 6.0, Default: 2.0},
			{Name: "turn_speed", Path: "steering.turn_speed", Min: 0.2, Max: 4.0, Default: 1.0},
			{Name: "probe_factor", Path: "steering.probe_factor", Min: 1.0, Max: 8.0, Default: 4.0},
			{Name: "search_distance", Path: "steering.search_distance", Min: 1.0, Max: 8.0, Default: 3.0},
			{Name: "search_spread_deg", Path: "steering.search_spread_deg", Min: 2.0, Max: 45.0, Default: 10.0},
			// Target pursuit
			{Name: "stuck_escape_chance", Path: "steering.stuck_escape_chance", Min: 0.0, Max: 1.0, Default: 0.6},
			{Name: "target_dwell", Path: "steering.target_dwell", Min: 10.0, Max: 400.0, Default: 150.0},
			{Name: "dwell_exit_chance", Path: "steering.dwell_exit_chance", Min: 0.0, Max: 1.0, Default: 0.85},
			// Heat avoidance
			{Name: "less_heat_turn_rate", Path: "steering.less_heat_turn_rate", Min: 0.5, Max: 5.0, Default: 2.0},
			{Name: "less_heat_target_odds", Path: "steering.less_heat_target_odds", Min: 0.0, Max: 1.0, Default: 0.3},
			// Run away
			{Name: "run_away_speed", Path: "steering.run_away_speed", Min: 1.0, Max: 8.0, Default: 4.0},
			{Name: "run_away_exit_chance", Path: "steering.run_away_exit_chance", Min: 0.05, Max: 0.9, Default: 0.3},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	s := &cfg.Steering

	s.MoveSpeed = c[0]
	s.TurnSpeed = c[1]
	s.ProbeFactor = c[2]
	s.SearchDistance = c[3]
	s.SearchSpreadDeg = c[4]
	cfg.Derived.SearchSpread = c[4] * math.Pi / 180

	s.StuckEscapeChance = c[5]
	s.TargetDwell = c[6]
	s.DwellExitChance = c[7]

	s.LessHeatTurnRate = c[8]
	s.LessHeatTargetOdds = c[9]
	// Idle odds are cumulative with target odds.
	s.LessHeatIdleOdds = max(s.LessHeatIdleOdds, s.LessHeatTargetOdds)

	s.RunAwaySpeed = c[10]
	s.RunAwayExitChance = c[11]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	s := cfg.Steering
	return []float64{
		s.MoveSpeed,
		s.TurnSpeed,
		s.ProbeFactor,
		s.SearchDistance,
		s.SearchSpreadDeg,
		s.StuckEscapeChance,
		s.TargetDwell,
		s.DwellExitChance,
		s.LessHeatTurnRate,
		s.LessHeatTargetOdds,
		s.RunAwaySpeed,
		s.RunAwayExitChance,
	}
}

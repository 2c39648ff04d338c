package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/sim"
	"github.com/pthm-cable/herd/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int64
	seeds      []int64
	baseConfig *config.Config

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxTicks:   maxTicks,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean herd quality over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Run all seeds in parallel
	qualities := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(cfg, s)
			if err != nil {
				slog.Error("evaluation run failed", "seed", s, "error", err)
				return
			}
			qualities[idx] = computeQuality(windows, cfg.Derived.PhysicalSide)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	for _, q := range qualities {
		total += q
	}
	quality := total / float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = quality
	fe.mu.Unlock()

	return -quality
}

// runSimulation executes a single headless simulation run and returns the
// stats windows it produced.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) ([]telemetry.WindowStats, error) {
	var windows []telemetry.WindowStats
	s, err := sim.New(cfg, sim.Options{
		Seed:     seed,
		Workers:  1,
		SyncBake: true,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Run(context.Background(), fe.maxTicks); err != nil {
		return nil, err
	}
	return windows, nil
}

// copyConfig returns a copy of the base config that evaluations may change.
// Only Steering and Derived are modified, and neither holds references.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// Quality component weights.
const (
	qualityWeightProgress = 0.45
	qualityWeightFlow     = 0.30
	qualityWeightComfort  = 0.25

	qualityWarmupWindows = 2 // skip first N windows while the herd spreads out
)

// computeQuality scores a run in [0, 1]. It rewards sheep that sit close to
// their attract points, rarely find the way ahead blocked, and stand on cool
// ground.
func computeQuality(windows []telemetry.WindowStats, side float64) float64 {
	if len(windows) <= qualityWarmupWindows || side <= 0 {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var progress, flow, comfort float64
	for _, w := range valid {
		progress += clamp01(1 - w.TargetDistP50/(side/2))
		flow += math.Exp(-w.BlockedRate / 0.2)
		comfort += math.Exp(-math.Pow(w.HeatP50/120, 2))
	}
	n := float64(len(valid))

	quality := qualityWeightProgress*progress/n +
		qualityWeightFlow*flow/n +
		qualityWeightComfort*comfort/n
	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/telemetry"
)

func TestParamVectorRoundTrip(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	defaults := pv.ExtractFromConfig(cfg)
	if len(defaults) != pv.Dim() {
		t.Fatalf("extracted %d values for %d specs", len(defaults), pv.Dim())
	}

	want := pv.Denormalize([]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.25, 0.75, 0.5})
	pv.ApplyToConfig(cfg, want)
	got := pv.ExtractFromConfig(cfg)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("%s = %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
	if math.Abs(cfg.Derived.SearchSpread-want[4]*math.Pi/180) > 1e-12 {
		t.Errorf("derived search spread not updated")
	}
	if cfg.Steering.LessHeatIdleOdds < cfg.Steering.LessHeatTargetOdds {
		t.Errorf("idle odds %v below target odds %v", cfg.Steering.LessHeatIdleOdds, cfg.Steering.LessHeatTargetOdds)
	}
}

func TestComputeQuality(t *testing.T) {
	settled := telemetry.WindowStats{TargetDistP50: 0, BlockedRate: 0, HeatP50: 0}
	lost := telemetry.WindowStats{TargetDistP50: 100, BlockedRate: 2, HeatP50: 250}

	tests := []struct {
		name    string
		windows []telemetry.WindowStats
		want    float64
	}{
		{"only warmup", []telemetry.WindowStats{lost, lost}, 0},
		{"settled herd", []telemetry.WindowStats{lost, lost, settled, settled}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeQuality(tt.windows, 120); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("quality = %v, want %v", got, tt.want)
			}
		})
	}

	good := computeQuality([]telemetry.WindowStats{lost, lost, settled}, 120)
	bad := computeQuality([]telemetry.WindowStats{lost, lost, lost}, 120)
	if bad >= good {
		t.Errorf("lost herd scored %v, settled %v", bad, good)
	}
}

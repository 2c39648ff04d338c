package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeOverride(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "override.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Steering.MoveBlock != 200 {
		t.Errorf("move_block = %d, want 200", cfg.Steering.MoveBlock)
	}
	if cfg.Steering.StuckBudget != 200 {
		t.Errorf("stuck_budget = %d, want 200", cfg.Steering.StuckBudget)
	}
	if cfg.Herd.MaxGroups != 100 {
		t.Errorf("max_groups = %d, want 100", cfg.Herd.MaxGroups)
	}
	if cfg.Channels.Heat != 0 || cfg.Channels.Trace != 2 {
		t.Errorf("movement channels = %d/%d, want 0/2", cfg.Channels.Heat, cfg.Channels.Trace)
	}
	if got, want := cfg.Derived.SearchSpread, 10*math.Pi/180; math.Abs(got-want) > 1e-12 {
		t.Errorf("derived search spread = %v, want %v", got, want)
	}
	if cfg.Derived.TextureSize != 240 {
		t.Errorf("texture size = %d, want 240", cfg.Derived.TextureSize)
	}
	if len(cfg.Inputs.Attract) == 0 {
		t.Error("expected default attract points")
	}
}

func TestLoadOverride(t *testing.T) {
	path := writeOverride(t, `
steering:
  move_block: 180
herd:
  count: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Steering.MoveBlock != 180 {
		t.Errorf("move_block = %d, want 180", cfg.Steering.MoveBlock)
	}
	if cfg.Herd.Count != 10 {
		t.Errorf("count = %d, want 10", cfg.Herd.Count)
	}
	// Untouched keys keep their defaults.
	if cfg.Steering.TraceWeak != 45 {
		t.Errorf("trace_weak = %d, want 45", cfg.Steering.TraceWeak)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "steering:\n  move_blok: 10\n"},
		{"byte out of range", "steering:\n  move_block: 300\n"},
		{"negative chance", "steering:\n  run_away_exit_chance: -0.1\n"},
		{"channel out of range", "channels:\n  heat: 4\n"},
		{"single buffer slot", "bake:\n  buffer_slots: 1\n"},
		{"zero groups", "herd:\n  max_groups: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeOverride(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateEmpty(t *testing.T) {
	if err := Validate([]byte("  \n")); err != nil {
		t.Errorf("empty document: %v", err)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Steering.RunAwayTrigger = 33

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "run_away_trigger: 33") {
		t.Errorf("written config missing override:\n%s", data)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Steering.RunAwayTrigger != 33 {
		t.Errorf("reloaded run_away_trigger = %d", reloaded.Steering.RunAwayTrigger)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}

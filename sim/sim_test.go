package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/systems"
	"github.com/pthm-cable/herd/telemetry"
)

const testOverride = `
world:
  spawn_side: 40.0
herd:
  count: 150
  max_groups: 10
telemetry:
  stats_window: 0.5
persistence:
  checkpoint_interval: 0.25
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte(testOverride), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func newTestSim(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	opts.SyncBake = true
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func runTicks(t *testing.T, s *Simulation, n int64) {
	t.Helper()
	if err := s.Run(context.Background(), n); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSyncBakeIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	a := newTestSim(t, cfg, Options{Seed: 11, Workers: 1})
	b := newTestSim(t, cfg, Options{Seed: 11, Workers: 4})
	runTicks(t, a, 60)
	runTicks(t, b, 60)

	ra, rb := a.Herd().Records(), b.Herd().Records()
	if len(ra) != 150 || len(ra) != len(rb) {
		t.Fatalf("record counts %d and %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatalf("agent %d diverged\n 1 worker: %+v\n4 workers: %+v", i, ra[i], rb[i])
		}
	}
	if a.Tick() != 60 {
		t.Errorf("Tick = %d, want 60", a.Tick())
	}
}

func TestStatsWindows(t *testing.T) {
	cfg := testConfig(t)
	var windows []telemetry.WindowStats
	s := newTestSim(t, cfg, Options{
		Seed:          2,
		StatsCallback: func(w telemetry.WindowStats) { windows = append(windows, w) },
	})
	runTicks(t, s, 3*int64(cfg.Derived.StatsWindowTicks))

	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	for i, w := range windows {
		want := int64((i + 1) * cfg.Derived.StatsWindowTicks)
		if w.WindowEndTick != want {
			t.Errorf("window %d ends at %d, want %d", i, w.WindowEndTick, want)
		}
		if w.Agents != 150 {
			t.Errorf("window %d has %d agents", i, w.Agents)
		}
		if w.MapVersion == 0 {
			t.Errorf("window %d has no map version", i)
		}
	}
}

func TestResumeFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	dbPath := filepath.Join(t.TempDir(), "herd.db")

	first, err := New(cfg, Options{Seed: 5, DBPath: dbPath, SyncBake: true})
	if err != nil {
		t.Fatal(err)
	}
	runTicks(t, first, 2*int64(cfg.Derived.CheckpointTicks))
	want := first.Herd().Records()
	wantClock := first.Herd().Clock()
	runID := first.RunID()
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	resumed := newTestSim(t, cfg, Options{DBPath: dbPath, ResumeRun: runID})
	if resumed.RunID() != runID {
		t.Errorf("RunID = %q, want %q", resumed.RunID(), runID)
	}
	if resumed.Herd().Clock() != wantClock {
		t.Errorf("clock = %+v, want %+v", resumed.Herd().Clock(), wantClock)
	}
	assertRecords(t, resumed.Herd().Records(), want)
	runTicks(t, resumed, 10)
}

func TestResumeFromSnapshot(t *testing.T) {
	cfg := testConfig(t)
	s := newTestSim(t, cfg, Options{Seed: 9})
	runTicks(t, s, 20)
	s.MovePoint(true, 0, r2.Vec{X: 3, Y: 4})

	path, err := s.SaveSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	resumed := newTestSim(t, cfg, Options{ResumeSnapshot: path})
	assertRecords(t, resumed.Herd().Records(), s.Herd().Records())
	if got := resumed.Points().Attract[0]; got != (r2.Vec{X: 3, Y: 4}) {
		t.Errorf("restored attract point = %v", got)
	}
	if resumed.Tick() != 20 {
		t.Errorf("Tick = %d, want 20", resumed.Tick())
	}
}

func assertRecords(t *testing.T, got, want []systems.Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d\n got %+v\nwant %+v", i, got[i], want[i])
		}
	}
}

func TestNewRejectsConflictingResume(t *testing.T) {
	cfg := testConfig(t)
	tests := []struct {
		name string
		opts Options
	}{
		{"both sources", Options{ResumeSnapshot: "a.json", ResumeRun: "r", DBPath: "x.db"}},
		{"run without database", Options{ResumeRun: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, err := New(cfg, tt.opts); err == nil {
				s.Close()
				t.Error("expected error")
			}
		})
	}
}

func TestMovePointClampsToArea(t *testing.T) {
	cfg := testConfig(t)
	s := newTestSim(t, cfg, Options{Seed: 1})
	half := cfg.Derived.PhysicalSide / 2

	s.MovePoint(false, 0, r2.Vec{X: 1e6, Y: -1e6})
	if got := s.Points().Repulse[0]; got != (r2.Vec{X: half, Y: -half}) {
		t.Errorf("repulse point = %v, want clamped to %v", got, half)
	}
	s.MovePoint(true, 99, r2.Vec{})
	if len(s.Points().Attract) != 3 {
		t.Errorf("out of range move changed the attract set")
	}
}

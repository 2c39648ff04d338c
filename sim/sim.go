// Package sim runs the herd headlessly: it wires the herd, the bake
// pipeline, telemetry and the run archive into one tick loop. The viewer in
// package game drives the same loop.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/herd/bake"
	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
	"github.com/pthm-cable/herd/persistence"
	"github.com/pthm-cable/herd/systems"
	"github.com/pthm-cable/herd/telemetry"
)

// Options configures a Simulation.
type Options struct {
	Seed        int64
	LogStats    bool
	SnapshotDir string // bookmark snapshots; empty disables
	OutputDir   string // CSV output; empty disables
	DBPath      string // run archive; empty disables
	Workers     int    // steering workers; <= 0 uses GOMAXPROCS

	// SyncBake bakes maps on the tick goroutine after every tick instead of
	// requesting asynchronous refreshes. Runs are then reproducible.
	SyncBake bool

	// Resume sources. At most one may be set.
	ResumeSnapshot string // snapshot JSON path
	ResumeRun      string // run id in the archive at DBPath

	// StatsCallback is called with every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation owns one herd and everything that feeds it.
type Simulation struct {
	cfg  *config.Config
	opts Options
	ctx  context.Context
	stop context.CancelFunc

	herd     *systems.Herd
	pipeline *bake.Pipeline
	points   *maps.InputPointSet

	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	bookmarks     *telemetry.BookmarkDetector
	outputManager *telemetry.OutputManager

	db    *persistence.DB
	runID string

	checkpointTicks int64
	lastErr         error
}

// New builds a simulation from cfg. The herd is spawned from the seed or
// restored from a resume source.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if opts.ResumeSnapshot != "" && opts.ResumeRun != "" {
		return nil, errors.New("sim: resume from a snapshot or a run, not both")
	}
	if opts.ResumeRun != "" && opts.DBPath == "" {
		return nil, errors.New("sim: resuming a run needs a database")
	}

	s := &Simulation{
		cfg:             cfg,
		opts:            opts,
		points:          bake.InputsFromConfig(cfg),
		collector:       telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.World.DT),
		perf:            telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarks:       telemetry.NewBookmarkDetector(10),
		checkpointTicks: int64(cfg.Derived.CheckpointTicks),
	}
	s.ctx, s.stop = context.WithCancel(context.Background())

	rng := rand.New(rand.NewSource(opts.Seed))
	s.herd = systems.NewHerd(systems.ParamsFromConfig(cfg), cfg.Herd.RandomPoolSize, cfg.World.DT, opts.Workers, rng)
	s.herd.SetPhaseTimer(s.perf)

	if err := s.openArchive(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.populate(); err != nil {
		s.Close()
		return nil, err
	}

	pipeline, err := bake.NewPipeline(s.ctx, bake.OptionsFromConfig(cfg), s.frame())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("starting bake pipeline: %w", err)
	}
	s.pipeline = pipeline

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	slog.Info("simulation ready",
		"seed", opts.Seed,
		"agents", s.herd.Count(),
		"tick", s.herd.Clock().Tick,
		"workers", s.herd.Workers(),
		"sync_bake", opts.SyncBake,
		"run_id", s.runID,
	)
	return s, nil
}

func (s *Simulation) openArchive() error {
	if s.opts.DBPath == "" {
		return nil
	}
	db, err := persistence.Open(s.opts.DBPath)
	if err != nil {
		return err
	}
	s.db = db
	if s.opts.ResumeRun != "" {
		s.runID = s.opts.ResumeRun
		return nil
	}
	run, err := db.CreateRun(s.opts.Seed, s.cfg.Herd.Count, s.cfg)
	if err != nil {
		return err
	}
	s.runID = run.ID
	return nil
}

// populate spawns or restores the herd.
func (s *Simulation) populate() error {
	switch {
	case s.opts.ResumeSnapshot != "":
		snap, err := telemetry.LoadSnapshot(s.opts.ResumeSnapshot)
		if err != nil {
			return err
		}
		records, clock, err := snap.Records()
		if err != nil {
			return err
		}
		s.points = snap.Points()
		s.collector.StartAt(clock.Tick)
		return s.herd.Restore(records, clock)

	case s.opts.ResumeRun != "":
		cp, err := s.db.LatestCheckpoint(s.opts.ResumeRun)
		if err != nil {
			return err
		}
		records, clock, err := s.db.LoadCheckpoint(cp.ID)
		if err != nil {
			return err
		}
		s.collector.StartAt(clock.Tick)
		return s.herd.Restore(records, clock)
	}

	s.herd.Spawn(s.cfg.Herd.Count, s.cfg.Derived.PhysicalSide, len(s.points.Attract))
	return nil
}

// frame captures the herd as splats for the bakers. The frame shares no
// storage with the simulation.
func (s *Simulation) frame() *bake.Frame {
	agents := s.herd.Agents()
	f := &bake.Frame{
		Agents: make([]bake.Splat, len(agents)),
		Points: s.points.Clone(),
	}
	for i := range agents {
		a := &agents[i]
		f.Agents[i] = bake.Splat{
			Position: r2.Vec{X: a.Position.X, Y: a.Position.Z},
			Yaw:      systems.Yaw(a.Rotation),
		}
	}
	return f
}

// Step runs one tick: lease the latest maps, step the herd, request the
// next bake and record telemetry. A tick whose movement map is invalid is
// skipped and logged; Step only fails when the pipeline is gone.
func (s *Simulation) Step() error {
	s.perf.StartTick(s.herd.Count())
	defer s.perf.EndTick()

	s.perf.StartPhase(telemetry.PhaseLease)
	movement, ok := s.pipeline.Movement.Acquire()
	if !ok {
		return maps.ErrClosed
	}
	var inputMap *maps.SpatialMap
	var points *maps.InputPointSet
	input, haveInput := s.pipeline.Input.Acquire()
	if haveInput {
		inputMap = input.Value().Map
		points = &input.Value().Points
	}

	counts, err := s.herd.Step(movement.Value(), inputMap, points)
	movement.Release()
	if haveInput {
		input.Release()
	}

	s.perf.StartPhase(telemetry.PhaseBakeRequest)
	if s.opts.SyncBake {
		if err := s.pipeline.BakeNow(s.ctx, s.frame()); err != nil {
			slog.Warn("sync bake failed", "error", err)
		}
	} else {
		s.pipeline.Request(s.frame())
	}

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	if err != nil {
		slog.Warn("skipping steering", "tick", s.herd.Clock().Tick, "error", err)
		s.collector.RecordSkippedTick()
	} else {
		s.collector.RecordTick(counts, s.herd.Count())
	}
	s.lastErr = err
	s.flushTelemetry()
	s.maybeCheckpoint()
	return nil
}

// Run steps until ticks ticks have run or ctx is done.
func (s *Simulation) Run(ctx context.Context, ticks int64) error {
	for i := int64(0); ticks <= 0 || i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Points returns the live input points. Changes take effect from the next
// bake.
func (s *Simulation) Points() *maps.InputPointSet {
	return s.points
}

// MovePoint moves an attract or repulse point.
func (s *Simulation) MovePoint(attract bool, i int, p r2.Vec) {
	pts := s.points.Repulse
	if attract {
		pts = s.points.Attract
	}
	if i < 0 || i >= len(pts) {
		return
	}
	half := s.pipeline.Area().Physical / 2
	p.X = min(max(p.X, -half), half)
	p.Y = min(max(p.Y, -half), half)
	pts[i] = p
}

// Herd returns the herd.
func (s *Simulation) Herd() *systems.Herd {
	return s.herd
}

// Pipeline returns the bake pipeline.
func (s *Simulation) Pipeline() *bake.Pipeline {
	return s.pipeline
}

// Perf returns the tick timing collector.
func (s *Simulation) Perf() *telemetry.PerfCollector {
	return s.perf
}

// Tick returns the number of ticks run, including restored ones.
func (s *Simulation) Tick() int64 {
	return s.herd.Clock().Tick
}

// LastError returns the error from the last tick's steering, if any.
func (s *Simulation) LastError() error {
	return s.lastErr
}

// RunID returns the archive run id, or "" without an archive.
func (s *Simulation) RunID() string {
	return s.runID
}

// Close stops the pipeline, flushes outputs and closes the archive.
func (s *Simulation) Close() error {
	var errs []error
	if s.pipeline != nil {
		errs = append(errs, s.pipeline.Close())
	}
	if s.stop != nil {
		s.stop()
	}
	if s.herd != nil {
		s.herd.Close()
	}
	if s.outputManager != nil {
		errs = append(errs, s.outputManager.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

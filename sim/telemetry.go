package sim

import (
	"log/slog"

	"github.com/pthm-cable/herd/telemetry"
)

// flushTelemetry closes the stats window when it is due.
func (s *Simulation) flushTelemetry() {
	tick := s.herd.Clock().Tick
	if !s.collector.ShouldFlush(tick) {
		return
	}

	sample := s.sampleHerd()
	stats := s.collector.Flush(tick, sample)
	perfStats := s.perf.Stats()

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}
	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}

	if s.outputManager != nil {
		if err := s.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := s.outputManager.WritePerf(perfStats, tick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
		if err := s.outputManager.WriteHerd(tick, s.herd.Records()); err != nil {
			slog.Error("failed to write herd", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.SaveWindowStats(s.runID, stats); err != nil {
			slog.Error("failed to archive stats", "error", err)
		}
	}

	for _, b := range s.bookmarks.Check(stats) {
		b.LogBookmark()
		if s.outputManager != nil {
			if err := s.outputManager.WriteBookmark(b); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
		if s.opts.SnapshotDir != "" {
			if _, err := s.saveSnapshot(s.opts.SnapshotDir, &b); err != nil {
				slog.Error("failed to save snapshot", "error", err)
			}
		}
	}
}

func (s *Simulation) sampleHerd() telemetry.HerdSample {
	movement, ok := s.pipeline.Movement.Acquire()
	if !ok {
		return telemetry.SampleHerd(s.herd.Agents(), nil, s.cfg.Channels.Heat, s.points)
	}
	defer movement.Release()

	sample := telemetry.SampleHerd(s.herd.Agents(), movement.Value(), s.cfg.Channels.Heat, s.points)
	sample.MapVersion = movement.Version()
	_, sample.MapsDropped = s.pipeline.Movement.Stats()
	return sample
}

func (s *Simulation) maybeCheckpoint() {
	if s.db == nil || s.checkpointTicks <= 0 {
		return
	}
	if s.herd.Clock().Tick%s.checkpointTicks != 0 {
		return
	}
	if _, err := s.Checkpoint(); err != nil {
		slog.Error("checkpoint failed", "error", err)
	}
}

// Checkpoint writes the herd to the run archive and returns the
// checkpoint id. Without an archive it returns 0 and no error.
func (s *Simulation) Checkpoint() (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	return s.db.SaveCheckpoint(s.runID, s.herd.Clock(), s.herd.Records())
}

// SaveSnapshot writes the herd and input points as JSON into dir and
// returns the file path.
func (s *Simulation) SaveSnapshot(dir string) (string, error) {
	return s.saveSnapshot(dir, nil)
}

func (s *Simulation) saveSnapshot(dir string, b *telemetry.Bookmark) (string, error) {
	snap := telemetry.NewSnapshot(s.opts.Seed, s.cfg.Derived.PhysicalSide, s.cfg.World.Scale, s.points, s.herd.Clock(), s.herd.Records())
	snap.Bookmark = b
	path, err := telemetry.SaveSnapshot(snap, dir)
	if err != nil {
		return "", err
	}
	slog.Info("snapshot saved", "path", path, "tick", snap.Tick)
	return path, nil
}

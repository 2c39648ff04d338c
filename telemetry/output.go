package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/systems"
)

// csvLog is an append-only CSV file whose header is written with the first
// row.
type csvLog struct {
	name   string
	f      *os.File
	header bool
}

func createCSV(dir, name string) (*csvLog, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvLog{name: name, f: f}, nil
}

// appendRows writes rows, preceded by the header on first use.
func appendRows[T any](l *csvLog, rows []T) error {
	marshal := gocsv.MarshalWithoutHeaders
	if !l.header {
		marshal = gocsv.Marshal
	}
	if err := marshal(rows, l.f); err != nil {
		return fmt.Errorf("writing %s: %w", l.name, err)
	}
	l.header = true
	return nil
}

// AgentRow is one sheep in herd.csv.
type AgentRow struct {
	Tick    int64   `csv:"tick"`
	ID      uint32  `csv:"id"`
	X       float64 `csv:"x"`
	Z       float64 `csv:"z"`
	Yaw     float64 `csv:"yaw"`
	State   string  `csv:"state"`
	Group   int32   `csv:"group"`
	Attract int32   `csv:"attract_index"`
	Repulse float64 `csv:"repulse"`
}

// OutputManager writes a run's CSV logs and config into one directory:
// telemetry.csv, perf.csv, bookmarks.csv, herd.csv and config.yaml.
// A nil manager discards everything.
type OutputManager struct {
	dir       string
	telemetry *csvLog
	perf      *csvLog
	bookmarks *csvLog
	herd      *csvLog
}

// NewOutputManager creates the output directory and its CSV files.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, f := range []struct {
		dst  **csvLog
		name string
	}{
		{&om.telemetry, "telemetry.csv"},
		{&om.perf, "perf.csv"},
		{&om.bookmarks, "bookmarks.csv"},
		{&om.herd, "herd.csv"},
	} {
		l, err := createCSV(dir, f.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*f.dst = l
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry appends a stats window to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return appendRows(om.telemetry, []WindowStats{stats})
}

// WritePerf appends a performance summary to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	return appendRows(om.perf, []PerfStatsCSV{stats.ToCSV(windowEnd)})
}

// WriteBookmark appends a bookmark to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return appendRows(om.bookmarks, []Bookmark{b})
}

// WriteHerd appends every sheep's pose and state at tick to herd.csv.
func (om *OutputManager) WriteHerd(tick int64, records []systems.Record) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	rows := make([]AgentRow, len(records))
	for i, r := range records {
		rows[i] = AgentRow{
			Tick:    tick,
			ID:      r.Tag.ID,
			X:       r.Position.X,
			Z:       r.Position.Z,
			Yaw:     systems.Yaw(r.Heading.Rotation),
			State:   systems.State(r.Sheep.State).String(),
			Group:   r.Sheep.UpdateGroupID,
			Attract: r.Sheep.InputAttractIndex,
			Repulse: r.Sheep.InputRepulseStrength,
		}
	}
	return appendRows(om.herd, rows)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var errs []error
	for _, l := range []*csvLog{om.telemetry, om.perf, om.bookmarks, om.herd} {
		if l != nil {
			errs = append(errs, l.f.Close())
		}
	}
	return errors.Join(errs...)
}

// Package persistence provides SQLite-based run archives: herd checkpoints
// and window statistics keyed by run.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/herd/components"
	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/systems"
	"github.com/pthm-cable/herd/telemetry"
)

// ErrNoCheckpoint is returned when a run has no saved checkpoint.
var ErrNoCheckpoint = errors.New("persistence: no checkpoint")

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		now REAL NOT NULL,
		iterator INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoint_agents (
		checkpoint_id INTEGER NOT NULL REFERENCES checkpoints(id),
		id INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		pos_z REAL NOT NULL,
		rot_r REAL NOT NULL,
		rot_i REAL NOT NULL,
		rot_j REAL NOT NULL,
		rot_k REAL NOT NULL,
		tgt_r REAL NOT NULL,
		tgt_i REAL NOT NULL,
		tgt_j REAL NOT NULL,
		tgt_k REAL NOT NULL,
		state INTEGER NOT NULL,
		extra_info INTEGER NOT NULL,
		last_state_change REAL NOT NULL,
		group_id INTEGER NOT NULL,
		attract_index INTEGER NOT NULL,
		repulse REAL NOT NULL,
		PRIMARY KEY (checkpoint_id, id)
	);

	CREATE TABLE IF NOT EXISTS window_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		window_end INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_window_stats_run ON window_stats(run_id, window_end);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one simulation run.
type Run struct {
	ID         string `db:"id"`
	Seed       int64  `db:"seed"`
	Agents     int    `db:"agents"`
	StartedAt  string `db:"started_at"`
	ConfigYAML string `db:"config_yaml"`
}

// CreateRun records a new run with a fresh id.
func (db *DB) CreateRun(seed int64, agents int, cfg *config.Config) (Run, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("marshal config: %w", err)
	}
	run := Run{
		ID:         uuid.NewString(),
		Seed:       seed,
		Agents:     agents,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		ConfigYAML: string(data),
	}
	_, err = db.conn.NamedExec(`INSERT INTO runs (id, seed, agents, started_at, config_yaml)
		VALUES (:id, :seed, :agents, :started_at, :config_yaml)`, run)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Runs returns every run, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, seed, agents, started_at, config_yaml FROM runs ORDER BY started_at DESC, rowid DESC")
	return runs, err
}

// Checkpoint describes a saved herd state.
type Checkpoint struct {
	ID        int64   `db:"id"`
	RunID     string  `db:"run_id"`
	Tick      int64   `db:"tick"`
	Now       float64 `db:"now"`
	Iterator  int     `db:"iterator"`
	CreatedAt string  `db:"created_at"`
}

// Clock returns the herd clock the checkpoint was taken at.
func (c Checkpoint) Clock() systems.Clock {
	return systems.Clock{Tick: c.Tick, Now: c.Now, Iterator: c.Iterator}
}

type agentRow struct {
	ID              uint32  `db:"id"`
	PosX            float64 `db:"pos_x"`
	PosY            float64 `db:"pos_y"`
	PosZ            float64 `db:"pos_z"`
	RotR            float64 `db:"rot_r"`
	RotI            float64 `db:"rot_i"`
	RotJ            float64 `db:"rot_j"`
	RotK            float64 `db:"rot_k"`
	TgtR            float64 `db:"tgt_r"`
	TgtI            float64 `db:"tgt_i"`
	TgtJ            float64 `db:"tgt_j"`
	TgtK            float64 `db:"tgt_k"`
	State           int32   `db:"state"`
	ExtraInfo       int32   `db:"extra_info"`
	LastStateChange float64 `db:"last_state_change"`
	GroupID         int32   `db:"group_id"`
	AttractIndex    int32   `db:"attract_index"`
	Repulse         float64 `db:"repulse"`
}

func (r agentRow) record() systems.Record {
	var rec systems.Record
	rec.Tag = components.Tag{ID: r.ID}
	rec.Position.X, rec.Position.Y, rec.Position.Z = r.PosX, r.PosY, r.PosZ
	rec.Heading.Rotation.Real, rec.Heading.Rotation.Imag = r.RotR, r.RotI
	rec.Heading.Rotation.Jmag, rec.Heading.Rotation.Kmag = r.RotJ, r.RotK
	rec.Heading.Target.Real, rec.Heading.Target.Imag = r.TgtR, r.TgtI
	rec.Heading.Target.Jmag, rec.Heading.Target.Kmag = r.TgtJ, r.TgtK
	rec.Sheep = components.Sheep{
		State:                r.State,
		ExtraInfo:            r.ExtraInfo,
		LastStateChangeTime:  r.LastStateChange,
		UpdateGroupID:        r.GroupID,
		InputAttractIndex:    r.AttractIndex,
		InputRepulseStrength: r.Repulse,
	}
	return rec
}

// SaveCheckpoint writes the herd records at clock in one transaction and
// returns the checkpoint id.
func (db *DB) SaveCheckpoint(runID string, clock systems.Clock, records []systems.Record) (int64, error) {
	tx, err := db.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO checkpoints (run_id, tick, now, iterator, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, clock.Tick, clock.Now, clock.Iterator, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Preparex(`INSERT INTO checkpoint_agents
		(checkpoint_id, id, pos_x, pos_y, pos_z,
		 rot_r, rot_i, rot_j, rot_k, tgt_r, tgt_i, tgt_j, tgt_k,
		 state, extra_info, last_state_change, group_id, attract_index, repulse)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range records {
		rot, tgt := r.Heading.Rotation, r.Heading.Target
		_, err := stmt.Exec(
			id, r.Tag.ID, r.Position.X, r.Position.Y, r.Position.Z,
			rot.Real, rot.Imag, rot.Jmag, rot.Kmag,
			tgt.Real, tgt.Imag, tgt.Jmag, tgt.Kmag,
			r.Sheep.State, r.Sheep.ExtraInfo, r.Sheep.LastStateChangeTime,
			r.Sheep.UpdateGroupID, r.Sheep.InputAttractIndex, r.Sheep.InputRepulseStrength,
		)
		if err != nil {
			return 0, fmt.Errorf("insert agent %d: %w", r.Tag.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("checkpoint saved", "run_id", runID, "checkpoint_id", id, "tick", clock.Tick, "agents", len(records))
	return id, nil
}

// LatestCheckpoint returns the most recent checkpoint of a run.
func (db *DB) LatestCheckpoint(runID string) (Checkpoint, error) {
	var c Checkpoint
	err := db.conn.Get(&c,
		"SELECT id, run_id, tick, now, iterator, created_at FROM checkpoints WHERE run_id = ? ORDER BY tick DESC, id DESC LIMIT 1",
		runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("run %s: %w", runID, ErrNoCheckpoint)
	}
	return c, err
}

// LoadCheckpoint returns the records and clock saved under id, ordered by
// agent id.
func (db *DB) LoadCheckpoint(id int64) ([]systems.Record, systems.Clock, error) {
	var c Checkpoint
	err := db.conn.Get(&c, "SELECT id, run_id, tick, now, iterator, created_at FROM checkpoints WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, systems.Clock{}, fmt.Errorf("checkpoint %d: %w", id, ErrNoCheckpoint)
	}
	if err != nil {
		return nil, systems.Clock{}, err
	}

	var rows []agentRow
	err = db.conn.Select(&rows, `SELECT id, pos_x, pos_y, pos_z,
		rot_r, rot_i, rot_j, rot_k, tgt_r, tgt_i, tgt_j, tgt_k,
		state, extra_info, last_state_change, group_id, attract_index, repulse
		FROM checkpoint_agents WHERE checkpoint_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, systems.Clock{}, fmt.Errorf("load agents: %w", err)
	}

	records := make([]systems.Record, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, c.Clock(), nil
}

// SaveWindowStats appends one stats window to a run.
func (db *DB) SaveWindowStats(runID string, s telemetry.WindowStats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO window_stats (run_id, window_end, sim_time, stats_json) VALUES (?, ?, ?, ?)",
		runID, s.WindowEndTick, s.SimTimeSec, string(data))
	return err
}

// WindowStats returns a run's stats windows in order.
func (db *DB) WindowStats(runID string) ([]telemetry.WindowStats, error) {
	var blobs []string
	err := db.conn.Select(&blobs,
		"SELECT stats_json FROM window_stats WHERE run_id = ? ORDER BY window_end, id", runID)
	if err != nil {
		return nil, err
	}
	out := make([]telemetry.WindowStats, len(blobs))
	for i, b := range blobs {
		if err := json.Unmarshal([]byte(b), &out[i]); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return out, nil
}

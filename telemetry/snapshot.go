package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/components"
	"github.com/pthm-cable/herd/maps"
	"github.com/pthm-cable/herd/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete herd state for replay.
type Snapshot struct {
	Version int   `json:"version"`
	RNGSeed int64 `json:"rng_seed"`

	PhysicalSide float64 `json:"physical_side"`
	WorldScale   float64 `json:"world_scale"`

	Attract []Point `json:"attract"`
	Repulse []Point `json:"repulse"`

	Tick     int64   `json:"tick"`
	Now      float64 `json:"now"`
	Iterator int     `json:"iterator"`

	Agents []AgentState `json:"agents"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// Point is a local-space input point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AgentState holds one agent's persisted components.
type AgentState struct {
	ID uint32 `json:"id"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	Rotation [4]float64 `json:"rotation"` // real, i, j, k
	Target   [4]float64 `json:"target"`

	State               string  `json:"state"`
	ExtraInfo           int32   `json:"extra_info"`
	LastStateChangeTime float64 `json:"last_state_change_time"`
	UpdateGroupID       int32   `json:"update_group_id"`
	InputAttractIndex   int32   `json:"input_attract_index"`
	InputRepulse        float64 `json:"input_repulse"`
}

func quatArray(q quat.Number) [4]float64 {
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

func arrayQuat(a [4]float64) quat.Number {
	return quat.Number{Real: a[0], Imag: a[1], Jmag: a[2], Kmag: a[3]}
}

func stateByName(name string) (systems.State, bool) {
	for s := systems.State(0); int(s) < systems.NumStates; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// NewSnapshot captures records and clock.
func NewSnapshot(seed int64, physicalSide, worldScale float64, points *maps.InputPointSet, clock systems.Clock, records []systems.Record) *Snapshot {
	s := &Snapshot{
		Version:      SnapshotVersion,
		RNGSeed:      seed,
		PhysicalSide: physicalSide,
		WorldScale:   worldScale,
		Tick:         clock.Tick,
		Now:          clock.Now,
		Iterator:     clock.Iterator,
		Agents:       make([]AgentState, len(records)),
	}
	if points != nil {
		for _, p := range points.Attract {
			s.Attract = append(s.Attract, Point{X: p.X, Y: p.Y})
		}
		for _, p := range points.Repulse {
			s.Repulse = append(s.Repulse, Point{X: p.X, Y: p.Y})
		}
	}
	for i, r := range records {
		s.Agents[i] = AgentState{
			ID:                  r.Tag.ID,
			X:                   r.Position.X,
			Y:                   r.Position.Y,
			Z:                   r.Position.Z,
			Rotation:            quatArray(r.Heading.Rotation),
			Target:              quatArray(r.Heading.Target),
			State:               systems.State(r.Sheep.State).String(),
			ExtraInfo:           r.Sheep.ExtraInfo,
			LastStateChangeTime: r.Sheep.LastStateChangeTime,
			UpdateGroupID:       r.Sheep.UpdateGroupID,
			InputAttractIndex:   r.Sheep.InputAttractIndex,
			InputRepulse:        r.Sheep.InputRepulseStrength,
		}
	}
	return s
}

// Records converts the snapshot back into herd records and clock.
func (s *Snapshot) Records() ([]systems.Record, systems.Clock, error) {
	out := make([]systems.Record, len(s.Agents))
	for i, a := range s.Agents {
		st, ok := stateByName(a.State)
		if !ok {
			return nil, systems.Clock{}, fmt.Errorf("agent %d: unknown state %q", a.ID, a.State)
		}
		out[i] = systems.Record{
			Tag:      components.Tag{ID: a.ID},
			Position: components.Position{Vec: r3.Vec{X: a.X, Y: a.Y, Z: a.Z}},
			Heading: components.Heading{
				Rotation: arrayQuat(a.Rotation),
				Target:   arrayQuat(a.Target),
			},
			Sheep: components.Sheep{
				State:                int32(st),
				ExtraInfo:            a.ExtraInfo,
				LastStateChangeTime:  a.LastStateChangeTime,
				UpdateGroupID:        a.UpdateGroupID,
				InputAttractIndex:    a.InputAttractIndex,
				InputRepulseStrength: a.InputRepulse,
			},
		}
	}
	return out, systems.Clock{Tick: s.Tick, Now: s.Now, Iterator: s.Iterator}, nil
}

// Points returns the input points stored in the snapshot.
func (s *Snapshot) Points() *maps.InputPointSet {
	pts := &maps.InputPointSet{}
	for _, p := range s.Attract {
		pts.Attract = append(pts.Attract, r2.Vec{X: p.X, Y: p.Y})
	}
	for _, p := range s.Repulse {
		pts.Repulse = append(pts.Repulse, r2.Vec{X: p.X, Y: p.Y})
	}
	return pts
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}

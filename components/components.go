// Package components defines ECS components for the herd simulation.
package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Position is an agent's location in local simulation space. Agents walk on
// the xz plane; Y stays at ground level.
type Position struct {
	r3.Vec
}

// Heading holds the current facing and the facing the steering logic wants.
// Only rotation about the y axis is meaningful.
type Heading struct {
	Rotation quat.Number `inspect:"angle"`
	Target   quat.Number `inspect:"angle"`
}

// Sheep is the flat, persisted form of an agent's behavior state.
// ExtraInfo is the per-state scratch word; its meaning depends on State.
type Sheep struct {
	State                int32   `inspect:"state"`
	ExtraInfo            int32   `inspect:"payload"`
	LastStateChangeTime  float64 `inspect:"label,fmt:%.1fs"`
	UpdateGroupID        int32   `inspect:"label"`
	InputAttractIndex    int32   `inspect:"label"`
	InputRepulseStrength float64 `inspect:"bar,max:255"`
}

// Tag identifies an agent across snapshots and checkpoints. IDs are dense
// spawn indices.
type Tag struct {
	ID uint32 `inspect:"label"`
}

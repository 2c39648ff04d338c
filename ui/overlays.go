package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// OverlayID uniquely identifies an overlay.
type OverlayID string

// Standard overlay IDs.
const (
	OverlayHeat      OverlayID = "heat"
	OverlayTrace     OverlayID = "trace"
	OverlayRepulse   OverlayID = "repulse"
	OverlayAttractID OverlayID = "attract_id"
	OverlayPoints    OverlayID = "points"
	OverlayTargets   OverlayID = "targets"
	OverlayStagger   OverlayID = "stagger"
)

// OverlayDescriptor defines an overlay that can be toggled.
type OverlayDescriptor struct {
	ID        OverlayID   // Unique identifier
	Name      string      // Display name
	Key       int32       // Keyboard key to toggle (0 = no key)
	KeyLabel  string      // Key label for display (e.g., "H")
	Category  string      // Grouping ("maps" or "herd")
	Exclusive []OverlayID // Other overlays to disable when this is enabled
	Default   bool        // Enabled at startup
}

// OverlayRegistry manages overlay state and metadata.
type OverlayRegistry struct {
	descriptors []OverlayDescriptor
	byID        map[OverlayID]OverlayDescriptor
	enabled     map[OverlayID]bool
}

// NewOverlayRegistry creates a registry with default overlays.
func NewOverlayRegistry() *OverlayRegistry {
	reg := &OverlayRegistry{
		byID:    make(map[OverlayID]OverlayDescriptor),
		enabled: make(map[OverlayID]bool),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds standard overlays.
func (r *OverlayRegistry) registerDefaults() {
	r.Register(OverlayDescriptor{
		ID: OverlayHeat, Name: "Heat", Key: rl.KeyH, KeyLabel: "H",
		Category: "maps", Default: true,
	})
	r.Register(OverlayDescriptor{
		ID: OverlayTrace, Name: "Trace", Key: rl.KeyT, KeyLabel: "T",
		Category: "maps",
	})
	r.Register(OverlayDescriptor{
		ID: OverlayRepulse, Name: "Repulse", Key: rl.KeyR, KeyLabel: "R",
		Category: "maps", Default: true,
	})
	r.Register(OverlayDescriptor{
		ID: OverlayAttractID, Name: "Attract IDs", Key: rl.KeyI, KeyLabel: "I",
		Category: "maps",
	})
	r.Register(OverlayDescriptor{
		ID: OverlayPoints, Name: "Input Points", Key: rl.KeyP, KeyLabel: "P",
		Category: "herd", Default: true,
	})
	r.Register(OverlayDescriptor{
		ID: OverlayTargets, Name: "Targets", Key: rl.KeyG, KeyLabel: "G",
		Category: "herd",
	})
	r.Register(OverlayDescriptor{
		ID: OverlayStagger, Name: "Search Group", Key: rl.KeyY, KeyLabel: "Y",
		Category: "herd",
	})
}

// Register adds an overlay to the registry.
func (r *OverlayRegistry) Register(desc OverlayDescriptor) {
	r.descriptors = append(r.descriptors, desc)
	r.byID[desc.ID] = desc
	r.enabled[desc.ID] = desc.Default
}

// Toggle switches an overlay on/off and handles exclusivity.
func (r *OverlayRegistry) Toggle(id OverlayID) bool {
	r.SetEnabled(id, !r.enabled[id])
	return r.enabled[id]
}

// SetEnabled explicitly sets an overlay's state.
func (r *OverlayRegistry) SetEnabled(id OverlayID, enabled bool) {
	desc, ok := r.byID[id]
	if !ok {
		return
	}

	r.enabled[id] = enabled

	if enabled {
		for _, excl := range desc.Exclusive {
			r.enabled[excl] = false
		}
	}
}

// IsEnabled returns whether an overlay is active.
func (r *OverlayRegistry) IsEnabled(id OverlayID) bool {
	return r.enabled[id]
}

// ByCategory returns overlays filtered by category.
func (r *OverlayRegistry) ByCategory(category string) []OverlayDescriptor {
	var result []OverlayDescriptor
	for _, desc := range r.descriptors {
		if desc.Category == category {
			result = append(result, desc)
		}
	}
	return result
}

// Categories returns all unique categories in order.
func (r *OverlayRegistry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, desc := range r.descriptors {
		if !seen[desc.Category] {
			seen[desc.Category] = true
			cats = append(cats, desc.Category)
		}
	}
	return cats
}

// HandleKeyPress checks if a key corresponds to an overlay toggle.
// Returns the overlay ID and new state if a toggle occurred.
func (r *OverlayRegistry) HandleKeyPress(key int32) (OverlayID, bool, bool) {
	for _, desc := range r.descriptors {
		if desc.Key == key {
			newState := r.Toggle(desc.ID)
			return desc.ID, newState, true
		}
	}
	return "", false, false
}

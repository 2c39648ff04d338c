package systems

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/herd/components"
	"github.com/pthm-cable/herd/maps"
)

// ErrNotEmpty is returned when restoring into a herd that already has agents.
var ErrNotEmpty = errors.New("systems: herd is not empty")

// Record is the persisted form of one agent.
type Record struct {
	Tag      components.Tag
	Position components.Position
	Heading  components.Heading
	Sheep    components.Sheep
}

// Clock is the herd's position in simulated time.
type Clock struct {
	Tick     int64
	Now      float64
	Iterator int
}

// Herd owns the agent population and advances it one tick at a time.
// Each tick runs snapshot, steering and apply phases; agents are only
// mutated in the apply phase, on the calling goroutine.
type Herd struct {
	world    *ecs.World
	mapper   *ecs.Map4[components.Position, components.Heading, components.Sheep, components.Tag]
	filter   *ecs.Filter4[components.Position, components.Heading, components.Sheep, components.Tag]
	posMap   *ecs.Map1[components.Position]
	headMap  *ecs.Map1[components.Heading]
	sheepMap *ecs.Map1[components.Sheep]
	tagMap   *ecs.Map1[components.Tag]

	engine *Engine
	runner *BatchRunner
	pool   *RandomPool
	rng    *rand.Rand

	entities []ecs.Entity
	agents   []Agent

	stagger Stagger
	clock   Clock
	dt      float64
	nextID  uint32

	phases PhaseTimer
}

// PhaseTimer is told when each phase of a tick begins.
type PhaseTimer interface {
	StartPhase(name string)
}

// Tick phases reported to a PhaseTimer.
const (
	PhaseSnapshot = "snapshot"
	PhaseSteering = "steering"
	PhaseApply    = "apply"
)

// SetPhaseTimer installs t, or removes the timer when t is nil.
func (h *Herd) SetPhaseTimer(t PhaseTimer) {
	h.phases = t
}

func (h *Herd) startPhase(name string) {
	if h.phases != nil {
		h.phases.StartPhase(name)
	}
}

// NewHerd creates an empty herd. workers <= 0 uses GOMAXPROCS.
func NewHerd(p Params, poolSize int, dt float64, workers int, rng *rand.Rand) *Herd {
	world := ecs.NewWorld()
	engine := NewEngine(p)
	return &Herd{
		world:    world,
		mapper:   ecs.NewMap4[components.Position, components.Heading, components.Sheep, components.Tag](world),
		filter:   ecs.NewFilter4[components.Position, components.Heading, components.Sheep, components.Tag](world),
		posMap:   ecs.NewMap1[components.Position](world),
		headMap:  ecs.NewMap1[components.Heading](world),
		sheepMap: ecs.NewMap1[components.Sheep](world),
		tagMap:   ecs.NewMap1[components.Tag](world),
		engine:   engine,
		runner:   NewBatchRunner(engine, workers),
		pool:     NewRandomPool(poolSize),
		rng:      rng,
		stagger:  NewStagger(engine.p.MaxGroups),
		dt:       dt,
	}
}

// Spawn adds count agents at random positions in a square of side centred
// on the origin, each pursuing a random one of attractCount points.
func (h *Herd) Spawn(count int, side float64, attractCount int) {
	for i := 0; i < count; i++ {
		a := Agent{
			Rotation:            Identity,
			TargetRotation:      Identity,
			UpdateGroupID:       GroupFor(int(h.nextID), h.engine.p.MaxGroups),
			State:               MoveToTargetData{},
			LastStateChangeTime: h.clock.Now,
		}
		a.Position.X = (h.rng.Float64() - 0.5) * side
		a.Position.Z = (h.rng.Float64() - 0.5) * side
		if attractCount > 0 {
			a.InputAttractIndex = h.rng.Intn(attractCount)
		}
		h.add(&a)
	}
	h.snapshot()
}

func (h *Herd) add(a *Agent) {
	pos, head, sheep := a.Components()
	tag := components.Tag{ID: h.nextID}
	h.nextID++
	h.mapper.NewEntity(&pos, &head, &sheep, &tag)
}

// Restore rebuilds a herd from records. The herd must be empty. Update
// groups outside [0, MaxGroups) are reassigned from the agent ID and the
// clock's iterator is wrapped into range.
func (h *Herd) Restore(records []Record, clock Clock) error {
	if len(h.entities) > 0 || h.nextID > 0 {
		return ErrNotEmpty
	}
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag.ID < sorted[j].Tag.ID })
	groups := h.stagger.MaxGroups
	regrouped := 0
	for i := range sorted {
		r := &sorted[i]
		if _, err := DecodeState(r.Sheep.State, r.Sheep.ExtraInfo); err != nil {
			return fmt.Errorf("restoring agent %d: %w", r.Tag.ID, err)
		}
		// Records saved under a larger max_groups would never be active.
		if g := int(r.Sheep.UpdateGroupID); g < 0 || g >= groups {
			r.Sheep.UpdateGroupID = int32(GroupFor(int(r.Tag.ID), groups))
			regrouped++
		}
	}
	if regrouped > 0 {
		slog.Warn("reassigned update groups", "agents", regrouped, "max_groups", groups)
	}
	for i := range sorted {
		r := sorted[i]
		h.mapper.NewEntity(&r.Position, &r.Heading, &r.Sheep, &r.Tag)
		if r.Tag.ID >= h.nextID {
			h.nextID = r.Tag.ID + 1
		}
	}
	clock.Iterator = ((clock.Iterator % groups) + groups) % groups
	h.clock = clock
	h.stagger = Stagger{Iterator: clock.Iterator, MaxGroups: groups}
	h.snapshot()
	return nil
}

// snapshot copies every agent out of the world into h.agents.
func (h *Herd) snapshot() {
	h.entities = h.entities[:0]
	h.agents = h.agents[:0]
	query := h.filter.Query()
	for query.Next() {
		pos, head, sheep, _ := query.Get()
		a, err := AgentFromComponents(pos, head, sheep)
		if err != nil {
			// Only reachable through a corrupt record; restart the agent.
			slog.Warn("resetting agent state", "error", err)
			a, _ = AgentFromComponents(pos, head, &components.Sheep{
				UpdateGroupID:     sheep.UpdateGroupID,
				InputAttractIndex: sheep.InputAttractIndex,
			})
		}
		h.entities = append(h.entities, query.Entity())
		h.agents = append(h.agents, a)
	}
}

// apply writes h.agents back to their entities.
func (h *Herd) apply() {
	for i, e := range h.entities {
		pos := h.posMap.Get(e)
		head := h.headMap.Get(e)
		sheep := h.sheepMap.Get(e)
		if pos == nil || head == nil || sheep == nil {
			continue
		}
		*pos, *head, *sheep = h.agents[i].Components()
	}
}

// Step advances the herd by one tick. movement is required; input and
// points may be nil. An invalid movement map skips steering for the tick
// and leaves every agent unchanged; the clock still advances.
func (h *Herd) Step(movement, input *maps.SpatialMap, points *maps.InputPointSet) (TickCounters, error) {
	h.pool.Refresh(h.rng)

	if err := movement.Validate(); err != nil {
		h.advanceClock()
		return TickCounters{}, fmt.Errorf("movement map: %w", err)
	}
	if input != nil {
		if err := input.Validate(); err != nil {
			slog.Warn("ignoring input map", "error", err)
			input = nil
		}
	}

	h.startPhase(PhaseSnapshot)
	h.snapshot()
	in := &TickInput{
		Movement: movement,
		Input:    input,
		Points:   points,
		Random:   h.pool,
		Iterator: h.stagger.Iterator,
		Now:      h.clock.Now,
		DT:       h.dt,
	}
	h.startPhase(PhaseSteering)
	counts := h.runner.Run(h.agents, in)
	h.startPhase(PhaseApply)
	h.apply()

	h.stagger = h.stagger.Next()
	h.advanceClock()
	return counts, nil
}

func (h *Herd) advanceClock() {
	h.clock.Tick++
	h.clock.Now += h.dt
	h.clock.Iterator = h.stagger.Iterator
}

// Agents returns the agents as of the last completed tick. The slice is
// reused by the next Step and must not be modified.
func (h *Herd) Agents() []Agent {
	return h.agents
}

// Records returns every agent's components ordered by ID.
func (h *Herd) Records() []Record {
	out := make([]Record, 0, len(h.entities))
	query := h.filter.Query()
	for query.Next() {
		pos, head, sheep, tag := query.Get()
		out = append(out, Record{Tag: *tag, Position: *pos, Heading: *head, Sheep: *sheep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag.ID < out[j].Tag.ID })
	return out
}

// Record returns the components of the agent at index i of Agents.
func (h *Herd) Record(i int) (Record, bool) {
	if i < 0 || i >= len(h.entities) {
		return Record{}, false
	}
	e := h.entities[i]
	return Record{
		Tag:      *h.tagMap.Get(e),
		Position: *h.posMap.Get(e),
		Heading:  *h.headMap.Get(e),
		Sheep:    *h.sheepMap.Get(e),
	}, true
}

// Count returns the number of agents.
func (h *Herd) Count() int {
	return len(h.entities)
}

// Clock returns the current simulated time.
func (h *Herd) Clock() Clock {
	return h.clock
}

// Stagger returns the group that searches on the next tick.
func (h *Herd) Stagger() Stagger {
	return h.stagger
}

// Engine returns the steering engine.
func (h *Herd) Engine() *Engine {
	return h.engine
}

// Pool returns the random pool used on the last tick.
func (h *Herd) Pool() *RandomPool {
	return h.pool
}

// Workers returns the steering worker count.
func (h *Herd) Workers() int {
	return h.runner.Workers()
}

// Close stops the worker pool.
func (h *Herd) Close() {
	h.runner.Stop()
}

package systems

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/components"
)

// State identifies a behavior of the steering state machine.
type State int32

const (
	StateMoveToTarget State = iota
	StateFollowTrace
	StateMoveToLessHeat
	StateIdle
	StateRunAway

	NumStates = int(StateRunAway) + 1
)

var stateNames = [NumStates]string{"move_to_target", "follow_trace", "move_to_less_heat", "idle", "run_away"}

// String returns the snake_case name used in logs and CSV output.
func (s State) String() string {
	if s < 0 || int(s) >= NumStates {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// StateColor returns the debug color drawn for agents in s.
func StateColor(s State) color.RGBA {
	switch s {
	case StateMoveToTarget:
		return color.RGBA{R: 120, G: 220, B: 120, A: 255}
	case StateFollowTrace:
		return color.RGBA{R: 90, G: 200, B: 230, A: 255}
	case StateMoveToLessHeat:
		return color.RGBA{R: 240, G: 170, B: 60, A: 255}
	case StateIdle:
		return color.RGBA{R: 170, G: 170, B: 170, A: 255}
	case StateRunAway:
		return color.RGBA{R: 235, G: 70, B: 70, A: 255}
	}
	return color.RGBA{R: 255, G: 0, B: 255, A: 255}
}

// StateData is the per-state payload of an agent. Exactly one variant is
// live at a time and a transition always starts from a fresh payload.
type StateData interface {
	State() State
	extraInfo() int32
}

// MoveToTargetData counts consecutive blocked ticks.
type MoveToTargetData struct{ StuckTicks int }

// FollowTraceData counts consecutive blocked ticks.
type FollowTraceData struct{ StuckTicks int }

// MoveToLessHeatData holds the continuous turn direction: -1, 0 or +1.
type MoveToLessHeatData struct{ TurnSign int }

// IdleData holds the idle duration in whole seconds; 0 until drawn.
type IdleData struct{ Duration int }

// RunAwayData holds the strongest repulse sample fled from so far.
type RunAwayData struct{ MaxRepulse uint8 }

func (MoveToTargetData) State() State   { return StateMoveToTarget }
func (FollowTraceData) State() State    { return StateFollowTrace }
func (MoveToLessHeatData) State() State { return StateMoveToLessHeat }
func (IdleData) State() State           { return StateIdle }
func (RunAwayData) State() State        { return StateRunAway }

func (d MoveToTargetData) extraInfo() int32   { return int32(d.StuckTicks) }
func (d FollowTraceData) extraInfo() int32    { return int32(d.StuckTicks) }
func (d MoveToLessHeatData) extraInfo() int32 { return int32(d.TurnSign) }
func (d IdleData) extraInfo() int32           { return int32(d.Duration) }
func (d RunAwayData) extraInfo() int32        { return int32(d.MaxRepulse) }

// FreshState returns the zero payload for s.
func FreshState(s State) StateData {
	switch s {
	case StateFollowTrace:
		return FollowTraceData{}
	case StateMoveToLessHeat:
		return MoveToLessHeatData{}
	case StateIdle:
		return IdleData{}
	case StateRunAway:
		return RunAwayData{}
	}
	return MoveToTargetData{}
}

// EncodeState flattens d into the persisted (state, extra) pair.
func EncodeState(d StateData) (state, extra int32) {
	if d == nil {
		return int32(StateMoveToTarget), 0
	}
	return int32(d.State()), d.extraInfo()
}

// DecodeState rebuilds the payload from its persisted pair.
func DecodeState(state, extra int32) (StateData, error) {
	switch State(state) {
	case StateMoveToTarget:
		return MoveToTargetData{StuckTicks: int(extra)}, nil
	case StateFollowTrace:
		return FollowTraceData{StuckTicks: int(extra)}, nil
	case StateMoveToLessHeat:
		if extra < -1 || extra > 1 {
			return nil, fmt.Errorf("decoding %s: turn sign %d", State(state), extra)
		}
		return MoveToLessHeatData{TurnSign: int(extra)}, nil
	case StateIdle:
		return IdleData{Duration: int(extra)}, nil
	case StateRunAway:
		if extra < 0 || extra > 255 {
			return nil, fmt.Errorf("decoding %s: max repulse %d", State(state), extra)
		}
		return RunAwayData{MaxRepulse: uint8(extra)}, nil
	}
	return nil, fmt.Errorf("decoding state: unknown state %d", state)
}

// Agent is the working form of one herd member during a tick.
type Agent struct {
	Position             r3.Vec
	Rotation             quat.Number
	TargetRotation       quat.Number
	InputAttractIndex    int
	InputRepulseStrength float64
	UpdateGroupID        int
	State                StateData
	LastStateChangeTime  float64
}

// CurrentState returns the active state, MoveToTarget for a nil payload.
func (a *Agent) CurrentState() State {
	if a.State == nil {
		return StateMoveToTarget
	}
	return a.State.State()
}

// changeState enters s with a fresh payload and stamps the change time.
// Re-entering the current state counts as a transition.
func (a *Agent) changeState(s State, now float64) {
	a.State = FreshState(s)
	a.LastStateChangeTime = now
}

// Components flattens the agent into its ECS components.
func (a *Agent) Components() (components.Position, components.Heading, components.Sheep) {
	state, extra := EncodeState(a.State)
	return components.Position{Vec: a.Position},
		components.Heading{Rotation: a.Rotation, Target: a.TargetRotation},
		components.Sheep{
			State:                state,
			ExtraInfo:            extra,
			LastStateChangeTime:  a.LastStateChangeTime,
			UpdateGroupID:        int32(a.UpdateGroupID),
			InputAttractIndex:    int32(a.InputAttractIndex),
			InputRepulseStrength: a.InputRepulseStrength,
		}
}

// AgentFromComponents rebuilds an agent from its ECS components.
func AgentFromComponents(pos *components.Position, head *components.Heading, sheep *components.Sheep) (Agent, error) {
	data, err := DecodeState(sheep.State, sheep.ExtraInfo)
	if err != nil {
		return Agent{}, err
	}
	return Agent{
		Position:             pos.Vec,
		Rotation:             head.Rotation,
		TargetRotation:       head.Target,
		InputAttractIndex:    int(sheep.InputAttractIndex),
		InputRepulseStrength: sheep.InputRepulseStrength,
		UpdateGroupID:        int(sheep.UpdateGroupID),
		State:                data,
		LastStateChangeTime:  sheep.LastStateChangeTime,
	}, nil
}

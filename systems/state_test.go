package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestComponentRoundTripIsExact(t *testing.T) {
	payloads := []StateData{
		MoveToTargetData{StuckTicks: 173},
		FollowTraceData{StuckTicks: 1},
		MoveToLessHeatData{TurnSign: -1},
		MoveToLessHeatData{TurnSign: 1},
		IdleData{Duration: 16},
		RunAwayData{MaxRepulse: 254},
	}
	for _, d := range payloads {
		a := Agent{
			Position:             r3.Vec{X: math.Nextafter(1.5, 2), Y: 0, Z: -1e-300},
			Rotation:             YawQuat(0.123456789),
			TargetRotation:       YawQuat(-2.5),
			InputAttractIndex:    3,
			InputRepulseStrength: 117,
			UpdateGroupID:        99,
			State:                d,
			LastStateChangeTime:  math.Pi * 1e5,
		}
		pos, head, sheep := a.Components()
		got, err := AgentFromComponents(&pos, &head, &sheep)
		if err != nil {
			t.Fatalf("%T: %v", d, err)
		}
		if got != a {
			t.Errorf("%T: round trip\n got %+v\nwant %+v", d, got, a)
		}
	}
}

func TestDecodeStateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name         string
		state, extra int32
	}{
		{"unknown state", 9, 0},
		{"negative state", -1, 0},
		{"turn sign out of range", int32(StateMoveToLessHeat), 2},
		{"repulse out of range", int32(StateRunAway), 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeState(tt.state, tt.extra); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeNilState(t *testing.T) {
	state, extra := EncodeState(nil)
	if State(state) != StateMoveToTarget || extra != 0 {
		t.Errorf("EncodeState(nil) = %d, %d", state, extra)
	}
}

func TestStateNames(t *testing.T) {
	if got := StateRunAway.String(); got != "run_away" {
		t.Errorf("String() = %q", got)
	}
	if got := State(12).String(); got != "state(12)" {
		t.Errorf("String() = %q", got)
	}
	seen := map[[4]uint8]bool{}
	for s := State(0); int(s) < NumStates; s++ {
		c := StateColor(s)
		seen[[4]uint8{c.R, c.G, c.B, c.A}] = true
	}
	if len(seen) != NumStates {
		t.Errorf("state colors are not distinct")
	}
}

func TestRandomPool(t *testing.T) {
	var empty RandomPool
	if v := empty.Value(3); v != 0 {
		t.Errorf("empty pool value = %v", v)
	}

	p := NewRandomPoolFrom(0.1, 0.2, 0.3)
	if v := p.Value(4); v != 0.2 {
		t.Errorf("Value(4) = %v, want 0.2", v)
	}
	if v := p.Value(-1); v != 0.3 {
		t.Errorf("Value(-1) = %v, want 0.3", v)
	}
}

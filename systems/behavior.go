package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/maps"
)

// Engine runs the steering state machine for one agent at a time. It holds
// only constants, so a single Engine is shared by every worker.
type Engine struct {
	p Params
}

// NewEngine returns an engine for p.
func NewEngine(p Params) *Engine {
	if p.MaxGroups < 1 {
		p.MaxGroups = 1
	}
	if p.WorldScale <= 0 {
		p.WorldScale = 1
	}
	return &Engine{p: p}
}

// Params returns the engine constants.
func (e *Engine) Params() Params {
	return e.p
}

// step carries per-agent values shared by the state handlers.
type step struct {
	in       *TickInput
	draw     float64
	stepLen  float64
	lookDist float64
	active   bool
	out      TickCounters
}

// Step advances a by one tick. It reads only in and a, and writes only a.
// in.Movement must have passed Validate.
func (e *Engine) Step(a *Agent, in *TickInput) TickCounters {
	if a.State == nil {
		a.State = MoveToTargetData{}
	}
	s := step{
		in:       in,
		draw:     in.Random.Value(a.UpdateGroupID),
		stepLen:  e.p.MoveSpeed * e.p.WorldScale * in.DT,
		lookDist: e.p.SearchDistance * e.p.WorldScale,
		active:   a.UpdateGroupID == in.Iterator,
	}

	if in.Input != nil {
		e.readInputMap(a, &s)
	}

	switch a.State.(type) {
	case MoveToTargetData:
		e.moveToTarget(a, &s)
	case FollowTraceData:
		e.followTrace(a, &s)
	case MoveToLessHeatData:
		e.moveToLessHeat(a, &s)
	case IdleData:
		e.idle(a, &s)
	case RunAwayData:
		e.runAway(a, &s)
	}

	k := 1.0
	if a.CurrentState() == StateRunAway {
		k = e.p.RunAwayTurnFactor
	}
	a.Rotation = RotateTowards(a.Rotation, a.TargetRotation, e.p.TurnSpeed*in.DT*k)
	return s.out
}

func (e *Engine) transition(a *Agent, s *step, to State) {
	a.changeState(to, s.in.Now)
	s.out.Transitions++
}

// toRandomState picks one of the four ordinary states from the draw.
func (e *Engine) toRandomState(a *Agent, s *step) {
	e.transition(a, s, RandomState(s.draw))
}

// RandomState maps a draw in [0, 1) to MoveToTarget, FollowTrace,
// MoveToLessHeat or Idle.
func RandomState(draw float64) State {
	return State(int(math.Floor(draw*100)) % 4)
}

// readInputMap applies attract id retargeting and the repulsion override.
func (e *Engine) readInputMap(a *Agent, s *step) {
	m := s.in.Input
	if e.p.RetargetFromInputMap && s.in.Points != nil {
		if idx := m.Index(a.Position, e.p.AttractIDChannel); idx >= 0 && m.Data[idx] != 0 {
			target := s.in.Points.ClampAttract(maps.ColorCodeToIndex(m.Data[idx]))
			if target >= 0 && target != a.InputAttractIndex {
				a.InputAttractIndex = target
				s.out.Retargets++
			}
		}
	}

	repulse := m.Sample(a.Position, e.p.RepulseChannel)
	a.InputRepulseStrength = float64(repulse)
	if repulse > e.p.RunAwayTrigger && a.CurrentState() != StateRunAway {
		e.transition(a, s, StateRunAway)
		s.out.ForcedRunAways++
	}
}

func (e *Engine) forward(a *Agent, s *step, speed float64, block uint8) (r3.Vec, bool) {
	disp, ok := ForwardStep(s.in.Movement, e.p.HeatChannel, a.Position, a.Rotation, s.stepLen*speed, e.p.ProbeFactor, block)
	if !ok {
		s.out.Blocked++
	}
	return disp, ok
}

func (e *Engine) moveToTarget(a *Agent, s *step) {
	d := a.State.(MoveToTargetData)
	if disp, ok := e.forward(a, s, 1, e.p.MoveBlock); ok {
		a.Position = r3.Add(a.Position, disp)
		d.StuckTicks = 0
	} else {
		d.StuckTicks++
		if d.StuckTicks > e.p.StuckBudget {
			if s.draw > e.p.StuckEscapeChance {
				e.transition(a, s, StateMoveToLessHeat)
				return
			}
			d.StuckTicks = 0
		}
	}
	a.State = d

	if !s.active {
		return
	}
	s.out.Searches++
	if target, ok := s.in.Points.AttractAt(a.InputAttractIndex); ok {
		e.steerToward(a, s, target)
	}
	if s.in.Now-a.LastStateChangeTime > e.p.TargetDwell && s.draw > e.p.DwellExitChance {
		e.transition(a, s, StateFollowTrace)
	}
}

// steerToward targets the cooler of the two headings SearchSpread either
// side of the bearing to target. Equal samples keep the bearing.
func (e *Engine) steerToward(a *Agent, s *step, target r2.Vec) {
	look, ok := LookAt(r2.Sub(target, groundPoint(a.Position)))
	if !ok {
		return
	}
	bearing := Yaw(look)
	m, ch := s.in.Movement, e.p.HeatChannel
	hp := Probe(m, ch, a.Position, Direction(bearing+e.p.SearchSpread), s.lookDist)
	hn := Probe(m, ch, a.Position, Direction(bearing-e.p.SearchSpread), s.lookDist)
	switch {
	case hp > hn:
		a.TargetRotation = Turn(look, -e.p.SearchSpread)
	case hp < hn:
		a.TargetRotation = Turn(look, e.p.SearchSpread)
	default:
		a.TargetRotation = look
	}
}

func (e *Engine) followTrace(a *Agent, s *step) {
	d := a.State.(FollowTraceData)
	disp, ok := e.forward(a, s, 1, e.p.MoveBlock)
	if ok {
		ahead := r3.Add(a.Position, r3.Scale(e.p.ProbeFactor, disp))
		if s.in.Movement.Sample(ahead, e.p.TraceChannel) <= e.p.TraceFollow {
			ok = false
			s.out.Blocked++
		}
	}
	if ok {
		a.Position = r3.Add(a.Position, disp)
		d.StuckTicks = 0
	} else {
		d.StuckTicks++
		if d.StuckTicks > e.p.StuckBudget {
			e.toRandomState(a, s)
			return
		}
	}
	a.State = d

	if !s.active {
		return
	}
	s.out.Searches++
	off, best := bestFan(s.in.Movement, e.p.TraceChannel, a.Position, a.Rotation, e.p.FanSteps, e.p.SearchSpread, s.lookDist, hotter)
	if best < e.p.TraceWeak {
		e.toRandomState(a, s)
		return
	}
	a.TargetRotation = Turn(a.Rotation, off)
}

func (e *Engine) moveToLessHeat(a *Agent, s *step) {
	d := a.State.(MoveToLessHeatData)
	disp, canMove := e.forward(a, s, 1, e.p.LessHeatBlock)
	if canMove {
		a.Position = r3.Add(a.Position, disp)
		d.TurnSign = 0
	}

	if s.active && !canMove {
		s.out.Searches++
		n := max(e.p.LessHeatSideSamples, 1)
		pos, neg := sideSums(s.in.Movement, e.p.HeatChannel, a.Position, a.Rotation, n, e.p.LessHeatSideStride, e.p.SearchSpread, s.lookDist)
		minSide := pos
		switch {
		case neg > pos:
			d.TurnSign = 1
		case pos > neg:
			d.TurnSign, minSide = -1, neg
		case s.draw < 0.5:
			d.TurnSign = 1
		default:
			d.TurnSign = -1
		}
		mean := float64(minSide) / float64(n)
		if mean >= float64(maps.Blocked) {
			d.TurnSign = 0
		}
		if mean < float64(e.p.ClearSideHeat) {
			switch {
			case s.draw < e.p.LessHeatTargetOdds:
				e.transition(a, s, StateMoveToTarget)
				return
			case s.draw < e.p.LessHeatIdleOdds:
				e.transition(a, s, StateIdle)
				return
			}
		}
	}
	a.State = d

	if d.TurnSign != 0 {
		turn := e.p.TurnSpeed * e.p.LessHeatTurnRate * s.in.DT * float64(d.TurnSign)
		a.Rotation = Turn(a.Rotation, turn)
		a.TargetRotation = Turn(a.TargetRotation, turn)
	}

	if s.in.Now-a.LastStateChangeTime > e.p.LessHeatMinDwell+e.p.LessHeatDwellJitter*s.draw {
		if s.draw < e.p.LessHeatTraceOdds {
			e.transition(a, s, StateFollowTrace)
		} else {
			e.transition(a, s, StateMoveToLessHeat)
		}
	}
}

func (e *Engine) idle(a *Agent, s *step) {
	d := a.State.(IdleData)
	if d.Duration == 0 {
		d.Duration = int(s.draw*float64(e.p.IdleJitter)) + e.p.IdleMin
		a.State = d
	}
	if s.in.Now-a.LastStateChangeTime > float64(d.Duration) {
		e.toRandomState(a, s)
	}
}

func (e *Engine) runAway(a *Agent, s *step) {
	d := a.State.(RunAwayData)
	if disp, ok := e.forward(a, s, e.p.RunAwaySpeed, e.p.RunAwayBlock); ok {
		a.Position = r3.Add(a.Position, disp)
	} else {
		off, _ := bestFan(s.in.Movement, e.p.HeatChannel, a.Position, a.Rotation, e.p.FanSteps, e.p.SearchSpread, s.lookDist, cooler)
		a.TargetRotation = Turn(a.Rotation, off)
	}
	a.State = d

	if !s.active || s.in.Input == nil {
		return
	}
	s.out.Searches++
	if angle, v, ok := sectorPeak(s.in.Input, e.p.RepulseChannel, a.Position, e.p.RunAwaySectors, e.p.RunAwayScanDistance*e.p.WorldScale, d.MaxRepulse); ok {
		a.TargetRotation = YawQuat(angle + math.Pi)
		d.MaxRepulse = v
		a.State = d
	}
	if s.draw < e.p.RunAwayExitChance {
		e.toRandomState(a, s)
	}
}

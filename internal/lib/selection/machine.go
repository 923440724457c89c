package selection

import (
	"errors"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/segment"
)

// Machine drives the selection workflow against one trajectory's builder.
// It is not safe for concurrent use.
type Machine struct {
	builder segment.Builder
	state   State
}

// NewMachine creates a machine in the idle state
func NewMachine(builder segment.Builder) *Machine {
	return &Machine{builder: builder}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Apply runs a transition from the current state and stores the result
func (m *Machine) Apply(e Event) []Effect {
	next, effects := m.Transition(m.state, e)
	m.state = next
	return effects
}

// Transition computes the next state and the effects for e. It does not
// modify the machine. Events that do not apply to s return s unchanged with
// no effects.
func (m *Machine) Transition(s State, e Event) (State, []Effect) {
	switch e.Kind {
	case EventReset:
		return State{Phase: PhaseIdle}, []Effect{
			{Kind: EffectClearMarker},
			{Kind: EffectSelectionChanged},
		}

	case EventBeginPickA:
		if s.Phase == PhasePickingB {
			return s, nil
		}
		return State{Phase: PhasePickingA}, []Effect{
			{Kind: EffectClearMarker},
			{Kind: EffectSelectionChanged},
		}

	case EventBeginPickB:
		if s.Phase != PhaseHavePointA || s.Segment == nil {
			return s, nil
		}
		return State{Phase: PhasePickingB, PointA: s.PointA, Segment: s.Segment}, []Effect{
			{Kind: EffectSelectionChanged},
		}

	case EventClick:
		switch s.Phase {
		case PhasePickingA:
			return m.clickA(s, e.Point)
		case PhasePickingB:
			return m.clickB(s, e.Point)
		}
	}

	return s, nil
}

func (m *Machine) clickA(s State, p geo.Point) (State, []Effect) {
	seg, err := m.builder.Build(segment.Selection{PointA: p})
	if err == nil {
		return State{Phase: PhaseHavePointA, PointA: &seg.PointA, Segment: &seg}, playEffects(&seg)
	}

	reason := ReasonFor(err)
	if errors.Is(err, segment.ErrNoAnchorVideo) {
		// Point A stands but nothing can play; the operator may pick again
		next := State{Phase: PhaseHavePointA, Reason: reason, Err: err}
		if event, ok := m.builder.Resolve(p); ok {
			next.PointA = &event
		}
		return next, []Effect{
			{Kind: EffectReportError, Reason: reason, Err: err},
			{Kind: EffectSelectionChanged},
		}
	}

	return m.fail(s, reason, err)
}

func (m *Machine) clickB(s State, p geo.Point) (State, []Effect) {
	if s.PointA == nil {
		return m.fail(s, ReasonUnknown, errors.New("point B picked without point A"))
	}

	seg, err := m.builder.Build(segment.Selection{PointA: s.PointA.Position, PointB: &p})
	if err != nil {
		return m.fail(s, ReasonFor(err), err)
	}

	if seg.SamePoint {
		return State{
			Phase:   PhaseHavePointA,
			PointA:  &seg.PointA,
			Segment: &seg,
			Reason:  ReasonSamePointSelected,
		}, playEffects(&seg)
	}

	return State{Phase: PhaseReady, PointA: &seg.PointA, Segment: &seg}, playEffects(&seg)
}

// fail moves to the error phase, keeping the last good segment
func (m *Machine) fail(s State, reason Reason, err error) (State, []Effect) {
	next := State{
		Phase:   PhaseError,
		PointA:  s.PointA,
		Segment: s.Segment,
		Reason:  reason,
		Err:     err,
	}
	return next, []Effect{
		{Kind: EffectReportError, Reason: reason, Err: err},
		{Kind: EffectSelectionChanged},
	}
}

func playEffects(seg *segment.Segment) []Effect {
	return []Effect{
		{Kind: EffectSelectionChanged, Segment: seg},
		{Kind: EffectLoadPlaylist, Segment: seg},
		{Kind: EffectSeek, Segment: seg, Offset: seg.Window.Start},
	}
}

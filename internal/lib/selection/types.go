// Package selection implements the operator's waypoint-picking workflow as a
// state machine with an explicit, side-effect free transition function.
package selection

import (
	"errors"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/segment"
	"github.com/dpup/fibersurvey/server/internal/lib/survey"
)

// Phase is the workflow stage
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePickingA
	PhaseHavePointA
	PhasePickingB
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePickingA:
		return "picking_a"
	case PhaseHavePointA:
		return "have_point_a"
	case PhasePickingB:
		return "picking_b"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Reason explains a reported problem or notice
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNoAnchorVideo     Reason = "no_anchor_video"
	ReasonSamePointSelected Reason = "same_point_selected"
	ReasonEmptyPathSlice    Reason = "empty_path_slice"
	ReasonEmptyTrajectory   Reason = "empty_trajectory"
	ReasonUnknown           Reason = "unknown"
)

// ReasonFor classifies a segment build error
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, segment.ErrNoAnchorVideo):
		return ReasonNoAnchorVideo
	case errors.Is(err, segment.ErrEmptyPathSlice):
		return ReasonEmptyPathSlice
	case errors.Is(err, segment.ErrEmptyTrajectory):
		return ReasonEmptyTrajectory
	default:
		return ReasonUnknown
	}
}

// State is an immutable snapshot of the workflow. Segment is the current
// playable segment; in PhaseError it is the last good one, if any.
type State struct {
	Phase   Phase
	PointA  *survey.SurveyEvent
	Segment *segment.Segment
	Reason  Reason
	Err     error
}

// Playable reports whether the state carries a segment to play
func (s State) Playable() bool {
	return s.Segment != nil
}

// EventKind identifies an operator action
type EventKind int

const (
	EventBeginPickA EventKind = iota
	EventBeginPickB
	EventClick
	EventReset
)

// Event is an operator action fed into the machine
type Event struct {
	Kind  EventKind
	Point geo.Point
}

// BeginPickA starts picking the first waypoint
func BeginPickA() Event { return Event{Kind: EventBeginPickA} }

// BeginPickB starts picking the second waypoint
func BeginPickB() Event { return Event{Kind: EventBeginPickB} }

// Click is a waypoint click on the map
func Click(p geo.Point) Event { return Event{Kind: EventClick, Point: p} }

// Reset discards the selection
func Reset() Event { return Event{Kind: EventReset} }

// EffectKind identifies a side effect the caller must carry out
type EffectKind int

const (
	EffectSelectionChanged EffectKind = iota
	EffectLoadPlaylist
	EffectSeek
	EffectReportError
	EffectClearMarker
)

func (k EffectKind) String() string {
	switch k {
	case EffectSelectionChanged:
		return "selection_changed"
	case EffectLoadPlaylist:
		return "load_playlist"
	case EffectSeek:
		return "seek"
	case EffectReportError:
		return "report_error"
	case EffectClearMarker:
		return "clear_marker"
	default:
		return "unknown"
	}
}

// Effect is a side effect produced by a transition
type Effect struct {
	Kind    EffectKind
	Segment *segment.Segment
	Offset  float64
	Reason  Reason
	Err     error
}

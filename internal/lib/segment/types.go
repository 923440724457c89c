// Package segment turns an operator's waypoint selection into a playable
// segment: anchor video, playlist, playback window and path slice.
package segment

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/playback"
	"github.com/dpup/fibersurvey/server/internal/lib/survey"
)

var (
	// ErrNoAnchorVideo means no playable video exists at or before point A
	ErrNoAnchorVideo = errors.New("no video recorded at or before the selected point")

	// ErrEmptyTrajectory means no event with a position could be resolved
	ErrEmptyTrajectory = errors.New("trajectory has no positioned events")

	// ErrEmptyPathSlice means the resolved indices produced no positions
	ErrEmptyPathSlice = errors.New("selection produced an empty path")
)

// Selection is the operator's raw waypoint pick. PointB is optional.
type Selection struct {
	PointA geo.Point
	PointB *geo.Point
}

// Segment is the derived, read-only result of a selection
type Segment struct {
	ID uuid.UUID `json:"id"`

	PointA survey.SurveyEvent  `json:"point_a"`
	PointB *survey.SurveyEvent `json:"point_b,omitempty"`

	// SamePoint is set when point B resolved to point A's event and was dropped
	SamePoint bool `json:"same_point"`

	Anchor   survey.SurveyEvent   `json:"anchor"`
	Playlist []survey.SurveyEvent `json:"playlist"`
	Window   playback.Window      `json:"window"`

	StartIndex int                 `json:"start_index"`
	EndIndex   int                 `json:"end_index"`
	Path       *playback.PathSlice `json:"-"`
}

// Interpolator returns an interpolator over the segment's path and window
func (s Segment) Interpolator() *playback.Interpolator {
	return playback.NewInterpolator(s.Path, s.Window)
}

// ClipStartOffset returns the offset, in seconds on the anchor's timeline, at
// which the playlist clip with the given index begins.
func (s Segment) ClipStartOffset(clipIndex int) float64 {
	if clipIndex <= 0 || clipIndex >= len(s.Playlist) {
		return 0
	}
	return s.Playlist[clipIndex].Timestamp().Sub(s.Anchor.Timestamp()).Seconds()
}

// Builder builds segments against one loaded trajectory
type Builder interface {
	// Build resolves the selection and derives its segment
	Build(sel Selection) (Segment, error)

	// Resolve returns the trajectory event nearest to a picked point
	Resolve(p geo.Point) (survey.SurveyEvent, bool)
}

// Options tune segment building
type Options struct {
	// Precision is the decimal-degree rounding used to detect the same point
	// picked twice
	Precision int
}

// DefaultOptions returns the standard builder options
func DefaultOptions() Options {
	return Options{Precision: geo.DefaultPrecision}
}

// NewBuilder is implemented in builder.go

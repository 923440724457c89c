package playback

import (
	"github.com/dpup/fibersurvey/server/internal/lib/geo"
)

// Window is the portion of the anchor video's own timeline, in seconds, that
// corresponds to the selected waypoints. End is nil for a single-point
// selection, in which case playback runs to the end of the stream.
type Window struct {
	Start float64  `json:"start_offset_seconds"`
	End   *float64 `json:"end_offset_seconds,omitempty"`
}

// HasEnd reports whether the window is bounded by a second waypoint
func (w Window) HasEnd() bool {
	return w.End != nil
}

// Progress returns the fraction of the window elapsed at playback time t.
// streamDuration is only consulted for single-point windows; until it is known
// to extend past the start, progress stays at zero.
func (w Window) Progress(t, streamDuration float64) float64 {
	end := streamDuration
	if w.End != nil {
		end = *w.End
	}

	span := end - w.Start
	if w.End == nil && (streamDuration <= 0 || span <= 0) {
		return 0
	}
	if span <= 0 {
		// Degenerate window: jump straight from start to finish
		if t < w.Start {
			return 0
		}
		return 1
	}
	return clamp((t-w.Start)/span, 0, 1)
}

// Reached reports whether playback at t has hit the window's end boundary.
// Single-point windows never report a boundary.
func (w Window) Reached(t float64) bool {
	return w.End != nil && t >= *w.End
}

// OffsetForProgress is the inverse of Progress, used to seek the player when
// the operator clicks the progress bar.
func (w Window) OffsetForProgress(progress, streamDuration float64) float64 {
	end := streamDuration
	if w.End != nil {
		end = *w.End
	}
	if end < w.Start {
		end = w.Start
	}
	return w.Start + clamp(progress, 0, 1)*(end-w.Start)
}

// Interpolator maps playback time to a position along a path slice
type Interpolator struct {
	path   *PathSlice
	window Window
}

// NewInterpolator pairs a path slice with its playback window
func NewInterpolator(path *PathSlice, window Window) *Interpolator {
	return &Interpolator{path: path, window: window}
}

// Window returns the interpolator's playback window
func (in *Interpolator) Window() Window {
	return in.window
}

// Path returns the interpolator's path slice
func (in *Interpolator) Path() *PathSlice {
	return in.path
}

// Position returns the coordinate for playback time t. ok is false only when
// the path slice is empty.
func (in *Interpolator) Position(t, streamDuration float64) (geo.Point, bool) {
	return in.path.PositionAt(in.window.Progress(t, streamDuration))
}

package survey

import (
	"math"
	"sort"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
)

// Trajectory is the ordered collection of events recorded in one survey run.
// It is never mutated after loading; a reload replaces it wholesale.
type Trajectory struct {
	SurveyID string        `json:"survey_id"`
	Events   []SurveyEvent `json:"events"`
}

// Sorted returns the events ordered by effective timestamp. Ties keep their
// input order, so every consumer sees the same sequence.
func (t Trajectory) Sorted() []SurveyEvent {
	sorted := make([]SurveyEvent, len(t.Events))
	copy(sorted, t.Events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp().Before(sorted[j].Timestamp())
	})
	return sorted
}

// Track is the position-ordered view of a trajectory used for polylines and
// path slices. Consecutive events at the same rounded position share a point.
type Track struct {
	events  []SurveyEvent
	points  []geo.Point
	pointOf []int // sorted event ordinal -> point index, -1 without position
	byID    map[string]int
}

// NewTrack builds the track from a trajectory. precision controls which
// consecutive positions are collapsed into one point.
func NewTrack(t Trajectory, precision int) *Track {
	events := t.Sorted()
	track := &Track{
		events:  events,
		pointOf: make([]int, len(events)),
		byID:    make(map[string]int, len(events)),
	}

	for i, event := range events {
		if _, exists := track.byID[event.ID]; !exists {
			track.byID[event.ID] = i
		}

		if !event.HasPosition() {
			track.pointOf[i] = -1
			continue
		}

		last := len(track.points) - 1
		if last >= 0 && geo.RoundedEquals(track.points[last], event.Position, precision) {
			track.pointOf[i] = last
			continue
		}

		track.points = append(track.points, event.Position)
		track.pointOf[i] = len(track.points) - 1
	}

	return track
}

// Events returns the chronologically sorted events backing the track
func (t *Track) Events() []SurveyEvent {
	return t.events
}

// Points returns the full position list. Callers must not modify it.
func (t *Track) Points() []geo.Point {
	return t.points
}

// Len returns the number of points
func (t *Track) Len() int {
	return len(t.points)
}

// PointIndex returns the point index of the event with the given ID
func (t *Track) PointIndex(eventID string) (int, bool) {
	ordinal, ok := t.byID[eventID]
	if !ok || t.pointOf[ordinal] < 0 {
		return -1, false
	}
	return t.pointOf[ordinal], true
}

// NearestEvent resolves a picked coordinate to the closest event with a
// position, by planar distance on raw degrees. Ties go to the earliest event.
func (t *Track) NearestEvent(p geo.Point) (SurveyEvent, bool) {
	best := -1
	bestDistance := math.Inf(1)
	for i, event := range t.events {
		if t.pointOf[i] < 0 {
			continue
		}
		d := geo.PlanarDistanceSquared(p, event.Position)
		if d < bestDistance {
			bestDistance = d
			best = i
		}
	}
	if best < 0 {
		return SurveyEvent{}, false
	}
	return t.events[best], true
}

// Slice returns the inclusive sub-list of points between start and end
func (t *Track) Slice(start, end int) []geo.Point {
	if start < 0 || end >= len(t.points) || start > end {
		return nil
	}
	out := make([]geo.Point, end-start+1)
	copy(out, t.points[start:end+1])
	return out
}

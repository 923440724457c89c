package segment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/playback"
	"github.com/dpup/fibersurvey/server/internal/lib/survey"
	"github.com/dpup/fibersurvey/server/internal/lib/timeline"
)

// builder implements the Builder interface
type builder struct {
	track *survey.Track
	index *timeline.Index
	opts  Options
}

// NewBuilder creates a Builder over a track and temporal index that were
// derived from the same trajectory
func NewBuilder(track *survey.Track, index *timeline.Index, opts Options) Builder {
	return &builder{
		track: track,
		index: index,
		opts:  opts,
	}
}

// Resolve returns the event nearest to p
func (b *builder) Resolve(p geo.Point) (survey.SurveyEvent, bool) {
	return b.track.NearestEvent(p)
}

// Build derives the segment for a selection
func (b *builder) Build(sel Selection) (Segment, error) {
	eventA, ok := b.track.NearestEvent(sel.PointA)
	if !ok {
		return Segment{}, ErrEmptyTrajectory
	}

	seg := Segment{PointA: eventA}

	if sel.PointB != nil {
		eventB, ok := b.track.NearestEvent(*sel.PointB)
		if ok {
			if eventB.ID == eventA.ID || geo.RoundedEquals(eventB.Position, eventA.Position, b.opts.Precision) {
				seg.SamePoint = true
			} else {
				seg.PointB = &eventB
			}
		}
	}

	anchor, ok := b.index.LatestVideoAtOrBefore(eventA.Timestamp())
	if !ok {
		return Segment{}, fmt.Errorf("%w (event %s)", ErrNoAnchorVideo, eventA.ID)
	}
	seg.Anchor = anchor
	seg.Playlist = b.index.VideosFrom(anchor)
	seg.Window = b.window(anchor, eventA, seg.PointB)

	start, end := b.pathBounds(anchor, eventA, seg.PointB, seg.Playlist)
	points := b.track.Slice(start, end)
	if len(points) == 0 {
		// Fall back to a marker at point A with no interpolation
		indexA, _ := b.track.PointIndex(eventA.ID)
		start, end = indexA, indexA
		points = b.track.Slice(start, end)
		if len(points) == 0 {
			return Segment{}, ErrEmptyPathSlice
		}
	}

	seg.ID = uuid.New()
	seg.StartIndex = start
	seg.EndIndex = end
	seg.Path = playback.NewPathSlice(points)

	return seg, nil
}

// window computes the playback offsets on the anchor's timeline. When point B
// precedes point A the offsets are reordered, and an offset before the
// anchor's own start is clamped to zero.
func (b *builder) window(anchor, eventA survey.SurveyEvent, eventB *survey.SurveyEvent) playback.Window {
	startOffset := secondsBetween(eventA, anchor)
	if eventB == nil {
		return playback.Window{Start: startOffset}
	}

	endOffset := secondsBetween(*eventB, anchor)
	if endOffset < startOffset {
		startOffset, endOffset = endOffset, startOffset
	}
	if startOffset < 0 {
		startOffset = 0
	}
	return playback.Window{Start: startOffset, End: &endOffset}
}

// pathBounds resolves the inclusive point-index range of the path slice. A
// two-point slice never starts before the anchor, matching the window's
// clamped start offset.
func (b *builder) pathBounds(anchor, eventA survey.SurveyEvent, eventB *survey.SurveyEvent, playlist []survey.SurveyEvent) (int, int) {
	indexA, _ := b.track.PointIndex(eventA.ID)

	if eventB != nil {
		indexB, _ := b.track.PointIndex(eventB.ID)
		start, end := minMax(indexA, indexB)
		if indexAnchor, ok := b.track.PointIndex(anchor.ID); ok && start < indexAnchor && indexAnchor <= end {
			start = indexAnchor
		}
		return start, end
	}

	indexEnd := indexA
	if next, ok := b.index.NextVideoAfter(anchor); ok {
		if idx, ok := b.track.PointIndex(next.ID); ok {
			indexEnd = idx
		}
	} else if len(playlist) > 0 {
		if idx, ok := b.track.PointIndex(playlist[len(playlist)-1].ID); ok {
			indexEnd = idx
		}
	}

	start, end := indexA, indexEnd
	if indexEnd <= indexA {
		// Out-of-order fallback kept for compatibility with existing surveys
		switch {
		case indexEnd+1 < b.track.Len():
			end = b.track.Len() - 1
		case indexEnd-2 >= 0:
			start = indexEnd - 2
		default:
			start, end = indexA, indexA
		}
	}
	return minMax(start, end)
}

func secondsBetween(event, anchor survey.SurveyEvent) float64 {
	return event.Timestamp().Sub(anchor.Timestamp()).Seconds()
}

func minMax(a, b int) (int, int) {
	if a <= b {
		return a, b
	}
	return b, a
}

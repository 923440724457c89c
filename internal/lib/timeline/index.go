// Package timeline provides time-ordered access to survey events, in
// particular the lookup of the video clip covering a given moment.
package timeline

import (
	"sort"
	"time"

	"github.com/dpup/fibersurvey/server/internal/lib/survey"
)

// IndexStats summarises what went into an index
type IndexStats struct {
	Events         int
	Videos         int
	MalformedMedia int
}

// Index is the temporal index over one trajectory. It is built once and is
// safe for concurrent reads.
type Index struct {
	events []survey.SurveyEvent
	// videos holds the playable VIDEO events in index order
	videos []survey.SurveyEvent
	stats  IndexStats
}

// Build sorts the trajectory by effective timestamp (stable on ties) and
// indexes its playable videos. VIDEO events whose media reference is
// malformed are left out of the video index.
func Build(t survey.Trajectory) *Index {
	idx := &Index{events: t.Sorted()}
	idx.stats.Events = len(idx.events)

	for _, event := range idx.events {
		if event.Type != survey.EventVideo {
			continue
		}
		if event.MediaMalformed() {
			idx.stats.MalformedMedia++
			continue
		}
		if event.IsPlayableVideo() {
			idx.videos = append(idx.videos, event)
		}
	}
	idx.stats.Videos = len(idx.videos)

	return idx
}

// Events returns the sorted events. Callers must not modify the slice.
func (idx *Index) Events() []survey.SurveyEvent {
	return idx.events
}

// Len returns the number of indexed events
func (idx *Index) Len() int {
	return len(idx.events)
}

// Stats returns index statistics
func (idx *Index) Stats() IndexStats {
	return idx.stats
}

// LatestVideoAtOrBefore returns the playable video with the greatest
// timestamp not after t. Among equal timestamps the last one in index order
// wins.
func (idx *Index) LatestVideoAtOrBefore(t time.Time) (survey.SurveyEvent, bool) {
	// First video strictly after t
	i := sort.Search(len(idx.videos), func(i int) bool {
		return idx.videos[i].Timestamp().After(t)
	})
	if i == 0 {
		return survey.SurveyEvent{}, false
	}
	return idx.videos[i-1], true
}

// VideosFrom returns the playlist that starts at anchor and includes every
// later playable video, ascending. Videos sharing the anchor's timestamp that
// sort before it are left out, so the anchor is always clip 0.
func (idx *Index) VideosFrom(anchor survey.SurveyEvent) []survey.SurveyEvent {
	pos := idx.videoPosition(anchor)
	if pos < 0 {
		return nil
	}
	playlist := make([]survey.SurveyEvent, len(idx.videos)-pos)
	copy(playlist, idx.videos[pos:])
	return playlist
}

// NextVideoAfter returns the playable video that follows anchor in the index
func (idx *Index) NextVideoAfter(anchor survey.SurveyEvent) (survey.SurveyEvent, bool) {
	pos := idx.videoPosition(anchor)
	if pos < 0 || pos+1 >= len(idx.videos) {
		return survey.SurveyEvent{}, false
	}
	return idx.videos[pos+1], true
}

// videoPosition locates anchor in the video index, or -1
func (idx *Index) videoPosition(anchor survey.SurveyEvent) int {
	ts := anchor.Timestamp()
	i := sort.Search(len(idx.videos), func(i int) bool {
		return !idx.videos[i].Timestamp().Before(ts)
	})
	for ; i < len(idx.videos) && idx.videos[i].Timestamp().Equal(ts); i++ {
		if idx.videos[i].ID == anchor.ID {
			return i
		}
	}
	return -1
}

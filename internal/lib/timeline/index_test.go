package timeline

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/fibersurvey/server/internal/lib/survey"
)

func at(sec int) time.Time {
	return time.Unix(1700000000+int64(sec), 0).UTC()
}

func video(id string, sec int) survey.SurveyEvent {
	return survey.SurveyEvent{
		ID:        id,
		CreatedAt: at(sec),
		Type:      survey.EventVideo,
		Media:     survey.SingleMedia("https://cdn/" + id + ".mp4"),
	}
}

func poi(id string, sec int) survey.SurveyEvent {
	return survey.SurveyEvent{ID: id, CreatedAt: at(sec), Type: survey.EventFPOI}
}

func TestIndex_LatestVideoAtOrBefore(t *testing.T) {
	idx := Build(survey.Trajectory{Events: []survey.SurveyEvent{
		poi("p1", 150),
		video("v2", 200),
		video("v1", 100),
		poi("p0", 50),
	}})

	_, ok := idx.LatestVideoAtOrBefore(at(99))
	assert.False(t, ok, "No video precedes t=99")

	event, ok := idx.LatestVideoAtOrBefore(at(100))
	require.True(t, ok)
	assert.Equal(t, "v1", event.ID)

	event, ok = idx.LatestVideoAtOrBefore(at(199))
	require.True(t, ok)
	assert.Equal(t, "v1", event.ID)

	event, ok = idx.LatestVideoAtOrBefore(at(500))
	require.True(t, ok)
	assert.Equal(t, "v2", event.ID)
}

func TestIndex_ExcludesMalformedAndEmptyMedia(t *testing.T) {
	malformed := video("broken", 120)
	malformed.Media = survey.ParseMediaString("[not json")
	empty := video("empty", 130)
	empty.Media = survey.MediaRef{}

	idx := Build(survey.Trajectory{Events: []survey.SurveyEvent{video("v1", 100), malformed, empty}})

	event, ok := idx.LatestVideoAtOrBefore(at(140))
	require.True(t, ok)
	assert.Equal(t, "v1", event.ID)

	stats := idx.Stats()
	assert.Equal(t, 3, stats.Events)
	assert.Equal(t, 1, stats.Videos)
	assert.Equal(t, 1, stats.MalformedMedia)
}

func TestIndex_PlaylistAndNext(t *testing.T) {
	idx := Build(survey.Trajectory{Events: []survey.SurveyEvent{
		video("v3", 300),
		video("v1", 100),
		poi("p", 150),
		video("v2", 200),
	}})

	v1, ok := idx.LatestVideoAtOrBefore(at(150))
	require.True(t, ok)

	playlist := idx.VideosFrom(v1)
	require.Len(t, playlist, 3)
	assert.Equal(t, "v1", playlist[0].ID)
	assert.Equal(t, "v3", playlist[2].ID)

	next, ok := idx.NextVideoAfter(v1)
	require.True(t, ok)
	assert.Equal(t, "v2", next.ID)

	v3, _ := idx.LatestVideoAtOrBefore(at(999))
	_, ok = idx.NextVideoAfter(v3)
	assert.False(t, ok)
	assert.Len(t, idx.VideosFrom(v3), 1)

	assert.Nil(t, idx.VideosFrom(poi("p", 150)), "Non-video anchors have no playlist")
}

func TestIndex_TiesKeepInputOrder(t *testing.T) {
	idx := Build(survey.Trajectory{Events: []survey.SurveyEvent{
		video("first", 100),
		video("second", 100),
	}})

	event, ok := idx.LatestVideoAtOrBefore(at(100))
	require.True(t, ok)
	assert.Equal(t, "second", event.ID)

	playlist := idx.VideosFrom(event)
	require.Len(t, playlist, 1, "Playlist starts at the anchor itself")

	first := idx.VideosFrom(video("first", 100))
	assert.Len(t, first, 2)
}

func TestIndex_DistinguishesDuplicateCoordinatesByTime(t *testing.T) {
	a := video("a", 100)
	b := video("b", 200)
	idx := Build(survey.Trajectory{Events: []survey.SurveyEvent{b, a}})

	event, _ := idx.LatestVideoAtOrBefore(at(150))
	assert.Equal(t, "a", event.ID)
	event, _ = idx.LatestVideoAtOrBefore(at(250))
	assert.Equal(t, "b", event.ID)
}

// bruteForceLatest scans linearly, keeping the last maximum in sorted order
func bruteForceLatest(events []survey.SurveyEvent, t time.Time) (survey.SurveyEvent, bool) {
	var best survey.SurveyEvent
	found := false
	for _, e := range events {
		if !e.IsPlayableVideo() || e.Timestamp().After(t) {
			continue
		}
		if !found || !e.Timestamp().Before(best.Timestamp()) {
			best = e
			found = true
		}
	}
	return best, found
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		var events []survey.SurveyEvent
		n := rng.Intn(30)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("e%d-%d", trial, i)
			sec := rng.Intn(100)
			if rng.Intn(2) == 0 {
				events = append(events, video(id, sec))
			} else {
				events = append(events, poi(id, sec))
			}
		}

		trajectory := survey.Trajectory{Events: events}
		idx := Build(trajectory)
		sorted := trajectory.Sorted()

		for sec := -5; sec <= 105; sec++ {
			want, wantOK := bruteForceLatest(sorted, at(sec))
			got, gotOK := idx.LatestVideoAtOrBefore(at(sec))
			require.Equal(t, wantOK, gotOK, "trial %d t=%d", trial, sec)
			assert.Equal(t, want.ID, got.ID, "trial %d t=%d", trial, sec)
		}
	}
}

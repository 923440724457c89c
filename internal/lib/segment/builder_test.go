package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/survey"
	"github.com/dpup/fibersurvey/server/internal/lib/timeline"
)

func at(sec int) time.Time {
	return time.Unix(1700000000+int64(sec), 0).UTC()
}

func pt(lat, lng float64) geo.Point {
	return geo.Point{Latitude: lat, Longitude: lng}
}

func video(id string, sec int, p geo.Point) survey.SurveyEvent {
	return survey.SurveyEvent{
		ID:        id,
		CreatedAt: at(sec),
		Position:  p,
		Type:      survey.EventVideo,
		Media:     survey.SingleMedia("https://cdn/" + id + ".mp4"),
	}
}

func poi(id string, sec int, p geo.Point) survey.SurveyEvent {
	return survey.SurveyEvent{ID: id, CreatedAt: at(sec), Position: p, Type: survey.EventFPOI}
}

func newBuilder(events ...survey.SurveyEvent) Builder {
	trajectory := survey.Trajectory{SurveyID: "s1", Events: events}
	return NewBuilder(
		survey.NewTrack(trajectory, geo.DefaultPrecision),
		timeline.Build(trajectory),
		DefaultOptions(),
	)
}

func TestBuild_SinglePointRunsToNextVideo(t *testing.T) {
	b := newBuilder(
		video("E1", 100, pt(0, 0)),
		poi("E2", 110, pt(0, 1)),
		video("E3", 200, pt(0, 2)),
	)

	seg, err := b.Build(Selection{PointA: pt(0, 1)})
	require.NoError(t, err)

	assert.Equal(t, "E2", seg.PointA.ID)
	assert.Equal(t, "E1", seg.Anchor.ID)
	assert.Equal(t, 10.0, seg.Window.Start)
	assert.Nil(t, seg.Window.End)
	assert.Equal(t, 1, seg.StartIndex)
	assert.Equal(t, 2, seg.EndIndex)
	assert.Equal(t, []geo.Point{pt(0, 1), pt(0, 2)}, seg.Path.Points())
	assert.NotEmpty(t, seg.ID.String())

	require.Len(t, seg.Playlist, 2)
	assert.Equal(t, "E1", seg.Playlist[0].ID)
	assert.Equal(t, "E3", seg.Playlist[1].ID)
	assert.Equal(t, 100.0, seg.ClipStartOffset(1))
	assert.Equal(t, 0.0, seg.ClipStartOffset(0))

	// Playback at the start offset puts the marker on E2 itself
	position, ok := seg.Interpolator().Position(10, 60)
	require.True(t, ok)
	assert.Equal(t, pt(0, 1), position)
}

func TestBuild_TwoPoints(t *testing.T) {
	b := newBuilder(
		video("V1", 100, pt(0, 0)),
		poi("P1", 110, pt(0, 1)),
		poi("P2", 130, pt(0, 2)),
		video("V2", 200, pt(0, 3)),
	)

	b2 := pt(0, 2)
	seg, err := b.Build(Selection{PointA: pt(0, 1), PointB: &b2})
	require.NoError(t, err)

	require.NotNil(t, seg.PointB)
	assert.Equal(t, "P2", seg.PointB.ID)
	assert.Equal(t, 10.0, seg.Window.Start)
	require.NotNil(t, seg.Window.End)
	assert.Equal(t, 30.0, *seg.Window.End)
	assert.Equal(t, []geo.Point{pt(0, 1), pt(0, 2)}, seg.Path.Points())
}

func TestBuild_PointBBeforePointA(t *testing.T) {
	b := newBuilder(
		poi("P0", 90, pt(0, -1)),
		video("V1", 100, pt(0, 0)),
		poi("P1", 110, pt(0, 1)),
		poi("P2", 130, pt(0, 2)),
	)

	b1 := pt(0, 1)
	seg, err := b.Build(Selection{PointA: pt(0, 2), PointB: &b1})
	require.NoError(t, err)
	assert.Equal(t, 10.0, seg.Window.Start)
	assert.Equal(t, 30.0, *seg.Window.End)
	assert.Equal(t, 2, seg.StartIndex)
	assert.Equal(t, 3, seg.EndIndex)

	b0 := pt(0, -1)
	seg, err = b.Build(Selection{PointA: pt(0, 2), PointB: &b0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, seg.Window.Start, "Offsets before the anchor clamp to zero")
	assert.Equal(t, 30.0, *seg.Window.End)
	assert.Equal(t, 1, seg.StartIndex, "Path starts at the anchor along with the window")
	assert.Equal(t, 3, seg.EndIndex)

	position, ok := seg.Interpolator().Position(0, 60)
	require.True(t, ok)
	assert.Equal(t, pt(0, 0), position)
}

func TestBuild_PointBBeforeAnchorKeepsMarkerOnVideo(t *testing.T) {
	b := newBuilder(
		poi("B", 90, pt(0, 0)),
		video("V", 100, pt(0, 1)),
		poi("A", 110, pt(0, 2)),
	)

	pointB := pt(0, 0)
	seg, err := b.Build(Selection{PointA: pt(0, 2), PointB: &pointB})
	require.NoError(t, err)
	assert.Equal(t, "V", seg.Anchor.ID)
	assert.Equal(t, 0.0, seg.Window.Start)
	assert.Equal(t, 10.0, *seg.Window.End)
	assert.Equal(t, []geo.Point{pt(0, 1), pt(0, 2)}, seg.Path.Points())

	interp := seg.Interpolator()
	position, ok := interp.Position(0, 60)
	require.True(t, ok)
	assert.Equal(t, pt(0, 1), position)

	position, ok = interp.Position(5, 60)
	require.True(t, ok)
	assert.InDelta(t, 0, position.Latitude, 1e-9)
	assert.InDelta(t, 1.5, position.Longitude, 1e-6)

	position, ok = interp.Position(10, 60)
	require.True(t, ok)
	assert.Equal(t, pt(0, 2), position)
}

func TestBuild_PlaylistStartsAtAnchorAmongTiedVideos(t *testing.T) {
	b := newBuilder(
		video("V1", 100, pt(0, 0)),
		video("V2", 100, pt(0, 0.5)),
		poi("P", 110, pt(0, 1)),
		video("V3", 200, pt(0, 2)),
	)

	seg, err := b.Build(Selection{PointA: pt(0, 1)})
	require.NoError(t, err)
	assert.Equal(t, "V2", seg.Anchor.ID)
	require.Len(t, seg.Playlist, 2)
	assert.Equal(t, "V2", seg.Playlist[0].ID)
	assert.Equal(t, "V3", seg.Playlist[1].ID)
	assert.Equal(t, 10.0, seg.Window.Start)
	assert.Equal(t, 100.0, seg.ClipStartOffset(1))
}

func TestBuild_SamePointDowngrades(t *testing.T) {
	b := newBuilder(
		video("E1", 100, pt(0, 0)),
		poi("E2", 110, pt(0, 1)),
		video("E3", 200, pt(0, 2)),
	)

	again := pt(0, 1.000001)
	seg, err := b.Build(Selection{PointA: pt(0, 1), PointB: &again})
	require.NoError(t, err)
	assert.True(t, seg.SamePoint)
	assert.Nil(t, seg.PointB)
	assert.Nil(t, seg.Window.End)
	assert.Equal(t, 2, seg.EndIndex)
}

func TestBuild_DuplicateCoordinatesAreSamePoint(t *testing.T) {
	b := newBuilder(
		video("V1", 100, pt(0, 0)),
		poi("P1", 110, pt(0, 1)),
		poi("P1-again", 150, pt(0, 1)),
		video("V2", 200, pt(0, 2)),
	)

	other := pt(0, 1)
	seg, err := b.Build(Selection{PointA: pt(0, 1), PointB: &other})
	require.NoError(t, err)
	assert.True(t, seg.SamePoint)
	assert.Equal(t, "P1", seg.PointA.ID, "Ties resolve to the earliest event")
}

func TestBuild_NoAnchorVideo(t *testing.T) {
	b := newBuilder(
		poi("P0", 50, pt(0, 0)),
		video("V1", 100, pt(0, 1)),
	)

	_, err := b.Build(Selection{PointA: pt(0, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAnchorVideo)

	event, ok := b.Resolve(pt(0, 0.1))
	require.True(t, ok)
	assert.Equal(t, "P0", event.ID)
}

func TestBuild_EmptyTrajectory(t *testing.T) {
	_, err := newBuilder().Build(Selection{PointA: pt(0, 0)})
	assert.ErrorIs(t, err, ErrEmptyTrajectory)
}

func TestBuild_MalformedVideoCannotAnchor(t *testing.T) {
	broken := video("V0", 100, pt(0, 0))
	broken.Media = survey.ParseMediaString(`["unterminated`)

	b := newBuilder(broken, poi("P1", 110, pt(0, 1)))
	_, err := b.Build(Selection{PointA: pt(0, 1)})
	assert.ErrorIs(t, err, ErrNoAnchorVideo)
}

func TestBuild_DegenerateOrderExtendsToEnd(t *testing.T) {
	// No video follows the anchor, so the end index falls before point A
	b := newBuilder(
		video("V1", 100, pt(0, 0)),
		poi("P1", 110, pt(0, 1)),
		poi("P2", 120, pt(0, 2)),
	)

	seg, err := b.Build(Selection{PointA: pt(0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, seg.StartIndex)
	assert.Equal(t, 2, seg.EndIndex)
	require.Len(t, seg.Playlist, 1)
}

func TestBuild_DegenerateOrderStepsBackTwo(t *testing.T) {
	// Anchor is the last position, so nothing lies beyond it
	b := newBuilder(
		poi("P0", 50, pt(0, 0)),
		poi("P1", 60, pt(0, 1)),
		video("V1", 100, pt(0, 2)),
	)

	seg, err := b.Build(Selection{PointA: pt(0, 2)})
	require.NoError(t, err)
	assert.Equal(t, "V1", seg.Anchor.ID)
	assert.Equal(t, 0.0, seg.Window.Start)
	assert.Equal(t, 0, seg.StartIndex)
	assert.Equal(t, 2, seg.EndIndex)
	assert.Equal(t, 3, seg.Path.Len())
}

func TestBuild_DegenerateOrderCollapsesShortTracks(t *testing.T) {
	b := newBuilder(
		poi("P0", 50, pt(0, 0)),
		video("V1", 100, pt(0, 1)),
	)

	seg, err := b.Build(Selection{PointA: pt(0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, seg.StartIndex)
	assert.Equal(t, 1, seg.EndIndex)

	position, ok := seg.Interpolator().Position(42, 60)
	require.True(t, ok)
	assert.Equal(t, pt(0, 1), position, "Single-point slices show a static marker")
}

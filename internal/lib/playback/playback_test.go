package playback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
)

func ptr(v float64) *float64 { return &v }

func TestPathSlice_CoincidentPoints(t *testing.T) {
	p := geo.Point{Latitude: 12.9716, Longitude: 77.5946}
	path := NewPathSlice([]geo.Point{p, p})

	for _, progress := range []float64{0, 0.25, 0.5, 1} {
		got, ok := path.PositionAt(progress)
		require.True(t, ok)
		assert.Equal(t, p, got)
	}
}

func TestPathSlice_EvenlySpacedMidpoint(t *testing.T) {
	points := []geo.Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 0.01},
		{Latitude: 0, Longitude: 0.02},
	}
	path := NewPathSlice(points)

	got, ok := path.PositionAt(0.5)
	require.True(t, ok)
	assert.InDelta(t, points[1].Latitude, got.Latitude, 1e-9)
	assert.InDelta(t, points[1].Longitude, got.Longitude, 1e-9)
}

func TestPathSlice_WeightsByDistanceNotIndex(t *testing.T) {
	// First hop is 1/4 of the total, second hop 3/4
	path := NewPathSlice([]geo.Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 0.01},
		{Latitude: 0, Longitude: 0.04},
	})

	got, ok := path.PositionAt(0.5)
	require.True(t, ok)
	assert.InDelta(t, 0.02, got.Longitude, 1e-6, "Half the distance lies inside the second hop")

	got, _ = path.PositionAt(0.25)
	assert.InDelta(t, 0.01, got.Longitude, 1e-6)

	assert.InDelta(t, 4*geo.DistanceMeters(geo.Point{}, geo.Point{Longitude: 0.01}), path.TotalDistance(), 1)
}

func TestPathSlice_EdgeCases(t *testing.T) {
	single := geo.Point{Latitude: 1, Longitude: 2}
	path := NewPathSlice([]geo.Point{single})
	got, ok := path.PositionAt(0.7)
	require.True(t, ok)
	assert.Equal(t, single, got)

	_, ok = NewPathSlice(nil).PositionAt(0.5)
	assert.False(t, ok, "Empty slice has no position")

	var missing *PathSlice
	assert.True(t, missing.Empty())

	line := NewPathSlice([]geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 1}})
	start, _ := line.PositionAt(-3)
	end, _ := line.PositionAt(7)
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 0}, start)
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 1}, end)
}

func TestPathSlice_RendererOutputs(t *testing.T) {
	path := NewPathSlice([]geo.Point{
		{Latitude: 38.5, Longitude: -120.2},
		{Latitude: 40.7, Longitude: -120.95},
		{Latitude: 43.252, Longitude: -126.453},
	})

	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", path.EncodedPolyline())

	bound := path.Bound()
	assert.Equal(t, -126.453, bound.Min[0])
	assert.Equal(t, 38.5, bound.Min[1])
	assert.Equal(t, -120.2, bound.Max[0])
	assert.Equal(t, 43.252, bound.Max[1])

	feature := path.Feature()
	assert.Equal(t, 3, feature.Properties["points"])

	data, err := json.Marshal(feature)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"LineString"`)
}

func TestWindow_Progress(t *testing.T) {
	single := Window{Start: 10}
	assert.Equal(t, 0.0, single.Progress(10, 110))
	assert.Equal(t, 0.5, single.Progress(60, 110))
	assert.Equal(t, 1.0, single.Progress(500, 110))
	assert.Equal(t, 0.0, single.Progress(2, 110))
	assert.False(t, single.Reached(1000))

	bounded := Window{Start: 10, End: ptr(30)}
	assert.Equal(t, 0.25, bounded.Progress(15, 999))
	assert.False(t, bounded.Reached(29.9))
	assert.True(t, bounded.Reached(30))

	degenerate := Window{Start: 10, End: ptr(10)}
	assert.Equal(t, 0.0, degenerate.Progress(9, 0))
	assert.Equal(t, 1.0, degenerate.Progress(10, 0))
}

func TestWindow_ProgressBeforeDurationKnown(t *testing.T) {
	single := Window{Start: 10}
	assert.Equal(t, 0.0, single.Progress(12, 0), "Players report zero duration before metadata loads")
	assert.Equal(t, 0.0, single.Progress(12, -1))
	assert.Equal(t, 0.0, single.Progress(12, 8), "Stream not yet known to reach the start")
	assert.Equal(t, 0.0, single.Progress(12, 10))

	path := NewPathSlice([]geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 1}})
	position, ok := NewInterpolator(path, single).Position(12, 0)
	require.True(t, ok)
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 0}, position)
}

func TestWindow_OffsetForProgress(t *testing.T) {
	bounded := Window{Start: 10, End: ptr(30)}
	assert.Equal(t, 20.0, bounded.OffsetForProgress(0.5, 0))
	assert.Equal(t, 30.0, bounded.OffsetForProgress(2, 0))

	single := Window{Start: 10}
	assert.Equal(t, 60.0, single.OffsetForProgress(0.5, 110))
	assert.Equal(t, 10.0, single.OffsetForProgress(0.5, 5), "Stream shorter than start pins to start")
}

func TestInterpolator_Position(t *testing.T) {
	path := NewPathSlice([]geo.Point{
		{Latitude: 0, Longitude: 1},
		{Latitude: 0, Longitude: 2},
	})
	in := NewInterpolator(path, Window{Start: 10})

	got, ok := in.Position(10, 110)
	require.True(t, ok)
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 1}, got)

	got, _ = in.Position(60, 110)
	assert.InDelta(t, 1.5, got.Longitude, 1e-9)

	got, _ = in.Position(110, 110)
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 2}, got)
}

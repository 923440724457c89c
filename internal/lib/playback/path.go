// Package playback maps video playback progress onto a geographic position
// along a selected stretch of a survey trajectory.
package playback

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
)

// PathSlice is an ordered run of trajectory positions with its cumulative
// geodesic distances computed once at construction.
type PathSlice struct {
	points     []geo.Point
	cumulative []float64
	encoded    string
}

// NewPathSlice copies points and precomputes the distance cache
func NewPathSlice(points []geo.Point) *PathSlice {
	owned := make([]geo.Point, len(points))
	copy(owned, points)
	slice := &PathSlice{
		points:     owned,
		cumulative: geo.CumulativeDistances(owned),
	}
	if len(owned) > 0 {
		slice.encoded = geo.NewGeoUtils().EncodePolyline(owned)
	}
	return slice
}

// Points returns the slice positions. Callers must not modify them.
func (p *PathSlice) Points() []geo.Point {
	return p.points
}

// Len returns the number of positions
func (p *PathSlice) Len() int {
	return len(p.points)
}

// Empty reports whether the slice has no positions at all
func (p *PathSlice) Empty() bool {
	return p == nil || len(p.points) == 0
}

// TotalDistance returns the geodesic length of the slice in meters
func (p *PathSlice) TotalDistance() float64 {
	if len(p.cumulative) == 0 {
		return 0
	}
	return p.cumulative[len(p.cumulative)-1]
}

// PositionAt returns the coordinate at progress (clamped to [0,1]) of the
// slice's geodesic length. Positions between waypoints are interpolated by
// distance, not by index, since waypoints are unevenly spaced.
func (p *PathSlice) PositionAt(progress float64) (geo.Point, bool) {
	if p.Empty() {
		return geo.Point{}, false
	}
	if len(p.points) == 1 {
		return p.points[0], true
	}

	total := p.TotalDistance()
	if total == 0 {
		return p.points[0], true
	}

	target := clamp(progress, 0, 1) * total

	// First cumulative entry at or beyond target; the segment ends there
	i := sort.SearchFloat64s(p.cumulative, target)
	if i == 0 {
		return p.points[0], true
	}
	if i >= len(p.points) {
		return p.points[len(p.points)-1], true
	}

	segmentStart := p.cumulative[i-1]
	segmentLength := p.cumulative[i] - segmentStart
	if segmentLength == 0 {
		return p.points[i], true
	}

	return geo.Interpolate(p.points[i-1], p.points[i], (target-segmentStart)/segmentLength), true
}

// EncodedPolyline returns the slice as a Google encoded polyline
func (p *PathSlice) EncodedPolyline() string {
	return p.encoded
}

// LineString converts the slice to an orb geometry (lon, lat order)
func (p *PathSlice) LineString() orb.LineString {
	ls := make(orb.LineString, len(p.points))
	for i, pt := range p.points {
		ls[i] = orb.Point{pt.Longitude, pt.Latitude}
	}
	return ls
}

// Bound returns the bounding box of the slice for fit-to-bounds rendering
func (p *PathSlice) Bound() orb.Bound {
	return p.LineString().Bound()
}

// Feature returns the slice as a GeoJSON feature for the map renderer
func (p *PathSlice) Feature() *geojson.Feature {
	feature := geojson.NewFeature(p.LineString())
	feature.Properties["distance_meters"] = p.TotalDistance()
	feature.Properties["points"] = len(p.points)
	return feature
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

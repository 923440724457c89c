package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two valid points
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !IsValid(p1) || !IsValid(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return DistanceMeters(p1, p2), nil
}

// RoundedEquals compares two points after rounding to precision decimal degrees
func (g *geoUtils) RoundedEquals(p1, p2 Point, precision int) bool {
	return RoundedEquals(p1, p2, precision)
}

// NearestIndex returns the index of the point closest to target. Ties resolve
// to the lowest index.
func (g *geoUtils) NearestIndex(target Point, points []Point) (int, error) {
	if len(points) == 0 {
		return -1, errors.New("no points to search")
	}

	best := 0
	bestDistance := math.Inf(1)
	for i, p := range points {
		d := PlanarDistanceSquared(target, p)
		if d < bestDistance {
			bestDistance = d
			best = i
		}
	}
	return best, nil
}

// CumulativeDistances returns the running geodesic distance along points
func (g *geoUtils) CumulativeDistances(points []Point) []float64 {
	return CumulativeDistances(points)
}

// EncodePolyline encodes points using the Google polyline algorithm
func (g *geoUtils) EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes Google polyline string to point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !IsValid(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// DistanceMeters calculates great-circle distance using the Haversine formula.
// Coordinates are not validated.
func DistanceMeters(p1, p2 Point) float64 {
	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)

	// Rounding can push a slightly outside [0, 1] for antipodal points
	a = math.Max(0, math.Min(1, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// RoundedEquals compares coordinates rounded to precision decimal degrees
func RoundedEquals(p1, p2 Point, precision int) bool {
	if precision < 0 {
		precision = DefaultPrecision
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(p1.Latitude*scale) == math.Round(p2.Latitude*scale) &&
		math.Round(p1.Longitude*scale) == math.Round(p2.Longitude*scale)
}

// PlanarDistanceSquared is the squared Euclidean distance on raw degrees
func PlanarDistanceSquared(p1, p2 Point) float64 {
	dlat := p1.Latitude - p2.Latitude
	dlon := p1.Longitude - p2.Longitude
	return dlat*dlat + dlon*dlon
}

// Interpolate calculates a point along the straight line between two points.
// t=0 returns start, t=1 returns end.
func Interpolate(start, end Point, t float64) Point {
	// Survey waypoints are metres apart, so linear interpolation is accurate enough
	lat := start.Latitude + t*(end.Latitude-start.Latitude)
	lon := start.Longitude + t*(end.Longitude-start.Longitude)

	return Point{Latitude: lat, Longitude: lon}
}

// CumulativeDistances returns the running geodesic sum along points
func CumulativeDistances(points []Point) []float64 {
	if len(points) == 0 {
		return nil
	}

	distances := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		distances[i] = distances[i-1] + DistanceMeters(points[i-1], points[i])
	}
	return distances
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !IsValid(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// IsValid validates latitude and longitude values
func IsValid(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180 &&
		!math.IsNaN(point.Latitude) && !math.IsNaN(point.Longitude)
}

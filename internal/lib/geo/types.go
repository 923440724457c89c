package geo

// DefaultPrecision is the number of decimal degrees used when comparing points
// for equality (~1.1m at the equator)
const DefaultPrecision = 5

// EarthRadiusMeters is the mean Earth radius used by the haversine formula
const EarthRadiusMeters = 6371000

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Compare two points rounded to precision decimal degrees
	RoundedEquals(p1, p2 Point, precision int) bool

	// Index of the point closest to target using planar distance on raw degrees
	NearestIndex(target Point, points []Point) (int, error)

	// Running geodesic distance along points, first element is 0
	CumulativeDistances(points []Point) []float64

	// Encode a point sequence as a Google polyline string
	EncodePolyline(points []Point) string

	// Decode Google polyline string to point sequence
	DecodePolyline(encoded string) ([]Point, error)
}

// NewGeoUtils is implemented in geo.go

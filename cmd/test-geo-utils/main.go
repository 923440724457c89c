package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/playback"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	geoUtils := geo.NewGeoUtils()

	switch command {
	case "point-distance":
		handlePointDistance(geoUtils)
	case "same-point":
		handleSamePoint(geoUtils)
	case "nearest":
		handleNearest(geoUtils)
	case "encode-polyline":
		handleEncodePolyline(geoUtils)
	case "decode-polyline":
		handleDecodePolyline(geoUtils)
	case "interpolate":
		handleInterpolate(geoUtils)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 12.971599 --lng1 77.594566 --lat2 12.973010 --lng2 77.595900")
		fmt.Println("  (Distance between two survey waypoints)")
		os.Exit(1)
	}

	p1 := geo.Point{Latitude: *lat1, Longitude: *lng1}
	p2 := geo.Point{Latitude: *lat2, Longitude: *lng2}

	distance, err := geoUtils.PointToPoint(p1, p2)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %.2f meters (%.3f km)\n", distance, distance/1000)
}

func handleSamePoint(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("same-point", flag.ExitOnError)
	points := fs.String("points", "", "Two coordinate pairs: \"lat,lng;lat,lng\"")
	precision := fs.Int("precision", geo.DefaultPrecision, "Decimal places to compare")

	fs.Parse(os.Args[2:])

	parsed, err := parseCoordinatePairs(*points)
	if err != nil || len(parsed) != 2 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils same-point --points \"12.971599,77.594566;12.971601,77.594566\" --precision 5")
		os.Exit(1)
	}

	fmt.Printf("Rounded comparison at %d decimals:\n", *precision)
	fmt.Printf("  Same point: %t\n", geoUtils.RoundedEquals(parsed[0], parsed[1], *precision))
}

func handleNearest(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("nearest", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of the picked point")
	lng := fs.Float64("lng", 0, "Longitude of the picked point")
	polylineStr := fs.String("polyline", "", "Encoded polyline of the track")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils nearest --lat 38.5 --lng -120.2 --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		fmt.Println("  (Which track point a map click resolves to)")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	target := geo.Point{Latitude: *lat, Longitude: *lng}
	idx, err := geoUtils.NearestIndex(target, points)
	if err != nil {
		log.Fatalf("Error resolving nearest point: %v", err)
	}

	distance, _ := geoUtils.PointToPoint(target, points[idx])
	fmt.Printf("Nearest track point:\n")
	fmt.Printf("  Index: %d of %d\n", idx, len(points))
	fmt.Printf("  Point: (%.6f, %.6f)\n", points[idx].Latitude, points[idx].Longitude)
	fmt.Printf("  Distance from click: %.2f meters\n", distance)
}

func handleEncodePolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("encode-polyline", flag.ExitOnError)
	points := fs.String("points", "", "Coordinate pairs: \"lat,lng;lat,lng;...\"")

	fs.Parse(os.Args[2:])

	parsed, err := parseCoordinatePairs(*points)
	if err != nil {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils encode-polyline --points \"38.5,-120.2;40.7,-120.95;43.252,-126.453\"")
		os.Exit(1)
	}

	cumulative := geoUtils.CumulativeDistances(parsed)
	fmt.Printf("Encoded polyline:\n")
	fmt.Printf("  %s\n", geoUtils.EncodePolyline(parsed))
	fmt.Printf("  Points: %d\n", len(parsed))
	fmt.Printf("  Length: %.2f meters\n", cumulative[len(cumulative)-1])
}

func handleDecodePolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline string to decode")
	verbose := fs.Bool("verbose", false, "Show all decoded points")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"encoded_string\" --verbose")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	fmt.Printf("Polyline decoded successfully:\n")
	fmt.Printf("  Input: %s\n", *polylineStr)
	fmt.Printf("  Points: %d\n", len(points))

	if len(points) > 0 {
		fmt.Printf("  Start: (%.6f, %.6f)\n", points[0].Latitude, points[0].Longitude)
		if len(points) > 1 {
			fmt.Printf("  End: (%.6f, %.6f)\n", points[len(points)-1].Latitude, points[len(points)-1].Longitude)
		}
	}

	if *verbose && len(points) > 0 {
		cumulative := geoUtils.CumulativeDistances(points)
		fmt.Printf("  All points:\n")
		for i, point := range points {
			fmt.Printf("    %d: (%.6f, %.6f) at %.1fm\n", i+1, point.Latitude, point.Longitude, cumulative[i])
		}
	}
}

func handleInterpolate(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("interpolate", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline of the path slice")
	steps := fs.Int("steps", 10, "Number of progress steps to print")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" || *steps < 1 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils interpolate --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\" --steps 4")
		fmt.Println("  (Marker positions along a path slice at evenly spaced progress)")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	path := playback.NewPathSlice(points)
	fmt.Printf("Path slice: %d points, %.2f meters\n", path.Len(), path.TotalDistance())
	for i := 0; i <= *steps; i++ {
		progress := float64(i) / float64(*steps)
		position, ok := path.PositionAt(progress)
		if !ok {
			log.Fatal("Path slice is empty")
		}
		fmt.Printf("  %5.1f%%: (%.6f, %.6f)\n", progress*100, position.Latitude, position.Longitude)
	}
}

func printUsage() {
	fmt.Printf(`test-geo-utils - Geographic utility testing tool

USAGE:
    test-geo-utils <command> [options]

COMMANDS:
    point-distance      Calculate great-circle distance between two points
    same-point          Compare two points at a rounding precision
    nearest             Resolve a click to the nearest point of a track
    encode-polyline     Encode coordinates as a Google polyline string
    decode-polyline     Decode Google polyline string to coordinates
    interpolate         Print marker positions along a path slice
    help                Show this help message

EXAMPLES:
    # Distance between two survey waypoints
    test-geo-utils point-distance --lat1 12.971599 --lng1 77.594566 --lat2 12.973010 --lng2 77.595900

    # Would these two clicks count as the same waypoint?
    test-geo-utils same-point --points "12.971599,77.594566;12.971601,77.594566"

    # Decode polyline to see coordinates
    test-geo-utils decode-polyline --polyline "encoded_string" --verbose
`)
}

// Helper function to parse coordinate pairs from string
func parseCoordinatePairs(coordStr string) ([]geo.Point, error) {
	if coordStr == "" {
		return nil, fmt.Errorf("empty coordinate string")
	}

	pairs := strings.Split(coordStr, ";")
	points := make([]geo.Point, 0, len(pairs))

	for _, pair := range pairs {
		coords := strings.Split(strings.TrimSpace(pair), ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid coordinate pair: %s", pair)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", coords[0])
		}

		lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", coords[1])
		}

		point, err := geo.NewPoint(lat, lng)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	return points, nil
}

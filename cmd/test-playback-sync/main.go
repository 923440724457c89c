package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dpup/fibersurvey/server/internal/cache"
	"github.com/dpup/fibersurvey/server/internal/clients/dashboard"
	"github.com/dpup/fibersurvey/server/internal/config"
	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/selection"
	"github.com/dpup/fibersurvey/server/internal/services"
)

// consoleRenderer prints overlay updates instead of drawing them
type consoleRenderer struct{}

func (consoleRenderer) ShowSelection(ctx context.Context, state selection.State) {
	fmt.Printf("[map] phase=%s", state.Phase)
	if state.PointA != nil {
		fmt.Printf(" pointA=%s", state.PointA.ID)
	}
	if state.Segment != nil && state.Segment.PointB != nil {
		fmt.Printf(" pointB=%s", state.Segment.PointB.ID)
	}
	if state.Reason != selection.ReasonNone {
		fmt.Printf(" reason=%s", state.Reason)
	}
	fmt.Println()
}

func (consoleRenderer) MoveMarker(ctx context.Context, position geo.Point) {
	fmt.Printf("[map] marker (%.6f, %.6f)\n", position.Latitude, position.Longitude)
}

func (consoleRenderer) ClearMarker(ctx context.Context) {
	fmt.Println("[map] marker cleared")
}

func (consoleRenderer) ReportError(ctx context.Context, reason selection.Reason, err error) {
	fmt.Printf("[map] problem: %s (%v)\n", reason, err)
}

// consolePlayer prints player commands instead of playing video
type consolePlayer struct{}

func (consolePlayer) LoadPlaylist(ctx context.Context, segmentID uuid.UUID, clipURLs []string) error {
	fmt.Printf("[player] playlist %s: %d clips\n", segmentID, len(clipURLs))
	for i, url := range clipURLs {
		fmt.Printf("           %d: %s\n", i, url)
	}
	return nil
}

func (consolePlayer) Seek(ctx context.Context, clipIndex int, offsetSeconds float64) error {
	fmt.Printf("[player] seek clip %d to %.1fs\n", clipIndex, offsetSeconds)
	return nil
}

func (consolePlayer) Pause(ctx context.Context) error {
	fmt.Println("[player] paused")
	return nil
}

func main() {
	_ = godotenv.Load()

	surveyID := flag.String("survey", "", "Survey ID to load from the data directory")
	dataDir := flag.String("data-dir", "", "Override the configured survey data directory")
	pointA := flag.String("a", "", "Point A as \"lat,lng\"")
	pointB := flag.String("b", "", "Optional point B as \"lat,lng\"")
	step := flag.Float64("step", 5, "Seconds between simulated playback ticks")
	duration := flag.Float64("duration", 120, "Assumed length of each clip in seconds")
	showGeoJSON := flag.Bool("geojson", false, "Print the path slice as a GeoJSON feature")
	flag.Parse()

	if *surveyID == "" || *pointA == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-playback-sync --survey route-17 --a \"12.972001,77.595002\" --b \"12.972450,77.595380\"")
		fmt.Println("  test-playback-sync --survey route-17 --a \"12.972001,77.595002\" --geojson")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Using default configuration: %v", err)
		cfg = config.DefaultConfig()
	}
	if *dataDir != "" {
		cfg.Surveys.DataDir = *dataDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	surveyCache := cache.NewCache()
	cleanupDone := surveyCache.StartPeriodicCleanup(ctx, cfg.Cache.CleanupInterval)
	defer func() {
		cancel()
		<-cleanupDone
	}()

	service := services.NewReviewService(
		dashboard.NewFileProvider(cfg.Surveys.DataDir),
		surveyCache,
		cfg,
		consoleRenderer{},
		consolePlayer{},
	)

	loaded, err := service.LoadSurvey(ctx, *surveyID)
	if err != nil {
		log.Fatalf("Failed to load survey: %v", err)
	}
	stats := loaded.Index.Stats()
	fmt.Printf("Survey %s: %d events, %d videos, %d malformed video references, %d track points\n",
		*surveyID, stats.Events, stats.Videos, stats.MalformedMedia, loaded.Track.Len())

	for _, raw := range []string{*pointA, *pointB} {
		if raw == "" {
			continue
		}
		point, err := parsePoint(raw)
		if err != nil {
			log.Fatalf("Invalid point %q: %v", raw, err)
		}
		if _, err := service.PickWaypoint(ctx, point); err != nil {
			log.Fatalf("Failed to pick waypoint: %v", err)
		}
	}

	state := service.CurrentState()
	if !state.Playable() {
		fmt.Printf("Nothing to play (phase=%s reason=%s)\n", state.Phase, state.Reason)
		return
	}

	seg := state.Segment
	fmt.Printf("Segment %s: anchor=%s window=[%.1fs, ", seg.ID, seg.Anchor.ID, seg.Window.Start)
	if seg.Window.HasEnd() {
		fmt.Printf("%.1fs]", *seg.Window.End)
	} else {
		fmt.Printf("end of stream]")
	}
	fmt.Printf(" path=%d points %.1fm polyline=%s\n", seg.Path.Len(), seg.Path.TotalDistance(), seg.Path.EncodedPolyline())

	if *showGeoJSON {
		feature, err := json.MarshalIndent(seg.Path.Feature(), "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode GeoJSON: %v", err)
		}
		fmt.Println(string(feature))
	}

	simulate(ctx, service, seg.ID, len(seg.Playlist), seg.Window.Start, *step, *duration)
}

// simulate replays player ticks through the playlist until the window end
// pauses playback or the clips run out
func simulate(ctx context.Context, service *services.ReviewService, segmentID uuid.UUID, clips int, start, step, duration float64) {
	clip, t := 0, start
	for clip < clips {
		service.OnPlaybackTick(ctx, services.Tick{SegmentID: segmentID, ClipIndex: clip, Time: t, Duration: duration})
		if _, paused := service.PlaybackPosition(); paused {
			return
		}

		t += step
		if t <= duration {
			continue
		}

		advanced, err := service.OnClipEnded(ctx, clip)
		if err != nil {
			log.Fatalf("Failed to advance playlist: %v", err)
		}
		if !advanced {
			return
		}
		clip, t = clip+1, 0
	}
}

func parsePoint(raw string) (geo.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected \"lat,lng\"")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude: %w", err)
	}
	return geo.NewPoint(lat, lng)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	prefaberrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/fibersurvey/server/internal/cache"
	"github.com/dpup/fibersurvey/server/internal/clients/dashboard"
	"github.com/dpup/fibersurvey/server/internal/config"
	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/segment"
	"github.com/dpup/fibersurvey/server/internal/lib/selection"
)

var (
	ErrNoSurveyLoaded = errors.New("no survey loaded")
	ErrNoSegment      = errors.New("no playable segment selected")
)

// Renderer draws the map overlay. Implementations must not block.
type Renderer interface {
	// ShowSelection redraws markers and the path slice for a state
	ShowSelection(ctx context.Context, state selection.State)
	// MoveMarker places the playback marker
	MoveMarker(ctx context.Context, position geo.Point)
	// ClearMarker removes the playback marker
	ClearMarker(ctx context.Context)
	// ReportError shows a problem to the operator
	ReportError(ctx context.Context, reason selection.Reason, err error)
}

// Player controls the video player
type Player interface {
	LoadPlaylist(ctx context.Context, segmentID uuid.UUID, clipURLs []string) error
	Seek(ctx context.Context, clipIndex int, offsetSeconds float64) error
	Pause(ctx context.Context) error
}

// Tick is a playback time update from the player. Time is the position in
// seconds within clip ClipIndex, and Duration is that clip's length.
type Tick struct {
	SegmentID uuid.UUID
	ClipIndex int
	Time      float64
	Duration  float64
}

// ReviewService ties the selection workflow to the map and the player for one
// operator session
type ReviewService struct {
	provider dashboard.Provider
	cache    *cache.Cache
	config   *config.Config
	renderer Renderer
	player   Player

	mu       sync.Mutex
	surveyID string
	loaded   *cache.LoadedSurvey
	machine  *selection.Machine
	clip     int
	paused   bool
}

// NewReviewService creates a new ReviewService
func NewReviewService(provider dashboard.Provider, cache *cache.Cache, config *config.Config, renderer Renderer, player Player) *ReviewService {
	return &ReviewService{
		provider: provider,
		cache:    cache,
		config:   config,
		renderer: renderer,
		player:   player,
	}
}

// LoadSurvey makes surveyID the active survey, discarding any selection. The
// trajectory and its indexes come from the cache when fresh.
func (s *ReviewService) LoadSurvey(ctx context.Context, surveyID string) (*cache.LoadedSurvey, error) {
	loaded, ok := s.cache.Get(surveyID)
	if ok {
		logging.Debugw(ctx, "Survey served from cache", "survey_id", surveyID)
	} else {
		trajectory, err := s.provider.LoadTrajectory(ctx, surveyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load survey %s: %w", surveyID, err)
		}
		loaded = cache.NewLoadedSurvey(trajectory, s.config.Sync.Precision)
		s.cache.Set(surveyID, loaded, s.config.Cache.TTL, "dashboard")

		stats := loaded.Index.Stats()
		logging.Infow(ctx, "Survey loaded",
			"survey_id", surveyID, "events", stats.Events, "videos", stats.Videos, "track_points", loaded.Track.Len())
		if stats.MalformedMedia > 0 {
			logging.Warnw(ctx, "Survey has malformed video references",
				"survey_id", surveyID, "count", stats.MalformedMedia)
		}
	}

	builder := segment.NewBuilder(loaded.Track, loaded.Index, segment.Options{Precision: s.config.Sync.Precision})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.surveyID = surveyID
	s.loaded = loaded
	s.machine = selection.NewMachine(builder)
	s.clip = 0
	s.paused = false

	s.render(ctx, "ClearMarker", func() { s.renderer.ClearMarker(ctx) })
	return loaded, nil
}

// PickWaypoint handles a waypoint click on the map. The first click picks
// point A, the next one point B; a click after that starts a new selection.
func (s *ReviewService) PickWaypoint(ctx context.Context, point geo.Point) (selection.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine == nil {
		return selection.State{}, ErrNoSurveyLoaded
	}

	state := s.machine.State()
	var effects []selection.Effect
	switch {
	case state.Phase == selection.PhasePickingA || state.Phase == selection.PhasePickingB:
	case state.Phase == selection.PhaseHavePointA && state.Playable():
		effects = append(effects, s.machine.Apply(selection.BeginPickB())...)
	default:
		effects = append(effects, s.machine.Apply(selection.BeginPickA())...)
	}
	effects = append(effects, s.machine.Apply(selection.Click(point))...)

	state = s.machine.State()
	logging.Debugw(ctx, "Waypoint picked",
		"survey_id", s.surveyID, "phase", state.Phase.String(), "reason", string(state.Reason))

	return state, s.applyEffects(ctx, effects)
}

// ResetSelection discards the current selection
func (s *ReviewService) ResetSelection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine == nil {
		return ErrNoSurveyLoaded
	}
	return s.applyEffects(ctx, s.machine.Apply(selection.Reset()))
}

// CurrentState returns the selection state, idle when no survey is loaded
func (s *ReviewService) CurrentState() selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine == nil {
		return selection.State{Phase: selection.PhaseIdle}
	}
	return s.machine.State()
}

// OnPlaybackTick moves the marker to the position matching the player's time
// and pauses at the end of a two-point window. Ticks for a segment that is no
// longer current, or for a clip outside its playlist, are ignored.
func (s *ReviewService) OnPlaybackTick(ctx context.Context, tick Tick) (geo.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg := s.currentSegment()
	if seg == nil || seg.ID != tick.SegmentID {
		return geo.Point{}, false
	}
	if tick.ClipIndex < 0 || tick.ClipIndex >= len(seg.Playlist) {
		logging.Debugw(ctx, "Ignoring tick for clip outside playlist",
			"segment_id", seg.ID.String(), "clip_index", tick.ClipIndex, "clips", len(seg.Playlist))
		return geo.Point{}, false
	}

	anchorTime := seg.ClipStartOffset(tick.ClipIndex) + tick.Time

	var position geo.Point
	var ok bool
	if !seg.Window.HasEnd() && tick.ClipIndex > 0 {
		// Past the anchor clip the path slice has been fully travelled
		position, ok = seg.Path.PositionAt(1)
	} else {
		position, ok = seg.Interpolator().Position(anchorTime, tick.Duration)
	}
	if !ok {
		return geo.Point{}, false
	}

	s.render(ctx, "MoveMarker", func() { s.renderer.MoveMarker(ctx, position) })

	if s.config.Sync.PauseAtBoundary && !s.paused && seg.Window.Reached(anchorTime) {
		s.paused = true
		if err := s.player.Pause(ctx); err != nil {
			logging.Errorw(ctx, "Failed to pause at window end", "error", err, "segment_id", seg.ID.String())
		}
	}

	return position, true
}

// OnClipEnded advances playback to the next clip of the playlist. It reports
// whether a next clip was started.
func (s *ReviewService) OnClipEnded(ctx context.Context, clipIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg := s.currentSegment()
	if seg == nil || !s.config.Sync.ContinuousPlaylist {
		return false, nil
	}

	next := clipIndex + 1
	if next >= len(seg.Playlist) {
		return false, nil
	}

	s.clip = next
	if err := s.player.Seek(ctx, next, 0); err != nil {
		return false, fmt.Errorf("failed to start clip %d: %w", next, err)
	}
	return true, nil
}

// SeekToProgress seeks the player to a fraction of the playback window.
// streamDuration is the anchor clip's length, used by single-point windows.
func (s *ReviewService) SeekToProgress(ctx context.Context, progress, streamDuration float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg := s.currentSegment()
	if seg == nil {
		return ErrNoSegment
	}

	offset := seg.Window.OffsetForProgress(progress, streamDuration)

	clip := 0
	for k := 1; k < len(seg.Playlist); k++ {
		if seg.ClipStartOffset(k) > offset {
			break
		}
		clip = k
	}

	s.clip = clip
	s.paused = false
	return s.player.Seek(ctx, clip, offset-seg.ClipStartOffset(clip))
}

// PlaybackPosition returns the playlist clip the player was last sent to and
// whether playback was paused at the window end
func (s *ReviewService) PlaybackPosition() (clip int, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clip, s.paused
}

func (s *ReviewService) currentSegment() *segment.Segment {
	if s.machine == nil {
		return nil
	}
	return s.machine.State().Segment
}

// applyEffects carries out transition effects in order. Player failures are
// logged and the first one is returned.
func (s *ReviewService) applyEffects(ctx context.Context, effects []selection.Effect) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	state := s.machine.State()
	for _, effect := range effects {
		switch effect.Kind {
		case selection.EffectSelectionChanged:
			s.render(ctx, "ShowSelection", func() { s.renderer.ShowSelection(ctx, state) })

		case selection.EffectClearMarker:
			s.render(ctx, "ClearMarker", func() { s.renderer.ClearMarker(ctx) })

		case selection.EffectLoadPlaylist:
			urls := make([]string, len(effect.Segment.Playlist))
			for i, clip := range effect.Segment.Playlist {
				urls[i] = clip.VideoURL()
			}
			if err := s.player.LoadPlaylist(ctx, effect.Segment.ID, urls); err != nil {
				logging.Errorw(ctx, "Failed to load playlist", "error", err, "segment_id", effect.Segment.ID.String())
				keep(fmt.Errorf("failed to load playlist: %w", err))
			}

		case selection.EffectSeek:
			s.clip = 0
			s.paused = false
			if err := s.player.Seek(ctx, 0, effect.Offset); err != nil {
				logging.Errorw(ctx, "Failed to seek", "error", err, "offset", effect.Offset)
				keep(fmt.Errorf("failed to seek: %w", err))
			}

		case selection.EffectReportError:
			logging.Warnw(ctx, "Selection problem",
				"survey_id", s.surveyID, "reason", string(effect.Reason), "error", effect.Err)
			s.render(ctx, "ReportError", func() { s.renderer.ReportError(ctx, effect.Reason, effect.Err) })
		}
	}
	return firstErr
}

// render calls into the renderer and logs any panic it raises
func (s *ReviewService) render(ctx context.Context, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := prefaberrors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Renderer: recovered from panic",
				"op", op, "error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()
	fn()
}

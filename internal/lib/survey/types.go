// Package survey models the geotagged events recorded during one fiber route
// survey run, and the position-ordered track derived from them.
package survey

import (
	"strings"
	"time"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
)

// EventType tags a survey event. Only VIDEO events carry playable media.
type EventType string

const (
	EventVideo          EventType = "VIDEO"
	EventFPOI           EventType = "FPOI"
	EventLandmark       EventType = "LANDMARK"
	EventRouteIndicator EventType = "ROUTE_INDICATOR"
	EventJointChamber   EventType = "JOINT_CHAMBER"
	EventKilometerStone EventType = "KILOMETER_STONE"
	EventSurveyStart    EventType = "SURVEY_START"
	EventSurveyEnd      EventType = "SURVEY_END"
	EventUnknown        EventType = "UNKNOWN"
)

var knownEventTypes = map[EventType]bool{
	EventVideo:          true,
	EventFPOI:           true,
	EventLandmark:       true,
	EventRouteIndicator: true,
	EventJointChamber:   true,
	EventKilometerStone: true,
	EventSurveyStart:    true,
	EventSurveyEnd:      true,
}

// ParseEventType maps a feed tag onto the closed set, case-insensitively.
// Spaces and dashes are accepted in place of underscores.
func ParseEventType(tag string) EventType {
	normalized := strings.ToUpper(strings.TrimSpace(tag))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if knownEventTypes[EventType(normalized)] {
		return EventType(normalized)
	}
	return EventUnknown
}

// SurveyEvent is one immutable record in a trajectory
type SurveyEvent struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UploadedAt time.Time `json:"uploaded_at"`
	Position   geo.Point `json:"position"`
	Type       EventType `json:"event_type"`

	// Media is the primary media field, FallbackMedia the nested one
	Media         MediaRef `json:"media"`
	FallbackMedia MediaRef `json:"fallback_media"`
}

// Timestamp returns the creation time, falling back to the upload time
func (e SurveyEvent) Timestamp() time.Time {
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt
	}
	return e.UploadedAt
}

// VideoURL returns the authoritative media reference: the first non-empty
// value of the primary field, then of the fallback field.
func (e SurveyEvent) VideoURL() string {
	if url := e.Media.First(); url != "" {
		return url
	}
	return e.FallbackMedia.First()
}

// MediaMalformed reports whether the event carries a media reference that
// could not be parsed and no usable value in either field.
func (e SurveyEvent) MediaMalformed() bool {
	if e.VideoURL() != "" {
		return false
	}
	return e.Media.Kind == MediaMalformed || e.FallbackMedia.Kind == MediaMalformed
}

// IsPlayableVideo reports whether the event can anchor video playback
func (e SurveyEvent) IsPlayableVideo() bool {
	return e.Type == EventVideo && e.VideoURL() != ""
}

// HasPosition reports whether the event has usable coordinates
func (e SurveyEvent) HasPosition() bool {
	return geo.IsValid(e.Position)
}

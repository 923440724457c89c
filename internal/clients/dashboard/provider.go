// Package dashboard loads survey trajectories exported from the survey
// dashboard and decodes its loosely typed event records.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/fibersurvey/server/internal/lib/geo"
	"github.com/dpup/fibersurvey/server/internal/lib/survey"
)

var (
	ErrSurveyNotFound  = errors.New("survey not found")
	ErrInvalidSurveyID = errors.New("invalid survey id")
)

// Provider supplies the trajectory of a survey
type Provider interface {
	LoadTrajectory(ctx context.Context, surveyID string) (survey.Trajectory, error)
}

// FileProvider reads exported surveys from <dir>/<surveyID>.json
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider rooted at dir
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// LoadTrajectory reads and decodes one survey export
func (p *FileProvider) LoadTrajectory(ctx context.Context, surveyID string) (survey.Trajectory, error) {
	if err := ctx.Err(); err != nil {
		return survey.Trajectory{}, err
	}

	if surveyID == "" || surveyID != filepath.Base(surveyID) || strings.HasPrefix(surveyID, ".") {
		return survey.Trajectory{}, fmt.Errorf("%w: %q", ErrInvalidSurveyID, surveyID)
	}

	f, err := os.Open(filepath.Join(p.dir, surveyID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return survey.Trajectory{}, fmt.Errorf("%w: %s", ErrSurveyNotFound, surveyID)
	}
	if err != nil {
		return survey.Trajectory{}, fmt.Errorf("failed to open survey %s: %w", surveyID, err)
	}
	defer f.Close()

	return Decode(f, surveyID)
}

// surveyDocument is the exported survey envelope
type surveyDocument struct {
	SurveyID string        `json:"surveyId"`
	Events   []eventRecord `json:"events"`
}

// eventRecord is one dashboard event as exported. Coordinates and times
// arrive as either strings or numbers.
type eventRecord struct {
	ID           string          `json:"id"`
	EventType    string          `json:"eventType"`
	CreatedTime  flexTime        `json:"createdTime"`
	UploadedTime flexTime        `json:"uploadedTime"`
	Latitude     *flexFloat      `json:"latitude"`
	Longitude    *flexFloat      `json:"longitude"`
	VideoURL     survey.MediaRef `json:"videoUrl"`
	VideoDetails *struct {
		VideoURL survey.MediaRef `json:"videoUrl"`
	} `json:"videoDetails"`
}

// Decode parses an export, which is either a {surveyId, events} document or
// a bare array of event records. defaultID names the survey when the
// document does not.
func Decode(r io.Reader, defaultID string) (survey.Trajectory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return survey.Trajectory{}, fmt.Errorf("failed to read survey: %w", err)
	}

	var doc surveyDocument
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &doc.Events)
	} else {
		err = json.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		return survey.Trajectory{}, fmt.Errorf("failed to decode survey: %w", err)
	}

	trajectory := survey.Trajectory{SurveyID: doc.SurveyID}
	if trajectory.SurveyID == "" {
		trajectory.SurveyID = defaultID
	}

	trajectory.Events = make([]survey.SurveyEvent, 0, len(doc.Events))
	for i, record := range doc.Events {
		trajectory.Events = append(trajectory.Events, record.toEvent(trajectory.SurveyID, i))
	}
	return trajectory, nil
}

func (r eventRecord) toEvent(surveyID string, ordinal int) survey.SurveyEvent {
	event := survey.SurveyEvent{
		ID:         r.ID,
		CreatedAt:  time.Time(r.CreatedTime),
		UploadedAt: time.Time(r.UploadedTime),
		Position:   geo.Point{Latitude: r.Latitude.value(), Longitude: r.Longitude.value()},
		Type:       survey.ParseEventType(r.EventType),
		Media:      r.VideoURL,
	}
	if event.ID == "" {
		event.ID = fmt.Sprintf("%s-%d", surveyID, ordinal)
	}
	if r.VideoDetails != nil {
		event.FallbackMedia = r.VideoDetails.VideoURL
	}
	return event
}

// flexFloat accepts a JSON number or a numeric string. Anything else decodes
// to NaN so the coordinate is treated as missing.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		v = math.NaN()
	}
	*f = flexFloat(v)
	return nil
}

func (f *flexFloat) value() float64 {
	if f == nil {
		return math.NaN()
	}
	return float64(*f)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// flexTime accepts RFC 3339 strings, a few naive layouts (read as UTC) and
// epoch milliseconds. Unparseable values decode to the zero time.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*t = flexTime{}
		return nil
	}

	if ms, err := strconv.ParseInt(strings.Trim(raw, `"`), 10, 64); err == nil {
		*t = flexTime(time.UnixMilli(ms).UTC())
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = flexTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed.UTC())
			return nil
		}
	}
	*t = flexTime{}
	return nil
}

package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"audiowave/core/playback"
	"audiowave/logger"
)

// Scrobble threshold: half the track duration or four minutes,
// whichever is less. Tracks with unknown duration use the cap.
const scrobbleCap = 4 * time.Minute

// scrobblePayload is the submission body.
type scrobblePayload struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMs int64  `json:"durationMs"`
	StartedAt  int64  `json:"startedAt"` // Unix seconds.
}

// Scrobbler watches play progress and submits an external notification
// once the current track has played past its threshold. The HTTP call
// is handed off to a background goroutine; dispatch never blocks on it.
type Scrobbler struct {
	endpoint string
	client   *http.Client
	now      func() time.Time

	mu        sync.Mutex
	trackURI  string
	payload   scrobblePayload
	threshold time.Duration
	submitted bool
}

// NewScrobbler creates a scrobbler plugin posting to endpoint.
func NewScrobbler(endpoint string, timeout time.Duration) *Scrobbler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scrobbler{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

func (s *Scrobbler) ID() string             { return "scrobbler" }
func (s *Scrobbler) Capability() Capability { return CapScrobbler }

// Configure accepts {"endpoint": "..."}.
func (s *Scrobbler) Configure(cfg json.RawMessage) error {
	var c struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(cfg, &c); err != nil {
		return fmt.Errorf("scrobbler config: %w", err)
	}
	if c.Endpoint != "" {
		s.mu.Lock()
		s.endpoint = c.Endpoint
		s.mu.Unlock()
	}
	return nil
}

func (s *Scrobbler) HandleEvent(ev playback.Event) error {
	switch ev.Kind {
	case playback.EventTrackChanged:
		if ev.Track == nil {
			return nil
		}
		s.mu.Lock()
		s.trackURI = ev.Track.URI
		s.payload = scrobblePayload{
			Title:      ev.Track.Title,
			Artist:     ev.Track.Artist,
			Album:      ev.Track.Album,
			DurationMs: ev.Duration.Milliseconds(),
			StartedAt:  s.now().Unix(),
		}
		s.threshold = Threshold(ev.Duration)
		s.submitted = false
		s.mu.Unlock()

	case playback.EventPositionUpdate:
		s.mu.Lock()
		due := !s.submitted &&
			s.trackURI != "" &&
			ev.Track != nil &&
			ev.Track.URI == s.trackURI &&
			ev.Position >= s.threshold
		if due {
			s.submitted = true
		}
		payload := s.payload
		endpoint := s.endpoint
		s.mu.Unlock()

		if due && endpoint != "" {
			go s.submit(endpoint, payload)
		}
	}
	return nil
}

// Threshold returns the play time after which a track counts as played:
// min(duration/2, 4 minutes). Unknown durations use the cap.
func Threshold(duration time.Duration) time.Duration {
	if duration <= 0 {
		return scrobbleCap
	}
	half := duration / 2
	if half < scrobbleCap {
		return half
	}
	return scrobbleCap
}

func (s *Scrobbler) submit(endpoint string, payload scrobblePayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("scrobble marshal failed", logger.ErrorField(err))
		return
	}
	resp, err := s.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("scrobble submission failed",
			logger.String("title", payload.Title),
			logger.ErrorField(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Warn("scrobble rejected",
			logger.String("title", payload.Title),
			logger.Int("status", resp.StatusCode))
		return
	}
	logger.Info("scrobbled",
		logger.String("title", payload.Title),
		logger.String("artist", payload.Artist))
}

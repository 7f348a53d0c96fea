package plugin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audiowave/core/playback"
	"audiowave/model"
)

func TestThreshold(t *testing.T) {
	cases := []struct {
		name     string
		duration time.Duration
		want     time.Duration
	}{
		{"short track uses half", 3 * time.Minute, 90 * time.Second},
		{"long track caps at four minutes", 20 * time.Minute, 4 * time.Minute},
		{"exactly eight minutes still caps", 8 * time.Minute, 4 * time.Minute},
		{"unknown duration uses cap", 0, 4 * time.Minute},
		{"negative duration uses cap", -time.Second, 4 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Threshold(tc.duration); got != tc.want {
				t.Fatalf("Threshold(%s) = %s, want %s", tc.duration, got, tc.want)
			}
		})
	}
}

func TestScrobbleSubmitsOncePastThreshold(t *testing.T) {
	submissions := make(chan scrobblePayload, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p scrobblePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad submission body: %v", err)
		}
		submissions <- p
	}))
	defer srv.Close()

	s := NewScrobbler(srv.URL, time.Second)
	track := &model.Track{URI: "a", Title: "Song", Artist: "Band"}

	s.HandleEvent(playback.Event{
		Kind:     playback.EventTrackChanged,
		Track:    track,
		Duration: 3 * time.Minute,
	})

	// Below threshold: nothing submitted.
	s.HandleEvent(playback.Event{
		Kind:     playback.EventPositionUpdate,
		Track:    track,
		Position: 30 * time.Second,
	})
	select {
	case <-submissions:
		t.Fatal("scrobbled before threshold")
	case <-time.After(50 * time.Millisecond):
	}

	// Past threshold: exactly one submission even with more updates.
	for i := 0; i < 3; i++ {
		s.HandleEvent(playback.Event{
			Kind:     playback.EventPositionUpdate,
			Track:    track,
			Position: 100 * time.Second,
		})
	}

	select {
	case p := <-submissions:
		if p.Title != "Song" || p.Artist != "Band" {
			t.Fatalf("submission = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no scrobble submitted")
	}
	select {
	case <-submissions:
		t.Fatal("scrobbled more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScrobbleResetsOnTrackChange(t *testing.T) {
	submissions := make(chan scrobblePayload, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p scrobblePayload
		json.NewDecoder(r.Body).Decode(&p)
		submissions <- p
	}))
	defer srv.Close()

	s := NewScrobbler(srv.URL, time.Second)
	first := &model.Track{URI: "a", Title: "First"}
	second := &model.Track{URI: "b", Title: "Second"}

	s.HandleEvent(playback.Event{Kind: playback.EventTrackChanged, Track: first, Duration: 2 * time.Minute})
	s.HandleEvent(playback.Event{Kind: playback.EventPositionUpdate, Track: first, Position: 90 * time.Second})

	p := <-submissions
	if p.Title != "First" {
		t.Fatalf("first submission = %+v", p)
	}

	// Progress events for the old track after a change are ignored.
	s.HandleEvent(playback.Event{Kind: playback.EventTrackChanged, Track: second, Duration: 2 * time.Minute})
	s.HandleEvent(playback.Event{Kind: playback.EventPositionUpdate, Track: first, Position: 2 * time.Minute})
	select {
	case got := <-submissions:
		t.Fatalf("unexpected submission %+v", got)
	case <-time.After(100 * time.Millisecond):
	}

	s.HandleEvent(playback.Event{Kind: playback.EventPositionUpdate, Track: second, Position: time.Minute})
	p = <-submissions
	if p.Title != "Second" {
		t.Fatalf("second submission = %+v", p)
	}
}

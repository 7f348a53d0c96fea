package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"audiowave/core/backend"
	"audiowave/core/playlist"
	"audiowave/model"
)

// fakeBackend is a controllable Backend for driving the state machine.
type fakeBackend struct {
	mu       sync.Mutex
	events   chan backend.Event
	seq      uint64
	loaded   []string
	loadErr  map[string]error
	loadHold chan struct{} // When set, Load blocks until closed.
	volume   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		events:  make(chan backend.Event, 32),
		loadErr: make(map[string]error),
	}
}

func (f *fakeBackend) Load(ctx context.Context, track model.Track) error {
	f.mu.Lock()
	hold := f.loadHold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadErr[track.URI]; err != nil {
		return err
	}
	f.loaded = append(f.loaded, track.URI)
	return nil
}

func (f *fakeBackend) Play()  {}
func (f *fakeBackend) Pause() {}
func (f *fakeBackend) Stop()  {}

func (f *fakeBackend) Seek(pos time.Duration) error { return nil }

func (f *fakeBackend) SetVolume(level int) {
	f.mu.Lock()
	f.volume = level
	f.mu.Unlock()
}

func (f *fakeBackend) SetEqualizer(gains []float64) error { return nil }
func (f *fakeBackend) Position() time.Duration            { return 0 }
func (f *fakeBackend) Duration() time.Duration            { return 3 * time.Minute }
func (f *fakeBackend) Events() <-chan backend.Event       { return f.events }
func (f *fakeBackend) Close() error                       { return nil }

func (f *fakeBackend) emit(kind backend.EventKind, uri string, err error) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()
	f.events <- backend.Event{Seq: seq, Kind: kind, TrackURI: uri, Err: err}
}

func (f *fakeBackend) loadedURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loaded...)
}

func queueOf(uris ...string) *playlist.Engine {
	q := playlist.New()
	for i, uri := range uris {
		q.Add(model.Track{ID: int64(i + 1), URI: uri, Title: uri, Duration: 180})
	}
	return q
}

// startController runs the loop and returns a subscriber channel plus a
// cleanup func.
func startController(t *testing.T, c *Controller) <-chan Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, events := c.Subscribe()
	go c.Run(ctx)
	return events
}

// waitFor pumps the event channel until pred matches or the deadline
// passes.
func waitFor(t *testing.T, events <-chan Event, pred func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if pred(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func waitForState(t *testing.T, events <-chan Event, state State) Event {
	t.Helper()
	return waitFor(t, events, func(ev Event) bool {
		return ev.Kind == EventStateChanged && ev.State == state
	})
}

func TestPlayLoadsFirstTrack(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a", "b"))
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StateLoading)
	ev := waitForState(t, events, StatePlaying)

	if ev.Track == nil || ev.Track.URI != "a" {
		t.Fatalf("playing track = %v, want a", ev.Track)
	}
	if got := c.Session().State; got != StatePlaying {
		t.Fatalf("session state = %s, want playing", got)
	}
}

func TestPlayEmptyPlaylistStaysStopped(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, playlist.New())
	events := startController(t, c)

	c.Play()
	ev := waitFor(t, events, func(ev Event) bool { return ev.Kind == EventPlaybackError })

	if ev.Error != ErrEmptyPlaylist.Error() {
		t.Fatalf("error = %q, want %q", ev.Error, ErrEmptyPlaylist)
	}
	if got := c.Session().State; got != StateStopped {
		t.Fatalf("session state = %s, want stopped", got)
	}
}

func TestPauseAndResume(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a"))
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StatePlaying)

	c.Pause()
	waitForState(t, events, StatePaused)

	c.Play()
	waitForState(t, events, StatePlaying)
}

func TestEndOfStreamAdvances(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a", "b", "c"))
	c.SetRepeatMode(model.RepeatAll)
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StatePlaying)

	want := []string{"b", "c", "a"}
	for _, uri := range want {
		fb.emit(backend.EventEndOfStream, "", nil)
		ev := waitFor(t, events, func(ev Event) bool {
			return ev.Kind == EventTrackChanged && ev.Track != nil && ev.Track.URI == uri
		})
		if ev.State != StatePlaying && ev.State != StateLoading {
			t.Fatalf("state after advance = %s", ev.State)
		}
		waitForState(t, events, StatePlaying)
	}
}

func TestEndOfStreamRepeatNoneStops(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a"))
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StatePlaying)

	fb.emit(backend.EventEndOfStream, "", nil)
	waitForState(t, events, StateStopped)

	if got := c.Session().State; got != StateStopped {
		t.Fatalf("session state = %s, want stopped", got)
	}
}

func TestStaleLoadResultDiscarded(t *testing.T) {
	fb := newFakeBackend()
	hold := make(chan struct{})
	fb.loadHold = hold

	c := New(fb, queueOf("a", "b"))
	events := startController(t, c)

	// First load hangs; skipping supersedes it before it finishes.
	c.Play()
	waitForState(t, events, StateLoading)

	fb.mu.Lock()
	fb.loadHold = nil
	fb.mu.Unlock()
	c.Next()

	ev := waitFor(t, events, func(ev Event) bool { return ev.Kind == EventTrackChanged })
	if ev.Track == nil || ev.Track.URI != "b" {
		t.Fatalf("track after skip = %v, want b", ev.Track)
	}
	close(hold)

	// The superseded load must not flip the session back to track a.
	time.Sleep(50 * time.Millisecond)
	if got := c.Session().Track; got == nil || got.URI != "b" {
		t.Fatalf("session track = %v, want b", got)
	}
}

func TestLoadErrorEntersErrorState(t *testing.T) {
	fb := newFakeBackend()
	fb.loadErr["a"] = &backend.Error{Code: backend.ErrCodeMissingFile, URI: "a", Err: errors.New("gone")}

	c := New(fb, queueOf("a", "b"))
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StateError)
	waitFor(t, events, func(ev Event) bool { return ev.Kind == EventPlaybackError })

	// Skip recovers from the error state.
	c.Skip()
	ev := waitFor(t, events, func(ev Event) bool { return ev.Kind == EventTrackChanged })
	if ev.Track == nil || ev.Track.URI != "b" {
		t.Fatalf("track after skip = %v, want b", ev.Track)
	}
	waitForState(t, events, StatePlaying)
}

func TestAutoSkipAdvancesPastFailedTrack(t *testing.T) {
	fb := newFakeBackend()
	fb.loadErr["a"] = &backend.Error{Code: backend.ErrCodeDecode, URI: "a", Err: errors.New("bad frame")}

	c := New(fb, queueOf("a", "b"), WithAutoSkip(true))
	events := startController(t, c)

	c.Play()
	waitFor(t, events, func(ev Event) bool {
		return ev.Kind == EventTrackChanged && ev.Track != nil && ev.Track.URI == "b"
	})
	waitForState(t, events, StatePlaying)

	if got := fb.loadedURIs(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("loaded = %v, want [b]", got)
	}
}

func TestSetVolumeClampsAndPublishes(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a"))
	events := startController(t, c)

	c.SetVolume(150)
	ev := waitFor(t, events, func(ev Event) bool { return ev.Kind == EventVolumeChanged })
	if ev.Volume != 100 {
		t.Fatalf("volume = %d, want 100", ev.Volume)
	}
	if got := c.Session().Volume; got != 100 {
		t.Fatalf("session volume = %d, want 100", got)
	}
}

func TestQueueEditsPublishPlaylistChanged(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a", "b"))
	events := startController(t, c)

	c.AddTracks(model.Track{ID: 3, URI: "c"})
	waitFor(t, events, func(ev Event) bool { return ev.Kind == EventPlaylistChanged })
	if got := c.Queue().Len(); got != 3 {
		t.Fatalf("queue len = %d, want 3", got)
	}

	c.RemoveTrack(0)
	waitFor(t, events, func(ev Event) bool { return ev.Kind == EventPlaylistChanged })
	if got := c.Queue().Len(); got != 2 {
		t.Fatalf("queue len = %d, want 2", got)
	}
}

func TestReplaceQueue(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a", "b"))
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StatePlaying)

	c.ReplaceQueue([]model.Track{{ID: 9, URI: "x"}}, 0)
	waitFor(t, events, func(ev Event) bool { return ev.Kind == EventPlaylistChanged })

	if got := c.Session().State; got != StateStopped {
		t.Fatalf("state after replace = %s, want stopped", got)
	}
	if got := c.Queue().Tracks(); len(got) != 1 || got[0].URI != "x" {
		t.Fatalf("queue = %v, want [x]", got)
	}
}

func TestSelectOutOfRangeReportsError(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a"))
	events := startController(t, c)

	c.Select(7)
	waitFor(t, events, func(ev Event) bool { return ev.Kind == EventPlaybackError })
}

func TestEventSeqMonotonic(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, queueOf("a", "b"))
	events := startController(t, c)

	c.Play()
	waitForState(t, events, StatePlaying)
	c.SetVolume(40)
	c.Pause()

	var last uint64
	done := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-events:
			if ev.Seq <= last {
				t.Fatalf("seq went backwards: %d after %d", ev.Seq, last)
			}
			last = ev.Seq
		case <-done:
			return
		}
	}
}

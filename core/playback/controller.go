// Package playback hosts the state machine that ties backend events to
// playlist advancement and plugin notification.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"audiowave/core/backend"
	"audiowave/core/playlist"
	"audiowave/logger"
	"audiowave/model"
)

const (
	cmdBufferSize       = 64
	subscriberBufferLen = 128
)

// Controller serializes all playback-state mutation on a single
// goroutine. Commands from the UI and events from the backend are both
// marshaled onto that goroutine; there are no concurrent writers to the
// session or the playlist cursor.
type Controller struct {
	backend  backend.Backend
	queue    *playlist.Engine
	dispatch []Dispatcher
	autoSkip bool

	cmds    chan func()
	stopped chan struct{}

	mu      sync.RWMutex
	session Session
	seq     uint64

	// loadGen distinguishes stale async load results from current ones.
	loadGen    uint64
	loadCancel context.CancelFunc

	subMu   sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithAutoSkip makes the controller advance past failed tracks instead
// of waiting in the error state for an acknowledgement.
func WithAutoSkip(on bool) Option {
	return func(c *Controller) { c.autoSkip = on }
}

// WithDispatcher attaches a synchronous event consumer (the plugin host).
func WithDispatcher(d Dispatcher) Option {
	return func(c *Controller) { c.dispatch = append(c.dispatch, d) }
}

// WithVolume sets the initial volume.
func WithVolume(level int) Option {
	return func(c *Controller) { c.session.Volume = level }
}

// New creates a controller over a backend and a playlist engine.
func New(b backend.Backend, q *playlist.Engine, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		queue:   q,
		cmds:    make(chan func(), cmdBufferSize),
		stopped: make(chan struct{}),
		subs:    make(map[uint64]chan Event),
		session: Session{
			State:  StateStopped,
			Volume: 70,
			Repeat: model.RepeatNone,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run is the controller's event loop. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	c.backend.SetVolume(c.Session().Volume)
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			c.cancelLoad()
			c.backend.Stop()
			return
		case fn := <-c.cmds:
			fn()
		case ev, ok := <-c.backend.Events():
			if !ok {
				return
			}
			c.handleBackendEvent(ev)
		}
	}
}

// Queue exposes the playlist engine for read access.
func (c *Controller) Queue() *playlist.Engine { return c.queue }

// Session returns a snapshot of the playback session.
func (c *Controller) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.session
	if c.session.Track != nil {
		t := *c.session.Track
		s.Track = &t
	}
	return s
}

// Subscribe registers a UI observer. Events are delivered on a buffered
// channel; slow consumers lose position updates first.
func (c *Controller) Subscribe() (uint64, <-chan Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	id := c.nextSub
	ch := make(chan Event, subscriberBufferLen)
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe removes an observer and closes its channel.
func (c *Controller) Unsubscribe(id uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// --- Commands (all marshaled onto the controller goroutine) ---

// Play starts playback of the current track, asking the playlist engine
// for one if nothing is selected. With an empty playlist the controller
// stays stopped and reports a playlist error.
func (c *Controller) Play() { c.do(c.play) }

// Pause pauses a playing track.
func (c *Controller) Pause() { c.do(c.pause) }

// Toggle flips between play and pause.
func (c *Controller) Toggle() {
	c.do(func() {
		if c.state() == StatePlaying {
			c.pause()
		} else {
			c.play()
		}
	})
}

// Stop halts playback and discards any in-flight load.
func (c *Controller) Stop() { c.do(c.stop) }

// Next advances to the next track per repeat/shuffle policy.
func (c *Controller) Next() { c.do(c.next) }

// Previous steps back to the previous track.
func (c *Controller) Previous() { c.do(c.previous) }

// Skip acknowledges an error state and advances the playlist.
func (c *Controller) Skip() { c.do(c.next) }

// Seek repositions within the current track.
func (c *Controller) Seek(pos time.Duration) {
	c.do(func() { c.seek(pos) })
}

// SetVolume sets output volume (0-100).
func (c *Controller) SetVolume(level int) {
	c.do(func() { c.setVolume(level) })
}

// Select jumps to the playlist entry at index and plays it.
func (c *Controller) Select(index int) {
	c.do(func() {
		track := c.queue.Select(index)
		if track == nil {
			c.publishError(ErrEmptyPlaylist)
			return
		}
		c.startLoad(track)
	})
}

// AddTracks appends tracks to the queue.
func (c *Controller) AddTracks(tracks ...model.Track) {
	c.do(func() {
		c.queue.Add(tracks...)
		c.publishPlaylistChanged()
	})
}

// RemoveTrack removes the queue entry at index.
func (c *Controller) RemoveTrack(index int) {
	c.do(func() {
		if c.queue.Remove(index) {
			c.publishPlaylistChanged()
		}
	})
}

// Reorder moves a queue entry.
func (c *Controller) Reorder(from, to int) {
	c.do(func() {
		if c.queue.Reorder(from, to) {
			c.publishPlaylistChanged()
		}
	})
}

// ReplaceQueue swaps the queue contents, pointing the cursor at index.
func (c *Controller) ReplaceQueue(tracks []model.Track, index int) {
	c.do(func() {
		c.stop()
		c.queue.Clear()
		c.queue.Add(tracks...)
		if index >= 0 {
			c.queue.Select(index)
		}
		c.publishPlaylistChanged()
	})
}

// SetRepeatMode sets the repeat policy.
func (c *Controller) SetRepeatMode(mode model.RepeatMode) {
	c.do(func() {
		c.queue.SetRepeatMode(mode)
		c.setSession(func(s *Session) { s.Repeat = mode })
		c.publishPlaylistChanged()
	})
}

// ToggleShuffle flips shuffle mode.
func (c *Controller) ToggleShuffle() {
	c.do(func() {
		on := c.queue.ToggleShuffle()
		c.setSession(func(s *Session) { s.Shuffle = on })
		c.publishPlaylistChanged()
	})
}

// --- Loop-side handlers ---

func (c *Controller) play() {
	switch c.state() {
	case StatePlaying, StateLoading:
		return
	case StatePaused:
		c.backend.Play()
		c.transition(StatePlaying)
		return
	}

	track := c.queue.Current()
	if track == nil {
		track = c.queue.Next()
	}
	if track == nil {
		c.publishError(ErrEmptyPlaylist)
		return
	}
	c.startLoad(track)
}

func (c *Controller) pause() {
	if c.state() != StatePlaying {
		return
	}
	c.backend.Pause()
	c.transition(StatePaused)
}

func (c *Controller) stop() {
	c.cancelLoad()
	c.backend.Stop()
	if c.state() == StateStopped {
		return
	}
	c.setSession(func(s *Session) { s.Position = 0 })
	c.transition(StateStopped)
}

func (c *Controller) next() {
	track := c.queue.Next()
	if track == nil {
		// End of playlist.
		c.stop()
		return
	}
	c.startLoad(track)
}

func (c *Controller) previous() {
	track := c.queue.Previous()
	if track == nil {
		c.stop()
		return
	}
	c.startLoad(track)
}

func (c *Controller) seek(pos time.Duration) {
	if !c.state().Active() {
		return
	}
	if err := c.backend.Seek(pos); err != nil {
		logger.Warn("seek failed", logger.ErrorField(err))
		return
	}
	c.setSession(func(s *Session) { s.Position = pos })
	c.publish(Event{Kind: EventPositionUpdate, Position: pos})
}

func (c *Controller) setVolume(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	c.backend.SetVolume(level)
	c.setSession(func(s *Session) { s.Volume = level })
	c.publish(Event{Kind: EventVolumeChanged, Volume: level})
}

// startLoad cancels any in-flight load and begins loading track. The
// result is marshaled back onto the loop and dropped if a newer load
// was issued in the meantime.
func (c *Controller) startLoad(track *model.Track) {
	c.cancelLoad()
	c.loadGen++
	gen := c.loadGen

	ctx, cancel := context.WithCancel(context.Background())
	c.loadCancel = cancel

	t := *track
	c.setSession(func(s *Session) {
		s.Track = &t
		s.Position = 0
		s.Duration = time.Duration(t.Duration * float64(time.Second))
	})
	c.transition(StateLoading)

	go func() {
		err := c.backend.Load(ctx, t)
		c.do(func() {
			if gen != c.loadGen {
				// A newer load superseded this one; discard.
				return
			}
			if err != nil {
				c.onLoadError(&t, err)
				return
			}
			c.onLoaded(&t)
		})
	}()
}

func (c *Controller) onLoaded(track *model.Track) {
	dur := c.backend.Duration()
	loaded := *track
	loaded.DecodeReady = true
	c.setSession(func(s *Session) {
		s.Track = &loaded
		s.Duration = dur
		s.Position = 0
	})
	c.publish(Event{Kind: EventTrackChanged, Track: &loaded, Duration: dur})
	c.transition(StatePlaying)
}

func (c *Controller) onLoadError(track *model.Track, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	logger.Error("track load failed",
		logger.String("uri", track.URI),
		logger.ErrorField(err))
	c.transition(StateError)
	c.publishError(err)
	if c.autoSkip {
		c.next()
	}
}

func (c *Controller) handleBackendEvent(ev backend.Event) {
	switch ev.Kind {
	case backend.EventPositionUpdate:
		if !c.state().Active() {
			return
		}
		c.setSession(func(s *Session) {
			s.Position = ev.Position
			if ev.Duration > 0 {
				s.Duration = ev.Duration
			}
		})
		c.publish(Event{Kind: EventPositionUpdate, Position: ev.Position, Duration: ev.Duration})

	case backend.EventEndOfStream:
		if c.state() != StatePlaying {
			return
		}
		c.transition(StateEnded)
		c.next()

	case backend.EventDecodeError:
		if !c.state().Active() && c.state() != StateLoading {
			return
		}
		c.transition(StateError)
		c.publishError(ev.Err)
		if c.autoSkip {
			c.next()
		}

	case backend.EventStateChanged:
		// The controller drives state itself; engine-level state changes
		// are informational only.
	}
}

// --- Internals ---

func (c *Controller) do(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.stopped:
	}
}

func (c *Controller) cancelLoad() {
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.loadGen++
}

func (c *Controller) state() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.State
}

func (c *Controller) setSession(mutate func(*Session)) {
	c.mu.Lock()
	mutate(&c.session)
	c.mu.Unlock()
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	prev := c.session.State
	c.session.State = to
	c.mu.Unlock()
	if prev == to {
		return
	}
	c.publish(Event{Kind: EventStateChanged, PrevState: prev})
}

func (c *Controller) publishError(err error) {
	c.publish(Event{Kind: EventPlaybackError, Error: err.Error()})
}

func (c *Controller) publishPlaylistChanged() {
	c.publish(Event{Kind: EventPlaylistChanged})
}

// publish stamps the event with the session snapshot and sequence
// number, hands it to the plugin host synchronously, then fans it out to
// subscribers without blocking.
func (c *Controller) publish(ev Event) {
	c.mu.Lock()
	c.seq++
	ev.Seq = c.seq
	ev.State = c.session.State
	if ev.Track == nil && c.session.Track != nil {
		t := *c.session.Track
		ev.Track = &t
	}
	if ev.Volume == 0 {
		ev.Volume = c.session.Volume
	}
	ev.Repeat = c.session.Repeat
	ev.Shuffle = c.session.Shuffle
	c.mu.Unlock()

	for _, d := range c.dispatch {
		d.Dispatch(ev)
	}

	c.subMu.Lock()
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			if ev.Kind != EventPositionUpdate {
				logger.Warn("subscriber event dropped",
					logger.Uint64("subscriber", id),
					logger.String("kind", string(ev.Kind)))
			}
		}
	}
	c.subMu.Unlock()
}

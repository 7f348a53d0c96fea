package playback

import (
	"errors"
	"time"

	"audiowave/model"
)

// State is the controller state machine's position.
type State string

const (
	StateStopped State = "stopped"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateError   State = "error"
)

// Active reports whether a track is loaded (playing or paused).
func (s State) Active() bool {
	return s == StatePlaying || s == StatePaused
}

// EventKind discriminates controller notifications.
type EventKind string

const (
	EventStateChanged    EventKind = "state_changed"
	EventTrackChanged    EventKind = "track_changed"
	EventPositionUpdate  EventKind = "position_update"
	EventPlaylistChanged EventKind = "playlist_changed"
	EventVolumeChanged   EventKind = "volume_changed"
	EventPlaybackError   EventKind = "playback_error"
)

// Event is published on every state transition and progress tick. It is
// consumed synchronously by the plugin host and fanned out to UI
// subscribers.
type Event struct {
	Seq       uint64           `json:"seq"`
	Kind      EventKind        `json:"kind"`
	State     State            `json:"state"`
	PrevState State            `json:"prevState,omitempty"`
	Track     *model.Track     `json:"track,omitempty"`
	Position  time.Duration    `json:"position,omitempty"`
	Duration  time.Duration    `json:"duration,omitempty"`
	Volume    int              `json:"volume,omitempty"`
	Repeat    model.RepeatMode `json:"repeat,omitempty"`
	Shuffle   bool             `json:"shuffle,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Session is the playback state owned exclusively by the controller.
// Snapshots handed out are copies.
type Session struct {
	State    State            `json:"state"`
	Track    *model.Track     `json:"track,omitempty"`
	Position time.Duration    `json:"position"`
	Duration time.Duration    `json:"duration"`
	Volume   int              `json:"volume"`
	Repeat   model.RepeatMode `json:"repeat"`
	Shuffle  bool             `json:"shuffle"`
}

// Dispatcher receives every controller event on the controller's event
// path. Implementations must bound their own execution time.
type Dispatcher interface {
	Dispatch(ev Event)
}

// ErrEmptyPlaylist is reported when play is requested with no tracks.
var ErrEmptyPlaylist = errors.New("playlist is empty")

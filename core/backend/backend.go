// Package backend wraps the audio engine behind a small control surface
// and an asynchronous event stream consumed by the playback controller.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audiowave/model"
)

// State is the engine-level playback state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EventKind discriminates backend events.
type EventKind int

const (
	EventPositionUpdate EventKind = iota
	EventStateChanged
	EventEndOfStream
	EventDecodeError
)

func (k EventKind) String() string {
	switch k {
	case EventPositionUpdate:
		return "position_update"
	case EventStateChanged:
		return "state_changed"
	case EventEndOfStream:
		return "end_of_stream"
	case EventDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Event is delivered on the backend's event channel. Seq increases
// monotonically per backend so consumers can detect reordering.
type Event struct {
	Seq      uint64
	Kind     EventKind
	TrackURI string
	Position time.Duration
	Duration time.Duration
	State    State
	Err      error
}

// ErrorCode classifies backend failures. All of them are recoverable at
// the controller level.
type ErrorCode string

const (
	ErrCodeUnsupportedCodec ErrorCode = "unsupported_codec"
	ErrCodeMissingFile      ErrorCode = "missing_file"
	ErrCodeDevice           ErrorCode = "device_unavailable"
	ErrCodeDecode           ErrorCode = "decode_failed"
)

var (
	errNoPipeline = errors.New("no active pipeline")
	errBadEQTable = errors.New("equalizer table must have 10 bands")
)

// Error is a backend failure tied to a track.
type Error struct {
	Code ErrorCode
	URI  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s (%s): %v", e.Code, e.URI, e.Err)
	}
	return fmt.Sprintf("backend: %s (%s)", e.Code, e.URI)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a backend *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Backend is the media engine contract. Implementations own exactly one
// active pipeline; Load tears down the previous one before acquiring the
// next. Control calls are non-blocking; results and progress arrive on
// Events.
type Backend interface {
	// Load prepares track for playback and starts it. The context
	// cancels an in-flight load.
	Load(ctx context.Context, track model.Track) error
	Play()
	Pause()
	Stop()
	Seek(pos time.Duration) error
	SetVolume(level int)
	// SetEqualizer applies a 10-band gain table in dB (-12..+12).
	SetEqualizer(gains []float64) error
	Position() time.Duration
	Duration() time.Duration
	Events() <-chan Event
	Close() error
}

// SourceResolver opens the byte stream for a track. Local tracks read
// straight from disk; remote ones resolve through object storage.
type SourceResolver interface {
	Open(ctx context.Context, track model.Track) (ReadSeekCloser, error)
}

// ReadSeekCloser is the stream contract decoders need.
type ReadSeekCloser interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

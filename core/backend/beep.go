package backend

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"audiowave/logger"
	"audiowave/model"
)

const (
	mixSampleRate     = beep.SampleRate(44100)
	speakerBufferSize = 200 * time.Millisecond
	positionInterval  = 500 * time.Millisecond
	eventBufferSize   = 64
	eqBands           = 10
)

var (
	speakerOnce    sync.Once
	speakerInitErr error
)

// pipeline bundles all resources for one loaded track.
type pipeline struct {
	id     uint64
	src    io.ReadCloser
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	vol    *effects.Volume
	track  model.Track
}

func (p *pipeline) Close() {
	if p.stream != nil {
		p.stream.Close()
	}
	if p.src != nil {
		p.src.Close()
	}
}

// BeepBackend plays local and resolved remote files through the speaker
// package. It satisfies Backend.
type BeepBackend struct {
	mu       sync.Mutex
	events   chan Event
	seq      uint64
	loadID   uint64
	current  *pipeline
	state    State
	volume   int // 0-100
	eqGains  []float64
	resolver SourceResolver

	tickerStop chan struct{}
	closeOnce  sync.Once
}

// NewBeep initializes the speaker and returns a backend. resolver may be
// nil when only local files are played.
func NewBeep(volume int, resolver SourceResolver) (*BeepBackend, error) {
	speakerOnce.Do(func() {
		speakerInitErr = speaker.Init(mixSampleRate, mixSampleRate.N(speakerBufferSize))
	})
	if speakerInitErr != nil {
		return nil, &Error{Code: ErrCodeDevice, Err: speakerInitErr}
	}

	b := &BeepBackend{
		events:     make(chan Event, eventBufferSize),
		state:      StateIdle,
		volume:     clampVolume(volume),
		eqGains:    make([]float64, eqBands),
		resolver:   resolver,
		tickerStop: make(chan struct{}),
	}
	go b.positionLoop()
	return b, nil
}

// Events returns the backend event stream.
func (b *BeepBackend) Events() <-chan Event { return b.events }

// Load tears down the previous pipeline, opens and decodes track, and
// starts playback. A canceled context aborts before the swap.
func (b *BeepBackend) Load(ctx context.Context, track model.Track) error {
	var (
		src    io.ReadCloser
		stream beep.StreamSeekCloser
		format beep.Format
	)
	if track.Source == model.SourceStream || isStreamURI(track.URI) {
		var err error
		src, stream, format, err = openStream(ctx, track.URI)
		if err != nil {
			return err
		}
	} else {
		rsc, err := b.open(ctx, track)
		if err != nil {
			return err
		}
		stream, format, err = decode(track.URI, rsc)
		if err != nil {
			rsc.Close()
			return err
		}
		src = rsc
	}

	var renderer beep.Streamer = stream
	if format.SampleRate != mixSampleRate {
		renderer = beep.Resample(4, format.SampleRate, mixSampleRate, stream)
	}

	p := &pipeline{
		src:    src,
		stream: stream,
		format: format,
		track:  track,
	}
	done := beep.Callback(func() {
		b.onStreamEnd(p.id, track.URI)
	})
	p.ctrl = &beep.Ctrl{Streamer: beep.Seq(renderer, done)}
	p.vol = &effects.Volume{Streamer: p.ctrl, Base: 2}

	old, err := b.install(ctx, p)
	if err != nil {
		stream.Close()
		src.Close()
		return err
	}

	if old != nil {
		speaker.Clear()
		old.Close()
	}
	speaker.Play(p.vol)
	b.emitState(StatePlaying, track.URI)
	return nil
}

// install swaps p in as the active pipeline. The context is re-checked
// under the lock so a load superseded after its early checks cannot
// replace a newer pipeline.
func (b *BeepBackend) install(ctx context.Context, p *pipeline) (*pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.loadID++
	p.id = b.loadID
	old := b.takePipelineLocked()
	b.current = p
	b.applyVolumeLocked()
	b.state = StatePlaying
	return old, nil
}

func (b *BeepBackend) open(ctx context.Context, track model.Track) (ReadSeekCloser, error) {
	if track.Source == model.SourceRemote {
		if b.resolver == nil {
			return nil, &Error{Code: ErrCodeMissingFile, URI: track.URI}
		}
		src, err := b.resolver.Open(ctx, track)
		if err != nil {
			return nil, &Error{Code: ErrCodeMissingFile, URI: track.URI, Err: err}
		}
		return src, nil
	}
	f, err := os.Open(track.URI)
	if err != nil {
		return nil, &Error{Code: ErrCodeMissingFile, URI: track.URI, Err: err}
	}
	return f, nil
}

func decode(uri string, src ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".mp3":
		stream, format, err = mp3.Decode(src)
	case ".flac":
		stream, format, err = flac.Decode(src)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(src)
	case ".wav":
		stream, format, err = wav.Decode(src)
	default:
		return nil, beep.Format{}, &Error{Code: ErrCodeUnsupportedCodec, URI: uri}
	}
	if err != nil {
		return nil, beep.Format{}, &Error{Code: ErrCodeDecode, URI: uri, Err: err}
	}
	return stream, format, nil
}

func isStreamURI(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// streamClient carries no overall timeout: a radio stream stays open
// for the life of the pipeline and is torn down through the request
// context when the load is superseded or stopped.
var streamClient = &http.Client{}

func openStream(ctx context.Context, uri string) (io.ReadCloser, beep.StreamSeekCloser, beep.Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, nil, beep.Format{}, &Error{Code: ErrCodeMissingFile, URI: uri, Err: err}
	}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, nil, beep.Format{}, &Error{Code: ErrCodeMissingFile, URI: uri, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, beep.Format{}, &Error{Code: ErrCodeMissingFile, URI: uri,
			Err: fmt.Errorf("stream returned status %d", resp.StatusCode)}
	}
	stream, format, err := decodeStream(uri, resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, nil, beep.Format{}, err
	}
	return resp.Body, stream, format, nil
}

// streamFormat picks a decoder extension for a live stream: the
// Content-Type header first, then the URL path, then mp3 as the net
// radio convention.
func streamFormat(contentType, uri string) string {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg", "application/ogg", "audio/vorbis":
		return ".ogg"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	}
	switch ext := strings.ToLower(filepath.Ext(uri)); ext {
	case ".mp3", ".ogg", ".oga", ".flac", ".wav":
		return ext
	}
	return ".mp3"
}

func decodeStream(uri, contentType string, body io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch streamFormat(contentType, uri) {
	case ".mp3":
		stream, format, err = mp3.Decode(body)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(body)
	case ".flac":
		stream, format, err = flac.Decode(body)
	case ".wav":
		stream, format, err = wav.Decode(body)
	}
	if err != nil {
		return nil, beep.Format{}, &Error{Code: ErrCodeDecode, URI: uri, Err: err}
	}
	return stream, format, nil
}

// onStreamEnd runs on the speaker goroutine when a pipeline drains.
// Stale callbacks from torn-down pipelines are dropped by load id.
func (b *BeepBackend) onStreamEnd(id uint64, uri string) {
	b.mu.Lock()
	if id != b.loadID {
		b.mu.Unlock()
		return
	}
	b.state = StateIdle
	pos := b.positionLocked()
	dur := b.durationLocked()
	b.mu.Unlock()

	b.emit(Event{Kind: EventEndOfStream, TrackURI: uri, Position: pos, Duration: dur})
}

// Play resumes a paused pipeline.
func (b *BeepBackend) Play() {
	b.mu.Lock()
	p := b.current
	if p == nil || b.state != StatePaused {
		b.mu.Unlock()
		return
	}
	b.state = StatePlaying
	uri := p.track.URI
	b.mu.Unlock()

	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	b.emitState(StatePlaying, uri)
}

// Pause halts a playing pipeline.
func (b *BeepBackend) Pause() {
	b.mu.Lock()
	p := b.current
	if p == nil || b.state != StatePlaying {
		b.mu.Unlock()
		return
	}
	b.state = StatePaused
	uri := p.track.URI
	b.mu.Unlock()

	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	b.emitState(StatePaused, uri)
}

// Stop tears down the active pipeline.
func (b *BeepBackend) Stop() {
	b.mu.Lock()
	b.loadID++ // Invalidate any pending end-of-stream callback.
	uri := ""
	if b.current != nil {
		uri = b.current.track.URI
	}
	old := b.takePipelineLocked()
	b.state = StateIdle
	b.mu.Unlock()

	if old != nil {
		speaker.Clear()
		old.Close()
	}
	b.emitState(StateIdle, uri)
}

// Seek repositions the active stream.
func (b *BeepBackend) Seek(pos time.Duration) error {
	b.mu.Lock()
	p := b.current
	b.mu.Unlock()
	if p == nil {
		return &Error{Code: ErrCodeDecode, Err: errNoPipeline}
	}

	n := p.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	speaker.Lock()
	if l := p.stream.Len(); n >= l {
		n = l - 1
	}
	err := p.stream.Seek(n)
	speaker.Unlock()
	if err != nil {
		return &Error{Code: ErrCodeDecode, URI: p.track.URI, Err: err}
	}
	return nil
}

// SetVolume sets output volume on a 0-100 scale.
func (b *BeepBackend) SetVolume(level int) {
	b.mu.Lock()
	b.volume = clampVolume(level)
	p := b.current
	if p == nil {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	speaker.Lock()
	b.mu.Lock()
	b.applyVolumeLocked()
	b.mu.Unlock()
	speaker.Unlock()
}

// SetEqualizer stores a 10-band gain table. The speaker chain has no
// per-band filter element, so the table collapses to a pre-amp term on
// the volume stage.
func (b *BeepBackend) SetEqualizer(gains []float64) error {
	if len(gains) != eqBands {
		return &Error{Code: ErrCodeDecode, Err: errBadEQTable}
	}
	b.mu.Lock()
	for i, g := range gains {
		b.eqGains[i] = math.Max(-12, math.Min(12, g))
	}
	p := b.current
	b.mu.Unlock()

	if p != nil {
		speaker.Lock()
		b.mu.Lock()
		b.applyVolumeLocked()
		b.mu.Unlock()
		speaker.Unlock()
	}
	return nil
}

// applyVolumeLocked maps 0-100 onto the exponential volume scale and
// folds the equalizer pre-amp in. Caller holds b.mu (and the speaker
// lock when a pipeline is live).
func (b *BeepBackend) applyVolumeLocked() {
	p := b.current
	if p == nil {
		return
	}
	if b.volume == 0 {
		p.vol.Silent = true
		return
	}
	p.vol.Silent = false
	preamp := 0.0
	for _, g := range b.eqGains {
		preamp += g
	}
	preamp /= eqBands * 6 // ±12 dB table maps to ±2 volume steps at full tilt.
	p.vol.Volume = math.Log2(float64(b.volume)/100) + preamp
}

// Position returns the play position of the active stream.
func (b *BeepBackend) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionLocked()
}

func (b *BeepBackend) positionLocked() time.Duration {
	if b.current == nil {
		return 0
	}
	return b.current.format.SampleRate.D(b.current.stream.Position())
}

// Duration returns the total length of the active stream.
func (b *BeepBackend) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.durationLocked()
}

func (b *BeepBackend) durationLocked() time.Duration {
	if b.current == nil {
		return 0
	}
	n := b.current.stream.Len()
	if n < 0 {
		// Live streams report no length.
		return 0
	}
	return b.current.format.SampleRate.D(n)
}

// Close stops the position loop and releases the active pipeline.
func (b *BeepBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.tickerStop)
		b.mu.Lock()
		b.loadID++
		old := b.takePipelineLocked()
		b.state = StateIdle
		b.mu.Unlock()

		if old != nil {
			speaker.Clear()
			old.Close()
		}
	})
	return nil
}

// takePipelineLocked detaches the active pipeline so the caller can
// release it after dropping b.mu. Speaker calls under b.mu would invert
// the speaker-then-mu lock order the position loop uses.
func (b *BeepBackend) takePipelineLocked() *pipeline {
	p := b.current
	b.current = nil
	return p
}

// positionLoop emits periodic position updates while playing.
func (b *BeepBackend) positionLoop() {
	ticker := time.NewTicker(positionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.tickerStop:
			return
		case <-ticker.C:
		}

		speaker.Lock()
		b.mu.Lock()
		if b.state != StatePlaying || b.current == nil {
			b.mu.Unlock()
			speaker.Unlock()
			continue
		}
		ev := Event{
			Kind:     EventPositionUpdate,
			TrackURI: b.current.track.URI,
			Position: b.positionLocked(),
			Duration: b.durationLocked(),
			State:    b.state,
		}
		b.mu.Unlock()
		speaker.Unlock()
		b.emit(ev)
	}
}

func (b *BeepBackend) emitState(state State, uri string) {
	b.emit(Event{Kind: EventStateChanged, TrackURI: uri, State: state})
}

// emit stamps the sequence number and delivers without blocking. A full
// channel drops position updates first; other kinds are logged.
func (b *BeepBackend) emit(ev Event) {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	b.mu.Unlock()

	select {
	case b.events <- ev:
	default:
		if ev.Kind != EventPositionUpdate {
			logger.Warn("backend event dropped, consumer too slow",
				logger.String("kind", ev.Kind.String()),
				logger.Uint64("seq", ev.Seq))
		}
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Package playlist owns ordered track collections, the current play
// position, and the shuffle/repeat policies that drive track selection.
package playlist

import (
	"math/rand"
	"sync"

	"audiowave/model"
)

// Engine holds an ordered sequence of tracks plus the cursor state used
// by the playback controller to pick the next track.
//
// The controller is the only writer during playback; the mutex exists so
// HTTP handlers can take consistent snapshots while a track is playing.
type Engine struct {
	mu sync.Mutex

	tracks  []model.Track
	current int // index into tracks, -1 when nothing is selected
	repeat  model.RepeatMode
	shuffle bool

	// perm is the shuffle permutation over track indices, materialized
	// lazily on the first shuffled pick and invalidated by any edit.
	perm    []int
	permPos int
}

// New creates an empty engine with repeat off and shuffle off.
func New() *Engine {
	return &Engine{
		current: -1,
		repeat:  model.RepeatNone,
	}
}

// Add appends tracks to the end of the playlist.
func (e *Engine) Add(tracks ...model.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = append(e.tracks, tracks...)
	e.perm = nil
}

// Remove deletes the track at index. The current position keeps pointing
// at the same logical track; if the current track itself is removed the
// cursor clamps to the track that slid into its slot.
func (e *Engine) Remove(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.tracks) {
		return false
	}
	e.tracks = append(e.tracks[:index], e.tracks[index+1:]...)
	switch {
	case len(e.tracks) == 0:
		e.current = -1
	case e.current == index:
		if e.current >= len(e.tracks) {
			e.current = len(e.tracks) - 1
		}
	case e.current > index:
		e.current--
	}
	e.perm = nil
	return true
}

// Reorder moves the track at from to position to, keeping the cursor on
// the same logical track.
func (e *Engine) Reorder(from, to int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if from < 0 || from >= len(e.tracks) || to < 0 || to >= len(e.tracks) {
		return false
	}
	if from == to {
		return true
	}
	track := e.tracks[from]
	e.tracks = append(e.tracks[:from], e.tracks[from+1:]...)
	rest := append([]model.Track{track}, e.tracks[to:]...)
	e.tracks = append(e.tracks[:to], rest...)

	switch {
	case e.current == from:
		e.current = to
	case from < e.current && to >= e.current:
		e.current--
	case from > e.current && to <= e.current:
		e.current++
	}
	e.perm = nil
	return true
}

// Clear drops all tracks and resets the cursor.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = nil
	e.current = -1
	e.perm = nil
}

// SetRepeatMode sets the repeat policy.
func (e *Engine) SetRepeatMode(mode model.RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repeat = mode
}

// RepeatMode returns the active repeat policy.
func (e *Engine) RepeatMode() model.RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repeat
}

// SetShuffle enables or disables shuffled ordering. Enabling drops any
// previous permutation so a fresh one is drawn on the next pick.
func (e *Engine) SetShuffle(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shuffle == on {
		return
	}
	e.shuffle = on
	e.perm = nil
}

// ToggleShuffle flips shuffle mode and reports the new state.
func (e *Engine) ToggleShuffle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shuffle = !e.shuffle
	e.perm = nil
	return e.shuffle
}

// Shuffle reports whether shuffled ordering is active.
func (e *Engine) Shuffle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffle
}

// Len returns the number of tracks.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tracks)
}

// Tracks returns a copy of the playlist in insertion order.
func (e *Engine) Tracks() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Track, len(e.tracks))
	copy(out, e.tracks)
	return out
}

// Current returns the track under the cursor, or nil.
func (e *Engine) Current() *model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *Engine) currentLocked() *model.Track {
	if e.current < 0 || e.current >= len(e.tracks) {
		return nil
	}
	t := e.tracks[e.current]
	return &t
}

// CurrentIndex returns the cursor position in insertion order, -1 if unset.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Select points the cursor at index and returns the track there.
func (e *Engine) Select(index int) *model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.tracks) {
		return nil
	}
	e.current = index
	if e.shuffle {
		e.syncPermLocked()
	}
	return e.currentLocked()
}

// Next advances the cursor according to the shuffle and repeat policies
// and returns the new current track. A nil return signals end of
// playlist (repeat=none past the last track, or an empty playlist); the
// cursor is reset so a later Next starts over from the beginning.
func (e *Engine) Next() *model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tracks) == 0 {
		return nil
	}
	if e.repeat == model.RepeatOne && e.current >= 0 {
		return e.currentLocked()
	}
	if e.shuffle {
		return e.nextShuffledLocked()
	}

	switch {
	case e.current < 0:
		e.current = 0
	case e.current < len(e.tracks)-1:
		e.current++
	case e.repeat == model.RepeatAll:
		e.current = 0
	default:
		// End of playlist: report it once and reset.
		e.current = -1
		return nil
	}
	return e.currentLocked()
}

// Previous moves the cursor back according to the shuffle and repeat
// policies. With repeat=none, stepping before the first track returns nil.
func (e *Engine) Previous() *model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tracks) == 0 {
		return nil
	}
	if e.repeat == model.RepeatOne && e.current >= 0 {
		return e.currentLocked()
	}
	if e.shuffle {
		return e.prevShuffledLocked()
	}

	switch {
	case e.current < 0:
		e.current = len(e.tracks) - 1
	case e.current > 0:
		e.current--
	case e.repeat == model.RepeatAll:
		e.current = len(e.tracks) - 1
	default:
		e.current = -1
		return nil
	}
	return e.currentLocked()
}

// nextShuffledLocked walks the shuffle permutation. When the permutation
// runs out: repeat=all draws a fresh one, repeat=none ends the playlist.
func (e *Engine) nextShuffledLocked() *model.Track {
	if e.perm == nil {
		e.regenPermLocked(e.current)
		if e.current >= 0 {
			// Keep the playing track as the permutation origin so the
			// remaining picks cover everything else first.
			e.syncPermLocked()
		} else {
			e.permPos = -1
		}
	}

	if e.permPos < len(e.perm)-1 {
		e.permPos++
		e.current = e.perm[e.permPos]
		return e.currentLocked()
	}

	if e.repeat == model.RepeatAll {
		e.regenPermLocked(e.current)
		e.permPos = 0
		e.current = e.perm[0]
		return e.currentLocked()
	}

	e.current = -1
	e.perm = nil
	return nil
}

func (e *Engine) prevShuffledLocked() *model.Track {
	if e.perm == nil || e.permPos <= 0 {
		if e.repeat == model.RepeatAll && len(e.perm) > 0 {
			e.permPos = len(e.perm) - 1
			e.current = e.perm[e.permPos]
			return e.currentLocked()
		}
		if e.perm == nil {
			return e.currentLocked()
		}
		e.current = -1
		e.perm = nil
		return nil
	}
	e.permPos--
	e.current = e.perm[e.permPos]
	return e.currentLocked()
}

// regenPermLocked draws a Fisher-Yates permutation of all track indices.
// With more than one track, avoid is never the first pick, so the track
// just played cannot immediately replay.
func (e *Engine) regenPermLocked(avoid int) {
	n := len(e.tracks)
	e.perm = make([]int, n)
	for i := range e.perm {
		e.perm[i] = i
	}
	rand.Shuffle(n, func(i, j int) {
		e.perm[i], e.perm[j] = e.perm[j], e.perm[i]
	})
	if n > 1 && avoid >= 0 && e.perm[0] == avoid {
		j := 1 + rand.Intn(n-1)
		e.perm[0], e.perm[j] = e.perm[j], e.perm[0]
	}
	e.permPos = -1
}

// syncPermLocked moves the current track to the front of the permutation
// and points the walk position at it.
func (e *Engine) syncPermLocked() {
	if e.perm == nil {
		e.regenPermLocked(-1)
	}
	for i, idx := range e.perm {
		if idx == e.current {
			e.perm[0], e.perm[i] = e.perm[i], e.perm[0]
			break
		}
	}
	e.permPos = 0
}

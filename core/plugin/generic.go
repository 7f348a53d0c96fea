package plugin

import (
	"encoding/json"

	"audiowave/core/playback"
)

// Func adapts a plain function into a generic plugin. Generic plugins
// receive every event kind.
type Func struct {
	id string
	fn func(playback.Event) error
}

// NewFunc wraps fn as a generic plugin with the given id.
func NewFunc(id string, fn func(playback.Event) error) *Func {
	return &Func{id: id, fn: fn}
}

func (f *Func) ID() string                          { return f.id }
func (f *Func) Capability() Capability              { return CapGeneric }
func (f *Func) HandleEvent(ev playback.Event) error { return f.fn(ev) }
func (f *Func) Configure(json.RawMessage) error     { return nil }

package plugin

import (
	"encoding/json"
	"fmt"
	"sync"

	"audiowave/core/playback"
)

// FilterTarget is the backend hook the equalizer adjusts.
type FilterTarget interface {
	SetEqualizer(gains []float64) error
}

// Presets are 10-band gain tables in dB, low bands first.
var eqPresets = map[string][]float64{
	"flat":       {0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	"rock":       {5, 4, 3, 1, -1, -1, 1, 3, 4, 5},
	"pop":        {-1, 1, 3, 4, 3, 1, 0, -1, -1, -2},
	"jazz":       {3, 2, 1, 2, -1, -1, 0, 1, 2, 3},
	"classical":  {4, 3, 2, 0, 0, 0, -1, 2, 3, 4},
	"bass_boost": {7, 6, 5, 3, 1, 0, 0, 0, 0, 0},
	"vocal":      {-2, -1, 0, 2, 4, 4, 3, 1, 0, -1},
}

// Equalizer pushes a 10-band gain table to the backend audio filter. It
// re-asserts the table on every track change because loading a track
// rebuilds the backend pipeline.
type Equalizer struct {
	target FilterTarget

	mu     sync.Mutex
	gains  []float64
	preset string
}

// NewEqualizer creates an equalizer plugin over a backend filter hook.
func NewEqualizer(target FilterTarget) *Equalizer {
	return &Equalizer{
		target: target,
		gains:  append([]float64(nil), eqPresets["flat"]...),
		preset: "flat",
	}
}

func (e *Equalizer) ID() string             { return "equalizer" }
func (e *Equalizer) Capability() Capability { return CapEqualizer }

// HandleEvent re-applies the gain table after a pipeline swap.
func (e *Equalizer) HandleEvent(ev playback.Event) error {
	if ev.Kind != playback.EventTrackChanged {
		return nil
	}
	return e.apply()
}

// Configure accepts {"preset": name} or {"gains": [10 floats]}.
func (e *Equalizer) Configure(cfg json.RawMessage) error {
	var c struct {
		Preset string    `json:"preset"`
		Gains  []float64 `json:"gains"`
	}
	if err := json.Unmarshal(cfg, &c); err != nil {
		return fmt.Errorf("equalizer config: %w", err)
	}
	switch {
	case c.Preset != "":
		return e.SetPreset(c.Preset)
	case c.Gains != nil:
		return e.SetGains(c.Gains)
	}
	return fmt.Errorf("equalizer config: preset or gains required")
}

// SetPreset applies a named preset.
func (e *Equalizer) SetPreset(name string) error {
	gains, ok := eqPresets[name]
	if !ok {
		return fmt.Errorf("unknown equalizer preset: %s", name)
	}
	e.mu.Lock()
	e.preset = name
	e.gains = append([]float64(nil), gains...)
	e.mu.Unlock()
	return e.apply()
}

// SetGains applies an explicit 10-band table.
func (e *Equalizer) SetGains(gains []float64) error {
	if len(gains) != 10 {
		return fmt.Errorf("equalizer expects 10 bands, got %d", len(gains))
	}
	e.mu.Lock()
	e.preset = ""
	e.gains = append([]float64(nil), gains...)
	e.mu.Unlock()
	return e.apply()
}

// Gains returns the active table and preset name.
func (e *Equalizer) Gains() ([]float64, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.gains...), e.preset
}

func (e *Equalizer) apply() error {
	if e.target == nil {
		return nil
	}
	e.mu.Lock()
	gains := append([]float64(nil), e.gains...)
	e.mu.Unlock()
	return e.target.SetEqualizer(gains)
}

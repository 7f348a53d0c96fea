package plugin

import (
	"encoding/json"
	"testing"

	"audiowave/core/playback"
	"audiowave/model"
)

type recordingTarget struct {
	applied [][]float64
}

func (r *recordingTarget) SetEqualizer(gains []float64) error {
	r.applied = append(r.applied, gains)
	return nil
}

func TestEqualizerPreset(t *testing.T) {
	target := &recordingTarget{}
	eq := NewEqualizer(target)

	if err := eq.SetPreset("rock"); err != nil {
		t.Fatalf("SetPreset(rock) = %v", err)
	}
	if len(target.applied) != 1 {
		t.Fatalf("applied %d tables, want 1", len(target.applied))
	}
	gains, preset := eq.Gains()
	if preset != "rock" || len(gains) != 10 {
		t.Fatalf("Gains() = %v, %q", gains, preset)
	}

	if err := eq.SetPreset("nope"); err == nil {
		t.Fatal("unknown preset accepted")
	}
}

func TestEqualizerSetGainsValidatesBands(t *testing.T) {
	eq := NewEqualizer(&recordingTarget{})
	if err := eq.SetGains([]float64{1, 2, 3}); err == nil {
		t.Fatal("short gain table accepted")
	}
	if err := eq.SetGains(make([]float64, 10)); err != nil {
		t.Fatalf("SetGains() = %v", err)
	}
}

func TestEqualizerConfigure(t *testing.T) {
	target := &recordingTarget{}
	eq := NewEqualizer(target)

	if err := eq.Configure(json.RawMessage(`{"preset":"jazz"}`)); err != nil {
		t.Fatalf("Configure(preset) = %v", err)
	}
	if _, preset := eq.Gains(); preset != "jazz" {
		t.Fatalf("preset = %q, want jazz", preset)
	}

	if err := eq.Configure(json.RawMessage(`{"gains":[1,1,1,1,1,1,1,1,1,1]}`)); err != nil {
		t.Fatalf("Configure(gains) = %v", err)
	}
	if _, preset := eq.Gains(); preset != "" {
		t.Fatalf("preset after explicit gains = %q, want empty", preset)
	}

	if err := eq.Configure(json.RawMessage(`{}`)); err == nil {
		t.Fatal("empty config accepted")
	}
}

func TestEqualizerReappliesOnTrackChange(t *testing.T) {
	target := &recordingTarget{}
	eq := NewEqualizer(target)
	eq.SetPreset("pop")

	before := len(target.applied)
	eq.HandleEvent(playback.Event{
		Kind:  playback.EventTrackChanged,
		Track: &model.Track{URI: "a"},
	})
	eq.HandleEvent(playback.Event{Kind: playback.EventStateChanged})

	if len(target.applied) != before+1 {
		t.Fatalf("applied %d times after events, want %d", len(target.applied), before+1)
	}
}

package plugin

import (
	"errors"
	"sync"
	"testing"
	"time"

	"audiowave/core/playback"
	"audiowave/model"
)

func trackEvent(uri string) playback.Event {
	return playback.Event{
		Kind:  playback.EventTrackChanged,
		Track: &model.Track{URI: uri},
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	h := NewHost()
	if err := h.Register(NewFunc("p", func(playback.Event) error { return nil })); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if err := h.Register(NewFunc("p", func(playback.Event) error { return nil })); err == nil {
		t.Fatal("duplicate Register() succeeded")
	}
}

func TestDispatchReachesActivePlugins(t *testing.T) {
	h := NewHost()
	var mu sync.Mutex
	var got []string
	h.Register(NewFunc("p", func(ev playback.Event) error {
		mu.Lock()
		got = append(got, ev.Track.URI)
		mu.Unlock()
		return nil
	}))

	h.Dispatch(trackEvent("a"))
	h.Dispatch(trackEvent("b"))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("dispatched = %v, want [a b]", got)
	}
}

func TestDisabledPluginSkipped(t *testing.T) {
	h := NewHost()
	calls := 0
	h.Register(NewFunc("p", func(playback.Event) error {
		calls++
		return nil
	}))

	h.Disable("p")
	h.Dispatch(trackEvent("a"))
	if calls != 0 {
		t.Fatalf("disabled plugin received %d events", calls)
	}

	h.Enable("p")
	h.Dispatch(trackEvent("a"))
	if calls != 1 {
		t.Fatalf("re-enabled plugin received %d events, want 1", calls)
	}
}

func TestPanicIsolatedFromOtherPlugins(t *testing.T) {
	h := NewHost()
	h.Register(NewFunc("bad", func(playback.Event) error {
		panic("boom")
	}))
	survived := false
	h.Register(NewFunc("good", func(playback.Event) error {
		survived = true
		return nil
	}))

	h.Dispatch(trackEvent("a"))

	if !survived {
		t.Fatal("plugin after the panicking one was not dispatched")
	}
	for _, info := range h.Plugins() {
		if info.ID == "bad" && info.Failures != 1 {
			t.Fatalf("panicking plugin failures = %d, want 1", info.Failures)
		}
	}
}

func TestAutoDisableAfterRepeatedFailures(t *testing.T) {
	h := NewHost(WithFailureLimit(3))
	h.Register(NewFunc("flaky", func(playback.Event) error {
		return errors.New("nope")
	}))

	for i := 0; i < 3; i++ {
		h.Dispatch(trackEvent("a"))
	}

	infos := h.Plugins()
	if len(infos) != 1 {
		t.Fatalf("Plugins() = %d entries, want 1", len(infos))
	}
	if infos[0].State != StateDisabled {
		t.Fatalf("state = %s, want disabled", infos[0].State)
	}
	if infos[0].Failures != 3 {
		t.Fatalf("failures = %d, want 3", infos[0].Failures)
	}

	// Enable resets the count and reactivates.
	h.Enable("flaky")
	infos = h.Plugins()
	if infos[0].State != StateActive || infos[0].Failures != 0 {
		t.Fatalf("after Enable: %+v", infos[0])
	}
}

func TestDispatchBudgetCutsOffSlowPlugin(t *testing.T) {
	h := NewHost(WithDispatchBudget(20 * time.Millisecond))
	release := make(chan struct{})
	h.Register(NewFunc("slow", func(playback.Event) error {
		<-release
		return nil
	}))

	start := time.Now()
	h.Dispatch(trackEvent("a"))
	elapsed := time.Since(start)
	close(release)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("dispatch blocked for %s", elapsed)
	}
	infos := h.Plugins()
	if infos[0].Failures != 1 {
		t.Fatalf("slow plugin failures = %d, want 1", infos[0].Failures)
	}
}

func TestCapabilityRouting(t *testing.T) {
	h := NewHost()
	eq := NewEqualizer(nil)
	h.Register(eq)

	genericSeen := 0
	h.Register(NewFunc("observer", func(playback.Event) error {
		genericSeen++
		return nil
	}))

	// Equalizers don't subscribe to position updates; generic plugins
	// see everything.
	h.Dispatch(playback.Event{Kind: playback.EventPositionUpdate})
	h.Dispatch(playback.Event{Kind: playback.EventVolumeChanged})

	if genericSeen != 2 {
		t.Fatalf("generic plugin saw %d events, want 2", genericSeen)
	}
	for _, info := range h.Plugins() {
		if info.ID == "equalizer" && info.Failures != 0 {
			t.Fatalf("equalizer recorded failures on unrouted events: %d", info.Failures)
		}
	}
}

func TestUnregister(t *testing.T) {
	h := NewHost()
	h.Register(NewFunc("p", func(playback.Event) error { return nil }))

	if !h.Unregister("p") {
		t.Fatal("Unregister() = false")
	}
	if h.Unregister("p") {
		t.Fatal("second Unregister() = true")
	}
	if len(h.Plugins()) != 0 {
		t.Fatal("registry not empty after Unregister")
	}
}

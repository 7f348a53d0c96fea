package plugin

import (
	"encoding/json"
	"testing"
	"time"

	"audiowave/core/playback"
)

func TestSleepTimerFires(t *testing.T) {
	stopped := make(chan struct{})
	st := NewSleepTimer(func() { close(stopped) })

	st.Arm(10 * time.Millisecond)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("armed timer never stopped playback")
	}
	if _, err := st.Remaining(); err == nil {
		t.Fatal("Remaining() after firing = nil error, want not armed")
	}
}

func TestSleepTimerCancel(t *testing.T) {
	stopped := make(chan struct{})
	st := NewSleepTimer(func() { close(stopped) })

	st.Arm(30 * time.Millisecond)
	st.Cancel()

	select {
	case <-stopped:
		t.Fatal("canceled timer still stopped playback")
	case <-time.After(100 * time.Millisecond):
	}

	// Canceling again is harmless.
	st.Cancel()
}

func TestSleepTimerRearmReplacesDeadline(t *testing.T) {
	st := NewSleepTimer(func() {})

	st.Arm(time.Minute)
	st.Arm(time.Hour)

	left, err := st.Remaining()
	if err != nil {
		t.Fatalf("Remaining() = %v", err)
	}
	if left <= time.Minute {
		t.Fatalf("Remaining() = %v, want the rearmed hour deadline", left)
	}
}

func TestSleepTimerConfigure(t *testing.T) {
	st := NewSleepTimer(func() {})

	if err := st.Configure(json.RawMessage(`{"minutes": 30}`)); err != nil {
		t.Fatalf("Configure = %v", err)
	}
	left, err := st.Remaining()
	if err != nil {
		t.Fatalf("Remaining() = %v", err)
	}
	if left <= 29*time.Minute || left > 30*time.Minute {
		t.Fatalf("Remaining() = %v, want about 30m", left)
	}

	if err := st.Configure(json.RawMessage(`{"cancel": true}`)); err != nil {
		t.Fatalf("Configure cancel = %v", err)
	}
	if _, err := st.Remaining(); err == nil {
		t.Fatal("Remaining() after cancel = nil error, want not armed")
	}

	if err := st.Configure(json.RawMessage(`{"minutes": -5}`)); err == nil {
		t.Fatal("Configure accepted negative minutes")
	}
	if err := st.Configure(json.RawMessage(`{bad`)); err == nil {
		t.Fatal("Configure accepted malformed JSON")
	}
}

func TestSleepTimerManualStopDisarms(t *testing.T) {
	st := NewSleepTimer(func() {})
	st.Arm(time.Hour)

	if err := st.HandleEvent(playback.Event{
		Kind:  playback.EventStateChanged,
		State: playback.StateStopped,
	}); err != nil {
		t.Fatalf("HandleEvent = %v", err)
	}
	if _, err := st.Remaining(); err == nil {
		t.Fatal("stop event left the timer armed")
	}
}

package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"audiowave/core/playback"
	"audiowave/logger"
)

var errTimerNotArmed = errors.New("sleep timer is not armed")

// SleepTimer stops playback after a configured delay. It is armed
// through Configure with {"minutes": 30} and disarmed with
// {"cancel": true}. Stopping playback by hand disarms it too.
type SleepTimer struct {
	stop func()

	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
}

// NewSleepTimer returns a disarmed timer that calls stop when it fires.
func NewSleepTimer(stop func()) *SleepTimer {
	return &SleepTimer{stop: stop}
}

func (s *SleepTimer) ID() string             { return "sleep_timer" }
func (s *SleepTimer) Capability() Capability { return CapGeneric }

func (s *SleepTimer) HandleEvent(ev playback.Event) error {
	if ev.Kind == playback.EventStateChanged && ev.State == playback.StateStopped {
		s.Cancel()
	}
	return nil
}

func (s *SleepTimer) Configure(cfg json.RawMessage) error {
	var req struct {
		Minutes float64 `json:"minutes"`
		Cancel  bool    `json:"cancel"`
	}
	if err := json.Unmarshal(cfg, &req); err != nil {
		return fmt.Errorf("parse sleep timer config: %w", err)
	}
	if req.Cancel {
		s.Cancel()
		return nil
	}
	if req.Minutes <= 0 {
		return fmt.Errorf("sleep timer minutes must be positive, got %v", req.Minutes)
	}
	s.Arm(time.Duration(req.Minutes * float64(time.Minute)))
	return nil
}

// Arm schedules a stop after d, replacing any pending timer.
func (s *SleepTimer) Arm(d time.Duration) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.deadline = time.Now().Add(d)
	s.timer = time.AfterFunc(d, s.fire)
	s.mu.Unlock()

	logger.Info("sleep timer armed", logger.Duration("after", d))
}

// Cancel disarms a pending timer. Canceling a disarmed timer is a no-op.
func (s *SleepTimer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.deadline = time.Time{}
}

// Remaining reports the time left until the stop fires.
func (s *SleepTimer) Remaining() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return 0, errTimerNotArmed
	}
	if r := time.Until(s.deadline); r > 0 {
		return r, nil
	}
	return 0, nil
}

func (s *SleepTimer) fire() {
	s.mu.Lock()
	s.timer = nil
	s.deadline = time.Time{}
	s.mu.Unlock()

	logger.Info("sleep timer expired, stopping playback")
	s.stop()
}

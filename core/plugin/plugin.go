// Package plugin hosts capability-scoped extensions and routes playback
// events to them with failure isolation.
package plugin

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"audiowave/core/playback"
	"audiowave/logger"
)

// Capability classifies a plugin's role. Events are routed by capability
// so a lyrics plugin never sees volume changes it cannot use.
type Capability string

const (
	CapEqualizer Capability = "equalizer"
	CapLyrics    Capability = "lyrics"
	CapScrobbler Capability = "scrobbler"
	CapGeneric   Capability = "generic"
)

// LifecycleState tracks a registered plugin through its life.
type LifecycleState string

const (
	StateLoaded   LifecycleState = "loaded"
	StateActive   LifecycleState = "active"
	StateDisabled LifecycleState = "disabled"
)

// Plugin is the extension contract. Implementations receive read-only
// event snapshots and never own track or playlist data.
type Plugin interface {
	ID() string
	Capability() Capability
	// HandleEvent processes one controller event. A returned error is
	// isolated by the host: logged, counted, never propagated.
	HandleEvent(ev playback.Event) error
	// Configure applies an opaque plugin-scoped configuration blob.
	Configure(cfg json.RawMessage) error
}

// Info is the externally visible registry entry.
type Info struct {
	ID         string         `json:"id"`
	Capability Capability     `json:"capability"`
	State      LifecycleState `json:"state"`
	Failures   int            `json:"failures"`
}

// capabilityEvents lists which event kinds each capability subscribes to.
var capabilityEvents = map[Capability]map[playback.EventKind]bool{
	CapEqualizer: {
		playback.EventTrackChanged: true,
		playback.EventStateChanged: true,
	},
	CapLyrics: {
		playback.EventTrackChanged:   true,
		playback.EventPositionUpdate: true,
	},
	CapScrobbler: {
		playback.EventTrackChanged:   true,
		playback.EventPositionUpdate: true,
		playback.EventStateChanged:   true,
	},
	// Generic plugins see everything.
}

const (
	defaultDispatchBudget = 200 * time.Millisecond
	defaultFailureLimit   = 5
)

type entry struct {
	plugin   Plugin
	state    LifecycleState
	failures int
	warned   bool
}

// Host owns the plugin registry and broadcasts controller events to
// active plugins. A plugin failing during dispatch never crashes the
// host or blocks other plugins.
type Host struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	budget    time.Duration
	failLimit int
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithDispatchBudget bounds per-plugin execution time per event.
func WithDispatchBudget(d time.Duration) HostOption {
	return func(h *Host) { h.budget = d }
}

// WithFailureLimit sets how many failures disable a plugin.
func WithFailureLimit(n int) HostOption {
	return func(h *Host) { h.failLimit = n }
}

// NewHost creates an empty plugin host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		entries:   make(map[string]*entry),
		budget:    defaultDispatchBudget,
		failLimit: defaultFailureLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a plugin to the registry in the active state.
func (h *Host) Register(p Plugin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.entries[p.ID()]; exists {
		return fmt.Errorf("plugin already registered: %s", p.ID())
	}
	h.entries[p.ID()] = &entry{plugin: p, state: StateActive}
	h.order = append(h.order, p.ID())
	logger.Info("plugin registered",
		logger.String("plugin", p.ID()),
		logger.String("capability", string(p.Capability())))
	return nil
}

// Unregister removes a plugin from the registry.
func (h *Host) Unregister(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entries[id]; !ok {
		return false
	}
	delete(h.entries, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// Enable re-activates a plugin and resets its failure count.
func (h *Host) Enable(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[id]
	if !ok {
		return false
	}
	e.state = StateActive
	e.failures = 0
	e.warned = false
	return true
}

// Disable deactivates a plugin without removing it.
func (h *Host) Disable(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[id]
	if !ok {
		return false
	}
	e.state = StateDisabled
	return true
}

// Get returns a registered plugin by id.
func (h *Host) Get(id string) (Plugin, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[id]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// Configure applies a configuration blob to a plugin.
func (h *Host) Configure(id string, cfg json.RawMessage) error {
	p, ok := h.Get(id)
	if !ok {
		return fmt.Errorf("plugin not found: %s", id)
	}
	return p.Configure(cfg)
}

// Plugins lists the registry in registration order.
func (h *Host) Plugins() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Info, 0, len(h.order))
	for _, id := range h.order {
		e := h.entries[id]
		out = append(out, Info{
			ID:         id,
			Capability: e.plugin.Capability(),
			State:      e.state,
			Failures:   e.failures,
		})
	}
	return out
}

// Dispatch broadcasts ev to all active plugins whose capability
// subscribes to its kind. It implements playback.Dispatcher and runs on
// the controller's event path, so each plugin's execution is bounded by
// the dispatch budget.
func (h *Host) Dispatch(ev playback.Event) {
	h.mu.RLock()
	ids := make([]string, len(h.order))
	copy(ids, h.order)
	h.mu.RUnlock()

	for _, id := range ids {
		h.mu.RLock()
		e, ok := h.entries[id]
		if !ok || e.state != StateActive {
			h.mu.RUnlock()
			continue
		}
		p := e.plugin
		h.mu.RUnlock()

		if kinds, scoped := capabilityEvents[p.Capability()]; scoped && !kinds[ev.Kind] {
			continue
		}
		if err := h.invoke(p, ev); err != nil {
			h.recordFailure(id, ev, err)
		}
	}
}

// invoke runs a single plugin handler, converting panics to errors and
// cutting it off at the dispatch budget. A handler that overruns keeps
// its goroutine but can no longer block playback.
func (h *Host) invoke(p Plugin, ev playback.Event) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("plugin panic: %v", r)
			}
		}()
		done <- p.HandleEvent(ev)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(h.budget):
		return fmt.Errorf("plugin %s exceeded dispatch budget %s", p.ID(), h.budget)
	}
}

func (h *Host) recordFailure(id string, ev playback.Event, err error) {
	h.mu.Lock()
	e, ok := h.entries[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	e.failures++
	failures := e.failures
	disabled := false
	warned := e.warned
	if e.failures >= h.failLimit && e.state == StateActive {
		e.state = StateDisabled
		e.warned = true
		disabled = true
	}
	h.mu.Unlock()

	logger.Warn("plugin dispatch failed",
		logger.String("plugin", id),
		logger.String("event", string(ev.Kind)),
		logger.Int("failures", failures),
		logger.ErrorField(err))

	// Repeated failures surface one warning, not one per event.
	if disabled && !warned {
		logger.Error("plugin disabled after repeated failures",
			logger.String("plugin", id),
			logger.Int("failures", failures))
	}
}

// Macro hook registry for tool-change phase callbacks.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import "sync"

// Phase names an extension point in the tool-change life cycle.
type Phase string

const (
	PhasePark         Phase = "PARK"
	PhaseBeforeUnload Phase = "BEFORE_UNLOAD"
	PhaseOnUnload     Phase = "ON_UNLOAD"
	PhaseOnLoad       Phase = "ON_LOAD"
	PhaseAfterLoad    Phase = "AFTER_LOAD"
)

// Phases lists all extension points in life-cycle order.
var Phases = []Phase{PhasePark, PhaseBeforeUnload, PhaseOnUnload, PhaseOnLoad, PhaseAfterLoad}

// HookFunc runs the user-defined motion commands bound to a phase. It
// blocks until the motion engine reports the moves complete.
type HookFunc func() error

// Outcome reports what Invoke did for a phase.
type Outcome int

const (
	// Skipped means no hook is bound to the phase. Never an error.
	Skipped Outcome = iota
	// Ran means a bound hook executed successfully.
	Ran
)

// HookRegistry maps life-cycle phases to zero-or-one callback each.
// Hooks are bound once at configuration load; invocation is read-only.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[Phase]HookFunc
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[Phase]HookFunc)}
}

// Bind attaches fn to the given phase, replacing any previous binding.
// A nil fn removes the binding.
func (r *HookRegistry) Bind(phase Phase, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.hooks, phase)
		return
	}
	r.hooks[phase] = fn
}

// Bound reports whether a hook is attached to the phase.
func (r *HookRegistry) Bound(phase Phase) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hooks[phase]
	return ok
}

// Invoke runs the hook bound to phase, if any. An unbound phase returns
// Skipped with a nil error. A bound hook that fails returns Ran and a
// *HookError carrying the motion engine's error.
func (r *HookRegistry) Invoke(phase Phase) (Outcome, error) {
	r.mu.RLock()
	fn := r.hooks[phase]
	r.mu.RUnlock()

	if fn == nil {
		return Skipped, nil
	}
	if err := fn(); err != nil {
		return Ran, &HookError{Phase: phase, Err: err}
	}
	return Ran, nil
}

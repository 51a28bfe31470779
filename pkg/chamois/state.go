// Tool and filament state tracking for the Chamois MMU.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import "sync"

// MmuState is the commanded life-cycle state of the MMU. It tracks what
// the orchestrator is doing, not what the hardware has confirmed.
type MmuState int

const (
	StateIdle MmuState = iota
	StateHoming
	StateParking
	StateUnloading
	StateSelecting
	StateLoading
	StateReleasing
	StateDisabling
	StateHalting
	StateError
)

func (s MmuState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHoming:
		return "homing"
	case StateParking:
		return "parking"
	case StateUnloading:
		return "unloading"
	case StateSelecting:
		return "selecting"
	case StateLoading:
		return "loading"
	case StateReleasing:
		return "releasing"
	case StateDisabling:
		return "disabling"
	case StateHalting:
		return "halting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Presence is the confirmed filament position. It lags the commanded
// MmuState on purpose: it changes only when the hardware has acked the
// transition, so it is never optimistic.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceEmpty
	PresenceLoaded
)

func (p Presence) String() string {
	switch p {
	case PresenceEmpty:
		return "empty"
	case PresenceLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Tracker caches the last confirmed truth about the MMU: the active tool,
// filament presence, and the most recent hardware status report. The
// controller is the only writer; reads may come from any goroutine.
type Tracker struct {
	mu       sync.Mutex
	state    MmuState
	presence Presence
	tool     int
	hasTool  bool
	hw       HardwareStatus
	hwValid  bool
}

// NewTracker returns a tracker in the pre-HOME state: idle, no tool,
// filament position unknown.
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle, presence: PresenceUnknown}
}

// State returns the current commanded life-cycle state.
func (t *Tracker) State() MmuState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CurrentTool returns the active tool index. ok is false when no tool has
// been selected since the last HOME/HALT.
func (t *Tracker) CurrentTool() (tool int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tool, t.hasTool
}

// IsLoaded reports whether filament is confirmed loaded into the toolhead.
func (t *Tracker) IsLoaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presence == PresenceLoaded
}

// Presence returns the confirmed filament presence.
func (t *Tracker) Presence() Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presence
}

func (t *Tracker) setState(s MmuState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// noteSelected records a provisional tool selection. Presence is not
// touched: the filament is not loaded until the load loop confirms it.
func (t *Tracker) noteSelected(tool int) {
	t.mu.Lock()
	t.tool = tool
	t.hasTool = true
	t.mu.Unlock()
}

// noteLoaded records a confirmed load of the given tool.
func (t *Tracker) noteLoaded(tool int) {
	t.mu.Lock()
	t.tool = tool
	t.hasTool = true
	t.presence = PresenceLoaded
	t.mu.Unlock()
}

// noteEmpty records a confirmed unload.
func (t *Tracker) noteEmpty() {
	t.mu.Lock()
	t.presence = PresenceEmpty
	t.mu.Unlock()
}

// noteUnknown forgets the filament position, as after HOME or HALT.
func (t *Tracker) noteUnknown() {
	t.mu.Lock()
	t.presence = PresenceUnknown
	t.hasTool = false
	t.mu.Unlock()
}

// noteHardware caches the latest raw status report from the device.
func (t *Tracker) noteHardware(hw HardwareStatus) {
	t.mu.Lock()
	t.hw = hw
	t.hwValid = true
	t.mu.Unlock()
}

// Hardware returns the last cached hardware status report.
func (t *Tracker) Hardware() (HardwareStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hw, t.hwValid
}

// GetStatus returns the tracker state for status queries and the API
// server.
func (t *Tracker) GetStatus() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	tool := -1
	if t.hasTool {
		tool = t.tool
	}
	status := map[string]any{
		"state":         t.state.String(),
		"filament":      t.presence.String(),
		"tool":          tool,
		"loaded":        t.presence == PresenceLoaded,
		"initialized":   false,
		"tool_changes":  uint64(0),
		"extruded_dist": uint64(0),
	}
	if t.hwValid {
		status["initialized"] = t.hw.Initialized
		status["tool_changes"] = t.hw.ToolChanges
		status["extruded_dist"] = t.hw.TotalExtruded
	}
	return status
}

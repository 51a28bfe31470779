package chamois

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerInitialState(t *testing.T) {
	tr := NewTracker()

	assert.Equal(t, StateIdle, tr.State())
	assert.Equal(t, PresenceUnknown, tr.Presence())
	assert.False(t, tr.IsLoaded())
	_, ok := tr.CurrentTool()
	assert.False(t, ok)
}

func TestTrackerSelectionIsProvisional(t *testing.T) {
	tr := NewTracker()
	tr.noteEmpty()
	tr.noteSelected(2)

	tool, ok := tr.CurrentTool()
	assert.True(t, ok)
	assert.Equal(t, 2, tool)
	// Selection alone never implies loaded filament.
	assert.False(t, tr.IsLoaded())

	tr.noteLoaded(2)
	assert.True(t, tr.IsLoaded())
}

func TestTrackerStatusMap(t *testing.T) {
	tr := NewTracker()
	tr.noteLoaded(1)
	tr.noteHardware(HardwareStatus{Initialized: true, ToolChanges: 7, TotalExtruded: 900})

	status := tr.GetStatus()
	assert.Equal(t, "idle", status["state"])
	assert.Equal(t, "loaded", status["filament"])
	assert.Equal(t, 1, status["tool"])
	assert.Equal(t, true, status["initialized"])
	assert.Equal(t, uint64(7), status["tool_changes"])
	assert.Equal(t, uint64(900), status["extruded_dist"])
}

func TestStateStrings(t *testing.T) {
	names := map[MmuState]string{
		StateIdle:      "idle",
		StateHoming:    "homing",
		StateParking:   "parking",
		StateUnloading: "unloading",
		StateSelecting: "selecting",
		StateLoading:   "loading",
		StateReleasing: "releasing",
		StateDisabling: "disabling",
		StateHalting:   "halting",
		StateError:     "error",
	}
	for state, want := range names {
		assert.Equal(t, want, state.String())
	}
}

package chamois

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chamois-host/pkg/gcode"
)

func TestRegisterCommandsExposesToolChanges(t *testing.T) {
	link := &fakeLink{initialized: true, loaded: false, loadSteps: 1}
	hooks := NewHookRegistry()
	c := testController(link, hooks, 10)

	d := gcode.NewDispatcher()
	var responses []string
	d.SetResponder(func(msg string) { responses = append(responses, msg) })
	RegisterCommands(d, c)

	for _, name := range []string{"T0", "T1", "T2", "T3", "CHAMOIS_HOME", "CHAMOIS_DISABLE", "CHAMOIS_HALT", "CHAMOIS_STATUS"} {
		assert.True(t, d.Has(name), "expected %s registered", name)
	}
	assert.False(t, d.Has("T4"), "T4 exceeds the slot count")

	require.NoError(t, d.Run("T1"))
	tool, ok := c.Tracker().CurrentTool()
	require.True(t, ok)
	assert.Equal(t, 1, tool)
	assert.True(t, c.Tracker().IsLoaded())
	require.NotEmpty(t, responses)
	assert.Contains(t, responses[len(responses)-1], "completed successfully")
}

func TestBindMacroHooksResolvesDefinedMacros(t *testing.T) {
	d := gcode.NewDispatcher()
	var ran []string
	d.Register("CHAMOIS_PARK", "", func(cmd *gcode.Command) error {
		ran = append(ran, "park")
		return nil
	})
	d.Register("CHAMOIS_ON_LOAD", "", func(cmd *gcode.Command) error {
		ran = append(ran, "on_load")
		return nil
	})

	hooks := NewHookRegistry()
	BindMacroHooks(d, hooks)

	assert.True(t, hooks.Bound(PhasePark))
	assert.True(t, hooks.Bound(PhaseOnLoad))
	assert.False(t, hooks.Bound(PhaseBeforeUnload))
	assert.False(t, hooks.Bound(PhaseOnUnload))
	assert.False(t, hooks.Bound(PhaseAfterLoad))

	_, err := hooks.Invoke(PhasePark)
	require.NoError(t, err)
	assert.Equal(t, []string{"park"}, ran)
}

func TestToolChangeRunsConfiguredMacros(t *testing.T) {
	link := &fakeLink{initialized: true, loaded: true, selected: 0, unloadSteps: 1, loadSteps: 1}

	d := gcode.NewDispatcher()
	var macros []string
	for _, name := range []string{"CHAMOIS_PARK", "CHAMOIS_BEFORE_UNLOAD", "CHAMOIS_ON_UNLOAD", "CHAMOIS_ON_LOAD", "CHAMOIS_AFTER_LOAD"} {
		macro := name
		d.Register(macro, "", func(cmd *gcode.Command) error {
			macros = append(macros, strings.TrimPrefix(macro, "CHAMOIS_"))
			return nil
		})
	}

	hooks := NewHookRegistry()
	BindMacroHooks(d, hooks)
	c := testController(link, hooks, 10)
	RegisterCommands(d, c)

	require.NoError(t, d.Run("T2"))
	assert.Equal(t, []string{"PARK", "BEFORE_UNLOAD", "ON_UNLOAD", "ON_LOAD", "AFTER_LOAD"}, macros)
}

package chamois

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeUnboundPhaseIsSkipped(t *testing.T) {
	r := NewHookRegistry()
	for _, phase := range Phases {
		outcome, err := r.Invoke(phase)
		assert.NoError(t, err, "phase %s", phase)
		assert.Equal(t, Skipped, outcome, "phase %s", phase)
	}
}

func TestInvokeBoundHook(t *testing.T) {
	r := NewHookRegistry()
	ran := false
	r.Bind(PhasePark, func() error {
		ran = true
		return nil
	})

	outcome, err := r.Invoke(PhasePark)
	require.NoError(t, err)
	assert.Equal(t, Ran, outcome)
	assert.True(t, ran)
	assert.True(t, r.Bound(PhasePark))
	assert.False(t, r.Bound(PhaseOnLoad))
}

func TestInvokeWrapsHookFailure(t *testing.T) {
	r := NewHookRegistry()
	cause := errors.New("move out of range")
	r.Bind(PhaseOnLoad, func() error { return cause })

	outcome, err := r.Invoke(PhaseOnLoad)
	assert.Equal(t, Ran, outcome)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, PhaseOnLoad, hookErr.Phase)
	assert.ErrorIs(t, err, cause)
}

func TestBindNilRemovesHook(t *testing.T) {
	r := NewHookRegistry()
	r.Bind(PhasePark, func() error { return nil })
	r.Bind(PhasePark, nil)

	outcome, err := r.Invoke(PhasePark)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}

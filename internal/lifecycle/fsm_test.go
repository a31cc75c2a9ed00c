package lifecycle

import (
	"testing"

	"github.com/dwsmith1983/interlock/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from  types.ExecutionStatus
		to    types.ExecutionStatus
		valid bool
	}{
		{types.ExecutionPending, types.ExecutionRunning, true},
		{types.ExecutionPending, types.ExecutionCancelled, true},
		{types.ExecutionPending, types.ExecutionSucceeded, false},
		{types.ExecutionRunning, types.ExecutionSucceeded, true},
		{types.ExecutionRunning, types.ExecutionFailed, true},
		{types.ExecutionRunning, types.ExecutionCancelled, true},
		{types.ExecutionRunning, types.ExecutionPending, false},
		{types.ExecutionSucceeded, types.ExecutionFailed, false},
		{types.ExecutionSucceeded, types.ExecutionRunning, false},
		{types.ExecutionFailed, types.ExecutionPending, true},
		{types.ExecutionFailed, types.ExecutionRunning, false},
		{types.ExecutionCancelled, types.ExecutionPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.ExecutionSucceeded))
	assert.True(t, IsTerminal(types.ExecutionFailed))
	assert.True(t, IsTerminal(types.ExecutionCancelled))
	assert.False(t, IsTerminal(types.ExecutionPending))
	assert.False(t, IsTerminal(types.ExecutionRunning))
}

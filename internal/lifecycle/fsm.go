// Package lifecycle implements the Execution state machine:
//
//	pending --submit--> running --OK-->    succeeded
//	                        \--err-->      failed
//	                        \--cancel-->   cancelled
//	failed --retry--> pending
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/interlock/pkg/types"
)

var validTransitions = map[types.ExecutionStatus][]types.ExecutionStatus{
	types.ExecutionPending:   {types.ExecutionRunning, types.ExecutionCancelled},
	types.ExecutionRunning:   {types.ExecutionSucceeded, types.ExecutionFailed, types.ExecutionCancelled},
	types.ExecutionSucceeded: {},
	types.ExecutionFailed:    {types.ExecutionPending}, // explicit retry only
	types.ExecutionCancelled: {},
}

// CanTransition reports whether transitioning from one Execution status to
// another is valid. There is no direct pending -> succeeded transition.
func CanTransition(from, to types.ExecutionStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a status change, returning an error if invalid.
func Transition(from, to types.ExecutionStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid execution transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal reports whether the status is a final state for this attempt.
// Failed is terminal for the attempt even though it may later be retried
// into a new pending state.
func IsTerminal(status types.ExecutionStatus) bool {
	return status == types.ExecutionSucceeded || status == types.ExecutionFailed || status == types.ExecutionCancelled
}

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"fmt"

	"github.com/throne-labs/throne/lib/schema"
)

// TransitionError reports an illegal status move. The From/To pair
// lets callers distinguish a terminal violation from a skipped state
// without parsing the message.
type TransitionError struct {
	From schema.TaskStatus
	To   schema.TaskStatus
}

func (e *TransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("task is terminal in state %q, cannot move to %q", e.From, e.To)
	}
	return fmt.Sprintf("illegal task transition %q → %q", e.From, e.To)
}

// legalTransitions is the closed transition set. Self-transitions are
// not listed: they are the idempotent-redelivery case and are handled
// by Transition directly.
var legalTransitions = map[schema.TaskStatus][]schema.TaskStatus{
	schema.TaskPending: {
		schema.TaskInProgress,
		// A task can be cancelled before any agent claims it.
		schema.TaskCancelled,
	},
	schema.TaskInProgress: {
		schema.TaskCompleted,
		schema.TaskFailed,
		schema.TaskCancelled,
		// Releasing a claim returns the task to the pool. This is
		// the only backward move; a second agent may claim only
		// after it.
		schema.TaskPending,
	},
}

// Transition validates a status move. A self-transition is legal and
// means "no change" (idempotent redelivery); any move out of a
// terminal state, or skipping InProgress on the way to
// Completed/Failed, is a *TransitionError.
func Transition(from, to schema.TaskStatus) error {
	if !from.Valid() {
		return fmt.Errorf("unknown task status %q", from)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown task status %q", to)
	}
	if from == to {
		return nil
	}
	for _, allowed := range legalTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

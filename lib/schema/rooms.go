// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
)

// Room name constants and prefixes. Three room classes exist:
//
//   - "kernel": the single room every king-side coordinator listens to.
//   - "role:<role>": one room per agent role, for pipeline hand-offs
//     and command dispatch.
//   - "task:<task_id>": one room per active task or run, for
//     room-scoped streaming.
const (
	// RoomKernel is the king's room.
	RoomKernel = "kernel"

	// RoomRolePrefix prefixes per-role room names.
	RoomRolePrefix = "role:"

	// RoomTaskPrefix prefixes per-task room names.
	RoomTaskPrefix = "task:"
)

// RoleRoom returns the room name for a role: "role:learning",
// "role:pre_load", or "role:<label>" for user roles.
func RoleRoom(role AgentRole) string {
	return RoomRolePrefix + role.Token()
}

// TaskRoom returns the ephemeral room name for a task: "task:<task_id>".
func TaskRoom(taskID string) string {
	return RoomTaskPrefix + taskID
}

// Route returns the delivery rooms for an event, as a pure function of
// the event name and body. Events whose destination is derivable from
// content route to their role or task room:
//
//   - pipeline:next routes to the role room of the stage it names.
//   - task:invite, task:join, task:output, task:evaluate,
//     task:summary, and task:log route to the task room of the
//     task_id they name.
//
// Every other known event routes to the kernel room: agent reports and
// task/memory requests are king-bound, and king-to-agent dispatch
// (king:command, task hand-offs) is addressed by the sender's room
// choice at publish time, not derived from content.
//
// Unknown event names are an error — the taxonomy is closed, and a
// typo must not silently create an unroutable event.
func Route(event string, body []byte) ([]string, error) {
	if !KnownEvent(event) {
		return nil, fmt.Errorf("unknown event %q", event)
	}

	switch event {
	case EventPipelineNext:
		var next PipelineNext
		if err := json.Unmarshal(body, &next); err != nil {
			return nil, fmt.Errorf("routing %s: %w", event, err)
		}
		if err := next.Validate(); err != nil {
			return nil, fmt.Errorf("routing %s: %w", event, err)
		}
		return []string{RoleRoom(next.Stage.Role())}, nil

	case EventTaskInvite, EventTaskJoin, EventTaskOutput,
		EventTaskEvaluate, EventTaskSummary, EventTaskLog:
		var scoped struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(body, &scoped); err != nil {
			return nil, fmt.Errorf("routing %s: %w", event, err)
		}
		if scoped.TaskID == "" {
			return nil, fmt.Errorf("routing %s: task_id is required", event)
		}
		return []string{TaskRoom(scoped.TaskID)}, nil

	default:
		return []string{RoomKernel}, nil
	}
}

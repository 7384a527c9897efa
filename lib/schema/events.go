// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Event name constants. An event name is a stable, versionless
// "domain:action" string. Subscribers key behavior off the literal
// string, so the taxonomy is additive-only: new names may be
// introduced, existing names are never repurposed.
const (
	// EventAgentRegister announces a worker agent coming online.
	// Payload: AgentRegister. Published once per agent process
	// lifetime; the agent's identity is immutable afterwards.
	// Room: kernel
	EventAgentRegister = "agent:register"

	// EventAgentStatus is a periodic runner heartbeat with free-form
	// metrics. Payload: AgentStatus.
	// Room: kernel
	EventAgentStatus = "agent:status"

	// EventAgentSkillReport reports the outcome of exercising a
	// skill, with an optional score. Payload: AgentSkillReport.
	// Room: kernel
	EventAgentSkillReport = "agent:skill_report"

	// EventAgentHealth carries the results of an agent's health
	// checks. Payload: AgentHealth.
	// Room: kernel
	EventAgentHealth = "agent:health"

	// EventKingCommand is a king-issued directive for a specific
	// agent. Payload: KingCommand. Published by the king into the
	// target agent's role room.
	EventKingCommand = "king:command"

	// EventKingConfigUpdate notifies agents that a configuration
	// object changed, identified by content hash so agents can skip
	// reloads they have already applied. Payload: KingConfigUpdate.
	EventKingConfigUpdate = "king:config_update"

	// EventPipelineNext instructs the next stage's agents to produce
	// an artifact. Payload: PipelineNext. Routed to the role room of
	// the stage named in the payload.
	EventPipelineNext = "pipeline:next"

	// EventPipelineStageResult reports a stage's outcome back to the
	// king. Payload: PipelineStageResult.
	// Room: kernel
	EventPipelineStageResult = "pipeline:stage_result"
)

// Task management events. The king owns the task table; agents submit
// CRUD requests to the kernel room and observe EventTaskChanged.
const (
	// EventTaskCreate requests creation of a task. Payload: TaskCreate.
	EventTaskCreate = "task:create"

	// EventTaskUpdate mutates a task's status, owner, or payload.
	// Payload: TaskUpdate. Must be idempotent by value: redelivery
	// of an identical update is a no-op.
	EventTaskUpdate = "task:update"

	// EventTaskGet requests a single task record. Payload: TaskGet.
	EventTaskGet = "task:get"

	// EventTaskList requests a filtered task listing. Payload: TaskList.
	EventTaskList = "task:list"

	// EventTaskDelete removes a task permanently. Payload: TaskDelete.
	// Legal in every state, including terminal ones; there is no
	// tombstone.
	EventTaskDelete = "task:delete"

	// EventTaskChanged announces that a task was created, updated,
	// or deleted. Payload: TaskChanged.
	EventTaskChanged = "task:changed"
)

// Task room events. A task room is an ephemeral per-task channel for
// invite/stream/evaluate exchanges, distinct from the long-lived role
// rooms. All of these route to the "task:<task_id>" room.
const (
	// EventTaskInvite opens a task room and invites agents into it.
	// Payload: TaskInvite.
	EventTaskInvite = "task:invite"

	// EventTaskJoin acknowledges an invite. Payload: TaskJoin.
	EventTaskJoin = "task:join"

	// EventTaskOutput streams one chunk of task output. Payload:
	// TaskOutput. Chunk indexes are strictly increasing per
	// (task_id, request_id, source) and stop at is_final.
	EventTaskOutput = "task:output"

	// EventTaskEvaluate asks an evaluation agent to score a finished
	// task. Payload: TaskEvaluate.
	EventTaskEvaluate = "task:evaluate"

	// EventTaskSummary is the evaluation agent's verdict. Payload:
	// TaskSummary. Observing it tears the task room down; no further
	// task output for that task is valid.
	EventTaskSummary = "task:summary"

	// EventTaskLog carries an out-of-band log line scoped to a task.
	// Payload: TaskLog.
	EventTaskLog = "task:log"
)

// Memory events. Memories are written and read at any point,
// independent of task or run completion.
const (
	// EventMemoryStore writes (upserts) a memory. Payload: MemoryStore.
	EventMemoryStore = "memory:store"

	// EventMemoryQuery reads memories. Payload: MemoryQuery. The
	// response arrives as an independent EventMemoryResult, not a
	// synchronous reply.
	EventMemoryQuery = "memory:query"

	// EventMemoryResult returns matching memories. Payload: MemoryResult.
	EventMemoryResult = "memory:result"

	// EventMemoryUpdate mutates an existing memory. Payload: MemoryStore
	// (the key addresses the record to update).
	EventMemoryUpdate = "memory:update"

	// EventMemoryDelete removes a memory by id. Payload: MemoryDelete.
	EventMemoryDelete = "memory:delete"

	// EventMemoryChanged announces every successful memory mutation.
	// Payload: MemoryChanged. This is the only mechanism by which
	// other agents learn of memory changes; there is no polling
	// contract.
	EventMemoryChanged = "memory:changed"
)

// Debug events. Mirrors of provider traffic for inspection; carried in
// the taxonomy so debug consumers can subscribe by literal name. Their
// payloads are free-form and not validated by this package.
const (
	EventDebugPrompt   = "debug:prompt"
	EventDebugResponse = "debug:response"
	EventDebugStream   = "debug:stream"
)

// knownEvents is the closed set of event names. Route and KnownEvent
// consult it so a typo cannot silently create a new, unroutable event.
var knownEvents = map[string]bool{
	EventAgentRegister:       true,
	EventAgentStatus:         true,
	EventAgentSkillReport:    true,
	EventAgentHealth:         true,
	EventKingCommand:         true,
	EventKingConfigUpdate:    true,
	EventPipelineNext:        true,
	EventPipelineStageResult: true,
	EventTaskCreate:          true,
	EventTaskUpdate:          true,
	EventTaskGet:             true,
	EventTaskList:            true,
	EventTaskDelete:          true,
	EventTaskChanged:         true,
	EventTaskInvite:          true,
	EventTaskJoin:            true,
	EventTaskOutput:          true,
	EventTaskEvaluate:        true,
	EventTaskSummary:         true,
	EventTaskLog:             true,
	EventMemoryStore:         true,
	EventMemoryQuery:         true,
	EventMemoryResult:        true,
	EventMemoryUpdate:        true,
	EventMemoryDelete:        true,
	EventMemoryChanged:       true,
	EventDebugPrompt:         true,
	EventDebugResponse:       true,
	EventDebugStream:         true,
}

// KnownEvent reports whether name is part of the protocol's event
// taxonomy.
func KnownEvent(name string) bool {
	return knownEvents[name]
}

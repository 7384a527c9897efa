// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Output source tokens for TaskOutput chunks. A task room can carry
// several concurrent streams; the source distinguishes terminal
// output from model output.
const (
	SourcePTY = "pty"
	SourceLLM = "llm"
)

// ValidSource reports whether source is a known output source token.
func ValidSource(source string) bool {
	return source == SourcePTY || source == SourceLLM
}

// TaskInvite is the body of an EventTaskInvite event: the king opens a
// task room and invites agents into it.
type TaskInvite struct {
	// TaskID names the task the room is scoped to.
	TaskID string `json:"task_id"`

	// TaskType is the task's work kind, so invitees can decide
	// whether they participate.
	TaskType string `json:"task_type"`

	// Payload carries the task payload for invitees.
	Payload json.RawMessage `json:"payload"`
}

// UnmarshalJSON applies the payload default.
func (m *TaskInvite) UnmarshalJSON(data []byte) error {
	type alias TaskInvite
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Payload) == 0 || string(a.Payload) == "null" {
		a.Payload = emptyObject
	}
	*m = TaskInvite(a)
	return nil
}

// Validate checks required fields.
func (m *TaskInvite) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	if m.TaskType == "" {
		return errors.New("task_type is required")
	}
	return nil
}

// TaskJoin is the body of an EventTaskJoin event: an agent
// acknowledging a task room invite.
type TaskJoin struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
}

// Validate checks required fields.
func (m *TaskJoin) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	return nil
}

// TaskOutput is one streamed chunk of task output. Chunk indexes are
// strictly increasing per (task_id, request_id, source) — ordering is
// guaranteed only within that key, never globally across keys — and
// the stream terminates at the chunk carrying is_final.
type TaskOutput struct {
	// TaskID names the task room.
	TaskID string `json:"task_id"`

	// RequestID distinguishes concurrent streams within one room.
	RequestID string `json:"request_id"`

	// Source is "pty" or "llm".
	Source string `json:"source"`

	// Delta is this chunk's text.
	Delta string `json:"delta"`

	// ChunkIndex sequences the chunk within its stream, starting
	// at 0.
	ChunkIndex uint32 `json:"chunk_index"`

	// IsFinal marks the stream's last chunk.
	IsFinal bool `json:"is_final"`
}

// UnmarshalJSON rejects absent delta and chunk_index. Both are
// required with no default: a chunk missing chunk_index is malformed,
// not chunk zero.
func (m *TaskOutput) UnmarshalJSON(data []byte) error {
	type alias TaskOutput
	var a struct {
		alias
		Delta      *string `json:"delta"`
		ChunkIndex *uint32 `json:"chunk_index"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Delta == nil {
		return errors.New("delta is required")
	}
	if a.ChunkIndex == nil {
		return errors.New("chunk_index is required")
	}
	*m = TaskOutput(a.alias)
	m.Delta = *a.Delta
	m.ChunkIndex = *a.ChunkIndex
	return nil
}

// Validate checks required fields and the source token.
func (m *TaskOutput) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	if m.RequestID == "" {
		return errors.New("request_id is required")
	}
	if !ValidSource(m.Source) {
		return fmt.Errorf("unknown output source %q", m.Source)
	}
	return nil
}

// TaskEvaluate is the body of an EventTaskEvaluate event: the king
// asking an evaluation agent to score a finished task.
type TaskEvaluate struct {
	// TaskID names the task to score.
	TaskID string `json:"task_id"`

	// TaskType is the task's work kind.
	TaskType string `json:"task_type"`

	// OutputSummary is the accumulated output text, truncated if
	// very large.
	OutputSummary string `json:"output_summary"`

	// ExitCode is the process exit code, for PTY-backed tasks.
	ExitCode *int32 `json:"exit_code,omitempty"`

	// LatencyMS is the task's wall-clock duration in milliseconds.
	LatencyMS *uint64 `json:"latency_ms,omitempty"`

	// Metadata carries evaluation-relevant context.
	Metadata json.RawMessage `json:"metadata"`
}

// UnmarshalJSON applies the metadata default.
func (m *TaskEvaluate) UnmarshalJSON(data []byte) error {
	type alias TaskEvaluate
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Metadata) == 0 || string(a.Metadata) == "null" {
		a.Metadata = emptyObject
	}
	*m = TaskEvaluate(a)
	return nil
}

// Validate checks required fields.
func (m *TaskEvaluate) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	if m.TaskType == "" {
		return errors.New("task_type is required")
	}
	return nil
}

// TaskSummary is the body of an EventTaskSummary event: an evaluation
// agent's verdict. Observing it closes the task room.
type TaskSummary struct {
	// TaskID names the evaluated task.
	TaskID string `json:"task_id"`

	// AgentID identifies the evaluating agent.
	AgentID string `json:"agent_id"`

	// Summary is the free-text verdict.
	Summary string `json:"summary"`

	// Score is an optional numeric score.
	Score *float64 `json:"score,omitempty"`

	// Tags label the verdict for filtering.
	Tags []string `json:"tags"`

	// Evaluation carries the structured evaluation result.
	Evaluation json.RawMessage `json:"evaluation"`
}

// UnmarshalJSON applies the evaluation default.
func (m *TaskSummary) UnmarshalJSON(data []byte) error {
	type alias TaskSummary
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Evaluation) == 0 || string(a.Evaluation) == "null" {
		a.Evaluation = emptyObject
	}
	*m = TaskSummary(a)
	return nil
}

// Validate checks required fields.
func (m *TaskSummary) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	if m.Summary == "" {
		return errors.New("summary is required")
	}
	return nil
}

// TaskLog is the body of an EventTaskLog event: an out-of-band log
// line scoped to a task.
type TaskLog struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Validate checks required fields.
func (m *TaskLog) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	if m.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TaskStatus is a task's lifecycle state. The legal transition set is
// Pending → InProgress → {Completed | Failed | Cancelled}; lib/task
// owns the transition function, this package only defines the tokens.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known task status token.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is one of the three terminal states.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown tokens.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("task status must be a string: %w", err)
	}
	if !TaskStatus(token).Valid() {
		return fmt.Errorf("unknown task status %q", token)
	}
	*s = TaskStatus(token)
	return nil
}

// emptyObject is the defaulted value for absent structured payloads.
// The contract is "empty object, never absent/null", so defaulted
// fields always carry these two bytes after decoding.
var emptyObject = json.RawMessage("{}")

// TaskCreate is the body of an EventTaskCreate event.
type TaskCreate struct {
	// TaskType is a free-form string naming the kind of work. The
	// payload's semantics are owned by the task type, not by the
	// protocol.
	TaskType string `json:"task_type"`

	// AgentID optionally pre-assigns the task to a specific agent.
	AgentID *string `json:"agent_id,omitempty"`

	// Payload is arbitrary structured data for the task. Defaults to
	// an empty object when absent — consumers never see null here.
	Payload json.RawMessage `json:"payload"`

	// ParentID optionally links this task under a parent, forming a
	// tree. Immutable once set; never a cycle (the parent must exist
	// before the child is created).
	ParentID *string `json:"parent_id,omitempty"`
}

// UnmarshalJSON applies the payload default.
func (m *TaskCreate) UnmarshalJSON(data []byte) error {
	type alias TaskCreate
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Payload) == 0 || string(a.Payload) == "null" {
		a.Payload = emptyObject
	}
	*m = TaskCreate(a)
	return nil
}

// Validate checks required fields.
func (m *TaskCreate) Validate() error {
	if m.TaskType == "" {
		return errors.New("task_type is required")
	}
	return nil
}

// TaskUpdate is the body of an EventTaskUpdate event. All mutable
// fields are optional; absent fields are left untouched. Only status,
// agent_id, and payload are mutable after creation.
type TaskUpdate struct {
	// TaskID identifies the task to mutate.
	TaskID string `json:"task_id"`

	// Status optionally moves the task through its lifecycle. The
	// transition must be legal for the task's current state.
	Status *TaskStatus `json:"status,omitempty"`

	// AgentID optionally sets the owning agent. Entering InProgress
	// requires the owner to be named, either here or previously.
	AgentID *string `json:"agent_id,omitempty"`

	// Payload optionally replaces the task payload.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks required fields.
func (m *TaskUpdate) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	return nil
}

// TaskGet is the body of an EventTaskGet event.
type TaskGet struct {
	TaskID string `json:"task_id"`
}

// Validate checks required fields.
func (m *TaskGet) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	return nil
}

// defaultTaskListLimit is TaskList's limit when the field is absent.
const defaultTaskListLimit = 50

// TaskList is the body of an EventTaskList event. All filters are
// optional; an empty body lists up to the default limit.
type TaskList struct {
	// Limit caps the number of returned records. Defaults to 50.
	Limit uint32 `json:"limit"`

	// Status filters by lifecycle state.
	Status *TaskStatus `json:"status,omitempty"`

	// AgentID filters by owning agent.
	AgentID *string `json:"agent_id,omitempty"`

	// ParentID filters to the children of one task.
	ParentID *string `json:"parent_id,omitempty"`
}

// UnmarshalJSON applies the limit default.
func (m *TaskList) UnmarshalJSON(data []byte) error {
	type alias struct {
		Limit    *uint32     `json:"limit"`
		Status   *TaskStatus `json:"status"`
		AgentID  *string     `json:"agent_id"`
		ParentID *string     `json:"parent_id"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Limit = defaultTaskListLimit
	if a.Limit != nil {
		m.Limit = *a.Limit
	}
	m.Status = a.Status
	m.AgentID = a.AgentID
	m.ParentID = a.ParentID
	return nil
}

// Validate always succeeds: every field has a default.
func (m *TaskList) Validate() error {
	return nil
}

// TaskDelete is the body of an EventTaskDelete event. Deletion is
// unconditional — legal in every state, including terminal ones — and
// permanent; the protocol defines no tombstone.
type TaskDelete struct {
	TaskID string `json:"task_id"`
}

// Validate checks required fields.
func (m *TaskDelete) Validate() error {
	if m.TaskID == "" {
		return errors.New("task_id is required")
	}
	return nil
}

// TaskRecord is the serialized form of a task, as returned by task
// queries and carried in TaskChanged announcements. Status is a plain
// string here (not TaskStatus) so that a reader on an older protocol
// revision can still display records with statuses it does not know.
type TaskRecord struct {
	ID        string          `json:"id"`
	TaskType  string          `json:"task_type"`
	Status    string          `json:"status"`
	AgentID   string          `json:"agent_id"`
	Payload   json.RawMessage `json:"payload"`
	ParentID  string          `json:"parent_id"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// Validate checks required fields.
func (m *TaskRecord) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}
	if m.TaskType == "" {
		return errors.New("task_type is required")
	}
	if m.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

// TaskChanged is the body of an EventTaskChanged announcement,
// published after every successful task mutation. Deletions carry
// only the task id.
type TaskChanged struct {
	// Action is "created", "updated", or "deleted".
	Action string `json:"action"`

	// Task is the full updated record. Nil for deletions.
	Task *TaskRecord `json:"task,omitempty"`

	// TaskID identifies the task for deletions.
	TaskID *string `json:"task_id,omitempty"`
}

// Mutation action tokens carried by TaskChanged and MemoryChanged.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Validate checks required fields and action consistency.
func (m *TaskChanged) Validate() error {
	switch m.Action {
	case ChangeCreated, ChangeUpdated:
		if m.Task == nil {
			return fmt.Errorf("task is required for action %q", m.Action)
		}
	case ChangeDeleted:
		if m.TaskID == nil || *m.TaskID == "" {
			return errors.New(`task_id is required for action "deleted"`)
		}
	default:
		return fmt.Errorf("unknown change action %q", m.Action)
	}
	return nil
}

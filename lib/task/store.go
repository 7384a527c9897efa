// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/throne-labs/throne/lib/schema"
)

// Store errors. Callers branch on these with errors.Is; the king
// reports them back to the sender rather than silently ignoring the
// update (stale duplicates are the exception — they return no error
// and no change).
var (
	// ErrNotFound means the named task does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrParentNotFound means TaskCreate named a parent that does
	// not exist. Requiring the parent up front keeps the task tree
	// cycle-free by construction.
	ErrParentNotFound = errors.New("parent task not found")

	// ErrTerminal means an update would mutate a task in a terminal
	// state. Terminal tasks accept no mutation at all — not status,
	// not payload, not owner. See DESIGN.md for the policy decision.
	ErrTerminal = errors.New("task is in a terminal state")

	// ErrClaimed means an update would hand an InProgress task to a
	// different agent without releasing it to Pending first.
	ErrClaimed = errors.New("task is claimed by another agent")

	// ErrNoOwner means an update moved a task to InProgress without
	// naming the owning agent.
	ErrNoOwner = errors.New("in_progress requires an owning agent")
)

// Store is the king's task table: an in-memory map applying the task
// CRUD messages with the lifecycle and idempotency rules. Safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]schema.TaskRecord

	// now is the timestamp source, injectable for tests.
	now func() time.Time
}

// NewStore returns an empty task table.
func NewStore() *Store {
	return &Store{
		tasks: make(map[string]schema.TaskRecord),
		now:   time.Now,
	}
}

// timestamp formats t the way task records carry times on the wire.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Create applies a TaskCreate: assigns a fresh id, initializes the
// record in Pending, and returns the "created" announcement to
// publish. Task ids are never reused.
func (s *Store) Create(msg schema.TaskCreate) (schema.TaskRecord, schema.TaskChanged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentID := ""
	if msg.ParentID != nil {
		if _, ok := s.tasks[*msg.ParentID]; !ok {
			return schema.TaskRecord{}, schema.TaskChanged{}, fmt.Errorf("creating task: %w: %s", ErrParentNotFound, *msg.ParentID)
		}
		parentID = *msg.ParentID
	}

	agentID := ""
	if msg.AgentID != nil {
		agentID = *msg.AgentID
	}

	payload := msg.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	now := timestamp(s.now())
	record := schema.TaskRecord{
		ID:        uuid.NewString(),
		TaskType:  msg.TaskType,
		Status:    string(schema.TaskPending),
		AgentID:   agentID,
		Payload:   payload,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks[record.ID] = record

	return record, schema.TaskChanged{Action: schema.ChangeCreated, Task: &record}, nil
}

// Apply applies a TaskUpdate. Three outcomes:
//
//   - the update changes the record: the new record and an "updated"
//     announcement are returned;
//   - the update is by-value identical to the current state (a bus
//     redelivery): no change, no announcement, no error;
//   - the update is illegal (terminal mutation, second claim, missing
//     owner): a state-violation error is returned and nothing changes.
func (s *Store) Apply(msg schema.TaskUpdate) (schema.TaskRecord, *schema.TaskChanged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tasks[msg.TaskID]
	if !ok {
		return schema.TaskRecord{}, nil, fmt.Errorf("updating task %s: %w", msg.TaskID, ErrNotFound)
	}

	current := schema.TaskStatus(record.Status)

	statusChanges := msg.Status != nil && *msg.Status != current
	agentChanges := msg.AgentID != nil && *msg.AgentID != record.AgentID
	payloadChanges := msg.Payload != nil && !schema.EqualJSON(msg.Payload, record.Payload)

	if !statusChanges && !agentChanges && !payloadChanges {
		// Idempotent by value: a redelivered update is a no-op.
		return record, nil, nil
	}

	if current.Terminal() {
		return schema.TaskRecord{}, nil, fmt.Errorf("updating task %s: %w", msg.TaskID, ErrTerminal)
	}

	if statusChanges {
		if err := Transition(current, *msg.Status); err != nil {
			return schema.TaskRecord{}, nil, fmt.Errorf("updating task %s: %w", msg.TaskID, err)
		}
	}

	// Single-owner policy: while a task is InProgress its owner can
	// only change by releasing the task to Pending first.
	if agentChanges && current == schema.TaskInProgress &&
		!(statusChanges && *msg.Status == schema.TaskPending) {
		return schema.TaskRecord{}, nil, fmt.Errorf("updating task %s (owned by %s): %w", msg.TaskID, record.AgentID, ErrClaimed)
	}

	if statusChanges {
		record.Status = string(*msg.Status)
	}
	if msg.AgentID != nil {
		record.AgentID = *msg.AgentID
	}
	if statusChanges && *msg.Status == schema.TaskInProgress && record.AgentID == "" {
		return schema.TaskRecord{}, nil, fmt.Errorf("updating task %s: %w", msg.TaskID, ErrNoOwner)
	}
	if msg.Payload != nil {
		record.Payload = msg.Payload
	}
	record.UpdatedAt = timestamp(s.now())
	s.tasks[record.ID] = record

	return record, &schema.TaskChanged{Action: schema.ChangeUpdated, Task: &record}, nil
}

// Get returns the record for a TaskGet request.
func (s *Store) Get(msg schema.TaskGet) (schema.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tasks[msg.TaskID]
	if !ok {
		return schema.TaskRecord{}, fmt.Errorf("getting task %s: %w", msg.TaskID, ErrNotFound)
	}
	return record, nil
}

// List returns records matching a TaskList request, ordered by
// creation time (then id, for records created in the same instant),
// capped at the request's limit.
func (s *Store) List(msg schema.TaskList) []schema.TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]schema.TaskRecord, 0, len(s.tasks))
	for _, record := range s.tasks {
		if msg.Status != nil && record.Status != string(*msg.Status) {
			continue
		}
		if msg.AgentID != nil && record.AgentID != *msg.AgentID {
			continue
		}
		if msg.ParentID != nil && record.ParentID != *msg.ParentID {
			continue
		}
		matches = append(matches, record)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt != matches[j].CreatedAt {
			return matches[i].CreatedAt < matches[j].CreatedAt
		}
		return matches[i].ID < matches[j].ID
	})

	if msg.Limit > 0 && len(matches) > int(msg.Limit) {
		matches = matches[:msg.Limit]
	}
	return matches
}

// Delete applies a TaskDelete. Deletion is unconditional — legal in
// every state including terminal ones — and permanent. Deleting a
// task that does not exist is a no-op (the redelivery of a delete),
// reported as a nil announcement.
func (s *Store) Delete(msg schema.TaskDelete) *schema.TaskChanged {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[msg.TaskID]; !ok {
		return nil
	}
	delete(s.tasks, msg.TaskID)
	id := msg.TaskID
	return &schema.TaskChanged{Action: schema.ChangeDeleted, TaskID: &id}
}

// Snapshot returns every record, ordered by creation time then id.
// The king checkpoints this through lib/codec.
func (s *Store) Snapshot() []schema.TaskRecord {
	return s.List(schema.TaskList{})
}

// Restore replaces the table's contents with a checkpointed snapshot.
func (s *Store) Restore(records []schema.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]schema.TaskRecord, len(records))
	for _, record := range records {
		s.tasks[record.ID] = record
	}
}

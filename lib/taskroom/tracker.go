// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package taskroom

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/throne-labs/throne/lib/schema"
)

// Tracker errors.
var (
	// ErrRoomNotFound means no open room exists for the task.
	ErrRoomNotFound = errors.New("task room not found")

	// ErrStreamClosed means a chunk arrived for a stream that already
	// carried its final chunk.
	ErrStreamClosed = errors.New("output stream is closed")

	// ErrChunkGap means a chunk skipped ahead of the stream's expected
	// index. Chunks within one stream come from a single producer, so
	// a gap is a producer bug, not reordering.
	ErrChunkGap = errors.New("output chunk index gap")
)

// streamKey identifies one output stream within a room.
type streamKey struct {
	requestID string
	source    string
}

// stream is the per-key sequencing state.
type stream struct {
	nextIndex uint32
	closed    bool
}

// room is one open task room.
type room struct {
	taskID   string
	taskType string
	joined   map[string]bool
	streams  map[streamKey]*stream

	// evaluating is set once the king asked for a verdict; the only
	// remaining legal messages are output for still-open streams and
	// the summary itself.
	evaluating bool
}

// Tracker owns every open task room. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	rooms map[string]*room

	log *slog.Logger
}

// NewTracker returns a tracker with no open rooms.
func NewTracker(log *slog.Logger) *Tracker {
	return &Tracker{
		rooms: make(map[string]*room),
		log:   log,
	}
}

// Open opens the task's room. Re-opening an already-open room is the
// redelivered invite: a silent no-op.
func (t *Tracker) Open(msg schema.TaskInvite) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rooms[msg.TaskID]; ok {
		return
	}
	t.rooms[msg.TaskID] = &room{
		taskID:   msg.TaskID,
		taskType: msg.TaskType,
		joined:   make(map[string]bool),
		streams:  make(map[streamKey]*stream),
	}
	t.log.Info("task room opened", "task_id", msg.TaskID, "task_type", msg.TaskType)
}

// Join records an agent's acknowledgement. Idempotent.
func (t *Tracker) Join(msg schema.TaskJoin) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[msg.TaskID]
	if !ok {
		return fmt.Errorf("joining task %s: %w", msg.TaskID, ErrRoomNotFound)
	}
	r.joined[msg.AgentID] = true
	return nil
}

// Joined reports whether the agent has joined the task's room.
func (t *Tracker) Joined(taskID, agentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[taskID]
	return ok && r.joined[agentID]
}

// Output consumes one streamed chunk. It reports whether the chunk
// advanced its stream: a redelivered chunk (index already consumed)
// returns (false, nil) and is discarded. A chunk into a missing or
// closed room, after the stream's final chunk, or ahead of the
// expected index is a violation.
func (t *Tracker) Output(msg schema.TaskOutput) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[msg.TaskID]
	if !ok {
		return false, fmt.Errorf("output for task %s: %w", msg.TaskID, ErrRoomNotFound)
	}

	key := streamKey{requestID: msg.RequestID, source: msg.Source}
	s := r.streams[key]
	if s == nil {
		s = &stream{}
		r.streams[key] = s
	}

	if msg.ChunkIndex < s.nextIndex {
		// Already consumed: at-least-once redelivery.
		t.log.Debug("discarding redelivered output chunk",
			"task_id", msg.TaskID, "request_id", msg.RequestID,
			"source", msg.Source, "chunk_index", msg.ChunkIndex)
		return false, nil
	}
	if s.closed {
		return false, fmt.Errorf("output for task %s stream %s/%s: %w",
			msg.TaskID, msg.RequestID, msg.Source, ErrStreamClosed)
	}
	if msg.ChunkIndex > s.nextIndex {
		return false, fmt.Errorf("output for task %s stream %s/%s: %w: got %d, expected %d",
			msg.TaskID, msg.RequestID, msg.Source, ErrChunkGap, msg.ChunkIndex, s.nextIndex)
	}

	s.nextIndex++
	if msg.IsFinal {
		s.closed = true
	}
	return true, nil
}

// Evaluate marks the room as awaiting its verdict.
func (t *Tracker) Evaluate(msg schema.TaskEvaluate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[msg.TaskID]
	if !ok {
		return fmt.Errorf("evaluating task %s: %w", msg.TaskID, ErrRoomNotFound)
	}
	r.evaluating = true
	return nil
}

// Summarize consumes the verdict and closes the room. Everything
// after the summary — output, joins, another summary — is rejected
// with ErrRoomNotFound, since the room is gone.
func (t *Tracker) Summarize(msg schema.TaskSummary) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[msg.TaskID]
	if !ok {
		return fmt.Errorf("summarizing task %s: %w", msg.TaskID, ErrRoomNotFound)
	}
	if !r.evaluating {
		// Legal: an agent may volunteer a verdict unprompted.
		t.log.Debug("summary without evaluation request", "task_id", msg.TaskID)
	}
	delete(t.rooms, msg.TaskID)
	t.log.Info("task room closed", "task_id", msg.TaskID, "agent_id", msg.AgentID)
	return nil
}

// OpenRooms lists the ids of currently open rooms, for status
// reporting.
func (t *Tracker) OpenRooms() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.rooms))
	for id := range t.rooms {
		ids = append(ids, id)
	}
	return ids
}

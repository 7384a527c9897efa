// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package king

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/throne-labs/throne/lib/bus"
	"github.com/throne-labs/throne/lib/codec"
	"github.com/throne-labs/throne/lib/schema"
)

// startKing runs a king on a fresh bus and stops it with the test.
func startKing(t *testing.T, opts Options) (*King, *bus.Bus) {
	t.Helper()
	b := bus.New()
	opts.Bus = b
	opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	k := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := k.Run(ctx); err != nil {
			t.Errorf("king run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	return k, b
}

// waitFor reads envelopes from sub until one from the king matches
// event, or the deadline passes.
func waitFor(t *testing.T, sub *bus.Subscription, event string) bus.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case envelope := <-sub.Events():
			if envelope.Sender == Sender && envelope.Event == event {
				return envelope
			}
		case <-sub.Done():
			t.Fatalf("subscription closed waiting for %s", event)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func send(t *testing.T, b *bus.Bus, event, sender string, msg any) {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("encoding %s: %v", event, err)
	}
	if err := b.PublishEvent(context.Background(), event, sender, body); err != nil {
		t.Fatalf("publishing %s: %v", event, err)
	}
}

func TestEventsBeforeRunAreNotLost(t *testing.T) {
	b := bus.New()
	t.Cleanup(b.Close)
	k := New(Options{Bus: b, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	client := b.Subscribe(schema.RoomKernel)
	defer client.Cancel()

	// Published after New but before the event loop starts: the
	// subscription established in New must hold it until Run drains.
	send(t, b, schema.EventTaskCreate, "user-cli", schema.TaskCreate{
		TaskType: "early_bird",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := k.Run(ctx); err != nil {
			t.Errorf("king run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	envelope := waitFor(t, client, schema.EventTaskChanged)
	var changed schema.TaskChanged
	if err := json.Unmarshal(envelope.Body, &changed); err != nil {
		t.Fatalf("decoding announcement: %v", err)
	}
	if changed.Task.TaskType != "early_bird" {
		t.Errorf("task_type = %q, want early_bird", changed.Task.TaskType)
	}
}

func TestTaskCreateAnnouncesChange(t *testing.T) {
	_, b := startKing(t, Options{})
	client := b.Subscribe(schema.RoomKernel)
	defer client.Cancel()

	send(t, b, schema.EventTaskCreate, "user-cli", schema.TaskCreate{
		TaskType: "skill_discovery",
	})

	envelope := waitFor(t, client, schema.EventTaskChanged)
	var changed schema.TaskChanged
	if err := json.Unmarshal(envelope.Body, &changed); err != nil {
		t.Fatalf("decoding announcement: %v", err)
	}
	if changed.Action != "created" {
		t.Errorf("action = %q, want created", changed.Action)
	}
	if changed.Task.Status != string(schema.TaskPending) {
		t.Errorf("status = %q, want pending", changed.Task.Status)
	}
	if string(changed.Task.Payload) != "{}" {
		t.Errorf("payload = %s, want {}", changed.Task.Payload)
	}
}

func TestTaskUpdateViolationRejected(t *testing.T) {
	_, b := startKing(t, Options{})
	client := b.Subscribe(schema.RoomKernel)
	defer client.Cancel()

	status := schema.TaskCompleted
	send(t, b, schema.EventTaskUpdate, "learning-001", schema.TaskUpdate{
		TaskID: "no-such-task",
		Status: &status,
	})

	envelope := waitFor(t, client, schema.EventDebugResponse)
	var rejection map[string]any
	if err := json.Unmarshal(envelope.Body, &rejection); err != nil {
		t.Fatalf("decoding rejection: %v", err)
	}
	if rejection["event"] != schema.EventTaskUpdate {
		t.Errorf("rejected event = %v, want task:update", rejection["event"])
	}
	msg, _ := rejection["error"].(string)
	if !strings.Contains(msg, "not found") {
		t.Errorf("error = %q, want mention of not found", msg)
	}
}

func TestTaskGetAnswersOnKernel(t *testing.T) {
	k, b := startKing(t, Options{})
	client := b.Subscribe(schema.RoomKernel)
	defer client.Cancel()

	record, _, err := k.Tasks().Create(schema.TaskCreate{TaskType: "build"})
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}

	send(t, b, schema.EventTaskGet, "user-cli", schema.TaskGet{TaskID: record.ID})

	envelope := waitFor(t, client, schema.EventDebugResponse)
	var response struct {
		Event string            `json:"event"`
		Task  schema.TaskRecord `json:"task"`
	}
	if err := json.Unmarshal(envelope.Body, &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.Event != schema.EventTaskGet {
		t.Errorf("response event = %q, want task:get", response.Event)
	}
	if response.Task.ID != record.ID {
		t.Errorf("task id = %q, want %q", response.Task.ID, record.ID)
	}
}

func TestPipelineHandOffReachesRoleRoom(t *testing.T) {
	_, b := startKing(t, Options{})
	builders := b.Subscribe(schema.RoleRoom(schema.RoleBuilding))
	defer builders.Cancel()

	send(t, b, schema.EventPipelineStageResult, "learning-001", schema.PipelineStageResult{
		RunID:      "run-1",
		Stage:      schema.StageLearning,
		AgentID:    "learning-001",
		Status:     schema.RunCompleted,
		ArtifactID: "artifact-1",
	})

	envelope := waitFor(t, builders, schema.EventPipelineNext)
	var next schema.PipelineNext
	if err := json.Unmarshal(envelope.Body, &next); err != nil {
		t.Fatalf("decoding hand-off: %v", err)
	}
	if next.Stage != schema.StageBuilding {
		t.Errorf("stage = %q, want building", next.Stage)
	}
	if next.ArtifactID != "artifact-1" {
		t.Errorf("artifact = %q, want artifact-1", next.ArtifactID)
	}
}

func TestMemoryStoreAndQuery(t *testing.T) {
	_, b := startKing(t, Options{})
	client := b.Subscribe(schema.RoomKernel)
	defer client.Cancel()

	send(t, b, schema.EventMemoryStore, "skill-manage-001", schema.MemoryStore{
		Scope:    schema.ScopeSystem,
		Key:      "http_retry",
		Category: schema.CategoryPattern,
		Tags:     []string{"http", "retry"},
		Tiers: []schema.MemoryTierEntry{
			{Tier: schema.TierL0, Content: "retry with exponential backoff"},
		},
	})
	waitFor(t, client, schema.EventMemoryChanged)

	send(t, b, schema.EventMemoryQuery, "learning-001", schema.MemoryQuery{
		Query: "retry backoff",
	})

	envelope := waitFor(t, client, schema.EventMemoryResult)
	var result schema.MemoryResult
	if err := json.Unmarshal(envelope.Body, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("count = %d, want 1", result.Count)
	}
	if result.Memories[0].Key != "http_retry" {
		t.Errorf("key = %q, want http_retry", result.Memories[0].Key)
	}
}

func TestTaskRoomStreamAndSummary(t *testing.T) {
	ctx := context.Background()
	k, b := startKing(t, Options{})
	kernel := b.Subscribe(schema.RoomKernel)
	defer kernel.Cancel()
	room := b.Subscribe(schema.TaskRoom("task-9"))
	defer room.Cancel()

	invite := schema.TaskInvite{TaskID: "task-9", TaskType: "build"}
	if err := k.OpenTask(ctx, invite); err != nil {
		t.Fatalf("opening task room: %v", err)
	}
	waitFor(t, room, schema.EventTaskInvite)

	send(t, b, schema.EventTaskJoin, "building-001", schema.TaskJoin{
		TaskID: "task-9", AgentID: "building-001",
	})
	for i := uint32(0); i < 3; i++ {
		send(t, b, schema.EventTaskOutput, "building-001", schema.TaskOutput{
			TaskID:     "task-9",
			RequestID:  "req-1",
			Source:     schema.SourcePTY,
			ChunkIndex: i,
			Delta:      "chunk",
			IsFinal:    i == 2,
		})
	}

	// Writing past the final chunk is a violation the king reports.
	send(t, b, schema.EventTaskOutput, "building-001", schema.TaskOutput{
		TaskID:     "task-9",
		RequestID:  "req-1",
		Source:     schema.SourcePTY,
		ChunkIndex: 3,
		Delta:      "late",
	})
	envelope := waitFor(t, kernel, schema.EventDebugResponse)
	var rejection map[string]any
	if err := json.Unmarshal(envelope.Body, &rejection); err != nil {
		t.Fatalf("decoding rejection: %v", err)
	}
	if rejection["event"] != schema.EventTaskOutput {
		t.Errorf("rejected event = %v, want task:output", rejection["event"])
	}

	send(t, b, schema.EventTaskSummary, "evaluation-001", schema.TaskSummary{
		TaskID:  "task-9",
		AgentID: "evaluation-001",
		Summary: "built and verified",
	})

	// After the summary the room is gone; further output is a
	// violation again.
	send(t, b, schema.EventTaskOutput, "building-001", schema.TaskOutput{
		TaskID:    "task-9",
		RequestID: "req-2",
		Source:    schema.SourcePTY,
		Delta:     "ghost",
	})
	envelope = waitFor(t, kernel, schema.EventDebugResponse)
	if err := json.Unmarshal(envelope.Body, &rejection); err != nil {
		t.Fatalf("decoding rejection: %v", err)
	}
	msg, _ := rejection["error"].(string)
	if !strings.Contains(msg, "room") {
		t.Errorf("error = %q, want mention of the missing room", msg)
	}
}

func TestAgentRegistration(t *testing.T) {
	k, b := startKing(t, Options{})
	client := b.Subscribe(schema.RoomKernel)
	defer client.Cancel()

	send(t, b, schema.EventAgentRegister, "learning-001", schema.AgentRegister{
		AgentID:      "learning-001",
		Role:         schema.RoleLearning,
		Capabilities: []string{"discover"},
	})
	send(t, b, schema.EventAgentStatus, "learning-001", schema.AgentStatus{
		AgentID: "learning-001",
		Status:  schema.RunnerReady,
		Metrics: map[string]any{},
	})

	// Give the king a target for ordering: a query forces the prior
	// messages through the single event loop first.
	send(t, b, schema.EventTaskList, "user-cli", schema.TaskList{})
	waitFor(t, client, schema.EventDebugResponse)

	agents := k.Agents()
	if len(agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(agents))
	}
	if agents[0].Status != schema.RunnerReady {
		t.Errorf("status = %q, want ready", agents[0].Status)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	k, _ := startKing(t, Options{CheckpointPath: path})

	record, _, err := k.Tasks().Create(schema.TaskCreate{TaskType: "build"})
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	if _, _, err := k.Memories().Apply(schema.MemoryStore{
		Scope:    schema.ScopeSystem,
		Category: schema.CategoryFact,
		Key:      "note",
		Tiers: []schema.MemoryTierEntry{
			{Tier: schema.TierL0, Content: "remember this"},
		},
	}); err != nil {
		t.Fatalf("storing memory: %v", err)
	}

	checkpoint, err := k.Checkpoint()
	if err != nil {
		t.Fatalf("snapshotting: %v", err)
	}
	if err := codec.Write(path, checkpoint); err != nil {
		t.Fatalf("writing checkpoint: %v", err)
	}

	restored, err := codec.Read(path)
	if err != nil {
		t.Fatalf("reading checkpoint: %v", err)
	}
	fresh, _ := startKing(t, Options{})
	fresh.Restore(restored)

	got, err := fresh.Tasks().Get(schema.TaskGet{TaskID: record.ID})
	if err != nil {
		t.Fatalf("task lost across restart: %v", err)
	}
	if got.TaskType != "build" {
		t.Errorf("task_type = %q, want build", got.TaskType)
	}
	result, err := fresh.Memories().Query(schema.MemoryQuery{Query: "remember"})
	if err != nil {
		t.Fatalf("querying restored memories: %v", err)
	}
	if result.Count != 1 {
		t.Errorf("memories = %d, want 1", result.Count)
	}
}

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package king

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/throne-labs/throne/lib/bus"
	"github.com/throne-labs/throne/lib/codec"
	"github.com/throne-labs/throne/lib/memory"
	"github.com/throne-labs/throne/lib/pipeline"
	"github.com/throne-labs/throne/lib/schema"
	"github.com/throne-labs/throne/lib/skill"
	"github.com/throne-labs/throne/lib/task"
	"github.com/throne-labs/throne/lib/taskroom"
)

// Sender is the id the king publishes under.
const Sender = "king"

// Options configures a King.
type Options struct {
	// Bus is the event bus. Required.
	Bus *bus.Bus

	// Log is the structured logger. Defaults to slog.Default().
	Log *slog.Logger

	// Skills is the loaded skill manifest set. Optional.
	Skills map[string]*skill.Manifest

	// CheckpointPath is where durable state is persisted. Empty
	// disables checkpointing.
	CheckpointPath string

	// CheckpointInterval is how often state is persisted while
	// running. Defaults to 30 seconds.
	CheckpointInterval time.Duration
}

// King is the central orchestrator.
type King struct {
	bus    *bus.Bus
	log    *slog.Logger
	skills map[string]*skill.Manifest

	tasks    *task.Store
	runs     *pipeline.Coordinator
	memories *memory.Store
	rooms    *taskroom.Tracker
	agents   *registry

	checkpointPath     string
	checkpointInterval time.Duration

	// inbox fans in the kernel subscription and every open task
	// room's subscription into the single event loop.
	inbox chan bus.Envelope

	// kernel is attached in New, so events published between
	// construction and Run buffer instead of being lost.
	kernel *bus.Subscription

	mu       sync.Mutex
	roomSubs map[string]*bus.Subscription
}

// New returns a King wired to the given bus. The kernel room
// subscription is established here, synchronously: callers may
// publish the moment New returns, and the events wait in the
// subscription buffer until Run drains them.
func New(opts Options) *King {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	interval := opts.CheckpointInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &King{
		bus:                opts.Bus,
		log:                log,
		skills:             opts.Skills,
		tasks:              task.NewStore(),
		runs:               pipeline.NewCoordinator(log),
		memories:           memory.NewStore(),
		rooms:              taskroom.NewTracker(log),
		agents:             newRegistry(),
		checkpointPath:     opts.CheckpointPath,
		checkpointInterval: interval,
		inbox:              make(chan bus.Envelope),
		kernel:             opts.Bus.Subscribe(schema.RoomKernel),
		roomSubs:           make(map[string]*bus.Subscription),
	}
}

// Tasks exposes the task table for local queries.
func (k *King) Tasks() *task.Store { return k.tasks }

// Memories exposes the memory store for local queries.
func (k *King) Memories() *memory.Store { return k.memories }

// Agents returns the registered agents.
func (k *King) Agents() []AgentInfo { return k.agents.snapshot() }

// Restore loads a checkpoint into the king's stores. Call before Run.
func (k *King) Restore(checkpoint codec.Checkpoint) {
	k.tasks.Restore(checkpoint.Tasks)
	k.runs.Restore(checkpoint.Runs)
	k.memories.Restore(checkpoint.Memories)
	k.log.Info("state restored",
		"tasks", len(checkpoint.Tasks),
		"runs", len(checkpoint.Runs),
		"memories", len(checkpoint.Memories),
		"saved_at", checkpoint.SavedAt)
}

// Checkpoint snapshots the king's durable state.
func (k *King) Checkpoint() (codec.Checkpoint, error) {
	memories, err := k.memories.Snapshot()
	if err != nil {
		return codec.Checkpoint{}, err
	}
	return codec.Checkpoint{
		Tasks:    k.tasks.Snapshot(),
		Runs:     k.runs.Snapshot(),
		Memories: memories,
	}, nil
}

// saveCheckpoint persists state when a checkpoint path is configured.
func (k *King) saveCheckpoint() {
	if k.checkpointPath == "" {
		return
	}
	checkpoint, err := k.Checkpoint()
	if err != nil {
		k.log.Error("checkpoint snapshot failed", "error", err)
		return
	}
	if err := codec.Write(k.checkpointPath, checkpoint); err != nil {
		k.log.Error("checkpoint write failed", "path", k.checkpointPath, "error", err)
		return
	}
	k.log.Debug("checkpoint written", "path", k.checkpointPath)
}

// Run drains the kernel subscription opened in New and processes
// events until ctx is cancelled, checkpointing periodically and once
// more on the way out.
func (k *King) Run(ctx context.Context) error {
	defer k.kernel.Cancel()
	go k.pump(ctx, k.kernel)

	ticker := time.NewTicker(k.checkpointInterval)
	defer ticker.Stop()

	k.log.Info("king running", "skills", len(k.skills))
	for {
		select {
		case envelope := <-k.inbox:
			k.handle(ctx, envelope)
		case <-ticker.C:
			k.saveCheckpoint()
		case <-ctx.Done():
			k.saveCheckpoint()
			k.log.Info("king stopped")
			return nil
		}
	}
}

// pump forwards one subscription's envelopes into the inbox.
func (k *King) pump(ctx context.Context, sub *bus.Subscription) {
	for {
		select {
		case envelope := <-sub.Events():
			select {
			case k.inbox <- envelope:
			case <-ctx.Done():
				return
			}
		case <-sub.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// OpenTask opens a task room: the tracker learns the room, the king
// subscribes to it, and the invite is published into it. The room
// closes again when its summary arrives.
func (k *King) OpenTask(ctx context.Context, invite schema.TaskInvite) error {
	if err := invite.Validate(); err != nil {
		return fmt.Errorf("opening task room: %w", err)
	}
	k.rooms.Open(invite)

	room := schema.TaskRoom(invite.TaskID)
	k.mu.Lock()
	if _, ok := k.roomSubs[room]; !ok {
		sub := k.bus.Subscribe(room)
		k.roomSubs[room] = sub
		go k.pump(ctx, sub)
	}
	k.mu.Unlock()

	body, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("encoding invite: %w", err)
	}
	return k.bus.PublishEvent(ctx, schema.EventTaskInvite, Sender, body)
}

// closeTaskRoom drops the king's subscription to a summarized room.
func (k *King) closeTaskRoom(taskID string) {
	room := schema.TaskRoom(taskID)
	k.mu.Lock()
	sub := k.roomSubs[room]
	delete(k.roomSubs, room)
	k.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// publish routes and publishes one event, logging failures.
func (k *King) publish(ctx context.Context, event string, msg any) {
	body, err := json.Marshal(msg)
	if err != nil {
		k.log.Error("encoding event", "event", event, "error", err)
		return
	}
	if err := k.bus.PublishEvent(ctx, event, Sender, body); err != nil {
		k.log.Error("publishing event", "event", event, "error", err)
	}
}

// reject reports a per-message failure back through the bus. Schema
// errors and state violations land here; the loop itself never
// stops.
func (k *King) reject(ctx context.Context, envelope bus.Envelope, err error) {
	k.log.Warn("rejecting message",
		"event", envelope.Event, "sender", envelope.Sender, "error", err)
	body, marshalErr := json.Marshal(map[string]any{
		"event":  envelope.Event,
		"sender": envelope.Sender,
		"error":  err.Error(),
	})
	if marshalErr != nil {
		return
	}
	if err := k.bus.Publish(ctx, schema.RoomKernel, schema.EventDebugResponse, Sender, body); err != nil {
		k.log.Error("publishing rejection", "error", err)
	}
}

// respond answers a query on the kernel room.
func (k *King) respond(ctx context.Context, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		k.log.Error("encoding response", "event", event, "error", err)
		return
	}
	if err := k.bus.Publish(ctx, schema.RoomKernel, event, Sender, body); err != nil {
		k.log.Error("publishing response", "event", event, "error", err)
	}
}

// handle applies one envelope. Own announcements are skipped; every
// failure is per-message.
func (k *King) handle(ctx context.Context, envelope bus.Envelope) {
	if envelope.Sender == Sender {
		return
	}

	switch envelope.Event {
	case schema.EventAgentRegister:
		msg, err := schema.Decode[schema.AgentRegister](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.agents.register(msg)
		k.log.Info("agent registered",
			"agent_id", msg.AgentID, "role", msg.Role, "capabilities", msg.Capabilities)

	case schema.EventAgentStatus:
		msg, err := schema.Decode[schema.AgentStatus](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if !k.agents.status(msg) {
			k.log.Warn("status from unregistered agent", "agent_id", msg.AgentID)
		}

	case schema.EventAgentSkillReport:
		msg, err := schema.Decode[schema.AgentSkillReport](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.log.Info("skill report",
			"agent_id", msg.AgentID, "skill_id", msg.SkillID, "result", msg.Result.String())

	case schema.EventAgentHealth:
		msg, err := schema.Decode[schema.AgentHealth](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		for _, check := range msg.HealthChecks {
			if !check.Healthy {
				k.log.Warn("health check failing",
					"agent_id", msg.AgentID, "check", check.Name)
			}
		}

	case schema.EventTaskCreate:
		msg, err := schema.Decode[schema.TaskCreate](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		record, changed, err := k.tasks.Create(msg)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.log.Info("task created", "task_id", record.ID, "task_type", record.TaskType)
		k.publish(ctx, schema.EventTaskChanged, changed)

	case schema.EventTaskUpdate:
		msg, err := schema.Decode[schema.TaskUpdate](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		_, changed, err := k.tasks.Apply(msg)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if changed != nil {
			k.publish(ctx, schema.EventTaskChanged, changed)
		}

	case schema.EventTaskGet:
		msg, err := schema.Decode[schema.TaskGet](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		record, err := k.tasks.Get(msg)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.respond(ctx, schema.EventDebugResponse, map[string]any{
			"event": schema.EventTaskGet, "task": record,
		})

	case schema.EventTaskList:
		msg, err := schema.Decode[schema.TaskList](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		records := k.tasks.List(msg)
		k.respond(ctx, schema.EventDebugResponse, map[string]any{
			"event": schema.EventTaskList, "tasks": records, "count": len(records),
		})

	case schema.EventTaskDelete:
		msg, err := schema.Decode[schema.TaskDelete](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if changed := k.tasks.Delete(msg); changed != nil {
			k.publish(ctx, schema.EventTaskChanged, changed)
		}

	case schema.EventPipelineStageResult:
		msg, err := schema.Decode[schema.PipelineStageResult](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		next, err := k.runs.Apply(msg)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if next != nil {
			if len(k.agents.agentsByRole(next.Stage.Role())) == 0 {
				k.log.Warn("no registered agents for next stage",
					"run_id", msg.RunID, "stage", next.Stage)
			}
			k.publish(ctx, schema.EventPipelineNext, next)
		}

	case schema.EventMemoryStore, schema.EventMemoryUpdate:
		msg, err := schema.Decode[schema.MemoryStore](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		_, changed, err := k.memories.Apply(msg)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if changed != nil {
			k.publish(ctx, schema.EventMemoryChanged, changed)
		}

	case schema.EventMemoryQuery:
		msg, err := schema.Decode[schema.MemoryQuery](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		result, err := k.memories.Query(msg)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.publish(ctx, schema.EventMemoryResult, result)

	case schema.EventMemoryDelete:
		msg, err := schema.Decode[schema.MemoryDelete](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if changed := k.memories.Delete(msg); changed != nil {
			k.publish(ctx, schema.EventMemoryChanged, changed)
		}

	case schema.EventTaskJoin:
		msg, err := schema.Decode[schema.TaskJoin](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if err := k.rooms.Join(msg); err != nil {
			k.reject(ctx, envelope, err)
		}

	case schema.EventTaskOutput:
		msg, err := schema.Decode[schema.TaskOutput](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if _, err := k.rooms.Output(msg); err != nil {
			k.reject(ctx, envelope, err)
		}

	case schema.EventTaskEvaluate:
		msg, err := schema.Decode[schema.TaskEvaluate](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if err := k.rooms.Evaluate(msg); err != nil {
			k.reject(ctx, envelope, err)
		}

	case schema.EventTaskSummary:
		msg, err := schema.Decode[schema.TaskSummary](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		if err := k.rooms.Summarize(msg); err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.closeTaskRoom(msg.TaskID)

	case schema.EventTaskLog:
		msg, err := schema.Decode[schema.TaskLog](envelope.Body)
		if err != nil {
			k.reject(ctx, envelope, err)
			return
		}
		k.log.Info("task log",
			"task_id", msg.TaskID, "agent_id", msg.AgentID,
			"level", msg.Level, "message", msg.Message)

	case schema.EventKingCommand, schema.EventKingConfigUpdate,
		schema.EventTaskChanged, schema.EventMemoryChanged,
		schema.EventMemoryResult, schema.EventPipelineNext,
		schema.EventTaskInvite, schema.EventDebugPrompt,
		schema.EventDebugResponse, schema.EventDebugStream:
		// King-originated or observational events; nothing to apply.

	default:
		k.log.Warn("unknown event", "event", envelope.Event, "sender", envelope.Sender)
	}
}

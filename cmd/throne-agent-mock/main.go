// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// throne-agent-mock is a test binary that exercises the king end to
// end with a scripted agent. It proves the coordination protocol works
// without a real model or provider: agent registration, task creation
// and claiming, task-room streaming, evaluation and summary, and a
// full pipeline run handed off through every stage's role room.
//
// The mock spawns no external process. King and agent share one
// in-process bus; the agent is a goroutine following a fixed script.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/throne-labs/throne/lib/bus"
	"github.com/throne-labs/throne/lib/king"
	"github.com/throne-labs/throne/lib/schema"
)

const agentID = "mock-001"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "throne-agent-mock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eventBus := bus.New()
	defer eventBus.Close()

	k := king.New(king.Options{Bus: eventBus, Log: log})
	kingDone := make(chan error, 1)
	kingCtx, stopKing := context.WithCancel(context.Background())
	defer stopKing()
	go func() { kingDone <- k.Run(kingCtx) }()

	if err := script(ctx, eventBus, k, log); err != nil {
		return err
	}

	stopKing()
	if err := <-kingDone; err != nil {
		return err
	}
	log.Info("mock run complete")
	return nil
}

// script plays the agent's side of the protocol in order: register,
// create and claim a task, stream output in its task room, evaluate
// and summarize, then drive one pipeline run through all five stages.
func script(ctx context.Context, eventBus *bus.Bus, k *king.King, log *slog.Logger) error {
	kernel := eventBus.Subscribe(schema.RoomKernel)
	defer kernel.Cancel()

	if err := send(ctx, eventBus, schema.EventAgentRegister, schema.AgentRegister{
		AgentID:      agentID,
		Role:         schema.RoleBuilding,
		Capabilities: []string{"build", "stream"},
	}); err != nil {
		return err
	}
	if err := send(ctx, eventBus, schema.EventAgentStatus, schema.AgentStatus{
		AgentID: agentID,
		Status:  schema.RunnerReady,
		Metrics: map[string]any{},
	}); err != nil {
		return err
	}

	// Create a task and learn its id from the king's announcement.
	if err := send(ctx, eventBus, schema.EventTaskCreate, schema.TaskCreate{
		TaskType: "skill_build",
		Payload:  json.RawMessage(`{"skill": "http_fetch"}`),
	}); err != nil {
		return err
	}
	envelope, err := waitEvent(ctx, kernel, schema.EventTaskChanged)
	if err != nil {
		return err
	}
	var changed schema.TaskChanged
	if err := json.Unmarshal(envelope.Body, &changed); err != nil {
		return fmt.Errorf("decoding task announcement: %w", err)
	}
	taskID := changed.Task.ID
	log.Info("task created", "task_id", taskID)

	// Claim it.
	claimed := schema.TaskInProgress
	if err := send(ctx, eventBus, schema.EventTaskUpdate, schema.TaskUpdate{
		TaskID:  taskID,
		Status:  &claimed,
		AgentID: stringPtr(agentID),
	}); err != nil {
		return err
	}
	if _, err := waitEvent(ctx, kernel, schema.EventTaskChanged); err != nil {
		return err
	}

	// Work in the task room: invite, join, stream, evaluate, summarize.
	room := eventBus.Subscribe(schema.TaskRoom(taskID))
	defer room.Cancel()
	if err := k.OpenTask(ctx, schema.TaskInvite{
		TaskID:   taskID,
		TaskType: "skill_build",
	}); err != nil {
		return err
	}
	if _, err := waitEvent(ctx, room, schema.EventTaskInvite); err != nil {
		return err
	}
	if err := send(ctx, eventBus, schema.EventTaskJoin, schema.TaskJoin{
		TaskID:  taskID,
		AgentID: agentID,
	}); err != nil {
		return err
	}
	for i := uint32(0); i < 3; i++ {
		if err := send(ctx, eventBus, schema.EventTaskOutput, schema.TaskOutput{
			TaskID:     taskID,
			RequestID:  "build-1",
			Source:     schema.SourcePTY,
			Delta:      fmt.Sprintf("build step %d\n", i),
			ChunkIndex: i,
			IsFinal:    i == 2,
		}); err != nil {
			return err
		}
	}
	if err := send(ctx, eventBus, schema.EventTaskEvaluate, schema.TaskEvaluate{
		TaskID: taskID,
	}); err != nil {
		return err
	}
	score := 0.9
	if err := send(ctx, eventBus, schema.EventTaskSummary, schema.TaskSummary{
		TaskID:  taskID,
		AgentID: agentID,
		Summary: "skill built and verified",
		Score:   &score,
	}); err != nil {
		return err
	}
	log.Info("task room stream complete", "task_id", taskID)

	// Drive a pipeline run stage by stage, following the king's
	// hand-offs through each role room.
	if err := runPipeline(ctx, eventBus, log); err != nil {
		return err
	}

	// Finish the task.
	completed := schema.TaskCompleted
	if err := send(ctx, eventBus, schema.EventTaskUpdate, schema.TaskUpdate{
		TaskID: taskID,
		Status: &completed,
	}); err != nil {
		return err
	}
	if _, err := waitEvent(ctx, kernel, schema.EventTaskChanged); err != nil {
		return err
	}
	log.Info("task completed", "task_id", taskID)
	return nil
}

// runPipeline reports a completed result for every stage in order,
// confirming the hand-off lands in the next stage's role room.
func runPipeline(ctx context.Context, eventBus *bus.Bus, log *slog.Logger) error {
	stages := schema.StageOrder
	rooms := make(map[schema.PipelineStage]*bus.Subscription, len(stages))
	for _, stage := range stages {
		sub := eventBus.Subscribe(schema.RoleRoom(stage.Role()))
		defer sub.Cancel()
		rooms[stage] = sub
	}

	runID := "mock-run-1"
	for _, stage := range stages {
		if err := send(ctx, eventBus, schema.EventPipelineStageResult, schema.PipelineStageResult{
			RunID:      runID,
			Stage:      stage,
			AgentID:    agentID,
			Status:     schema.RunCompleted,
			ArtifactID: "artifact-" + string(stage),
		}); err != nil {
			return err
		}
		next := stage.Next()
		if next == "" {
			log.Info("pipeline run complete", "run_id", runID)
			return nil
		}
		envelope, err := waitEvent(ctx, rooms[next], schema.EventPipelineNext)
		if err != nil {
			return fmt.Errorf("waiting for %s hand-off: %w", next, err)
		}
		var handoff schema.PipelineNext
		if err := json.Unmarshal(envelope.Body, &handoff); err != nil {
			return fmt.Errorf("decoding hand-off: %w", err)
		}
		log.Info("stage handed off", "run_id", runID, "stage", handoff.Stage)
	}
	return nil
}

func send(ctx context.Context, eventBus *bus.Bus, event string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}
	if err := eventBus.PublishEvent(ctx, event, agentID, body); err != nil {
		return fmt.Errorf("publishing %s: %w", event, err)
	}
	return nil
}

// waitEvent reads envelopes until one from the king matches event.
func waitEvent(ctx context.Context, sub *bus.Subscription, event string) (bus.Envelope, error) {
	for {
		select {
		case envelope := <-sub.Events():
			if envelope.Sender == king.Sender && envelope.Event == event {
				return envelope, nil
			}
		case <-sub.Done():
			return bus.Envelope{}, fmt.Errorf("subscription closed waiting for %s", event)
		case <-ctx.Done():
			return bus.Envelope{}, fmt.Errorf("waiting for %s: %w", event, ctx.Err())
		}
	}
}

func stringPtr(v string) *string { return &v }

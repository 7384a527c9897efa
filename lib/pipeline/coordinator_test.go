// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/throne-labs/throne/lib/schema"
)

func newTestCoordinator() *Coordinator {
	c := NewCoordinator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return c
}

func completedResult(runID string, stage schema.PipelineStage, artifact string) schema.PipelineStageResult {
	return schema.PipelineStageResult{
		RunID:      runID,
		Stage:      stage,
		AgentID:    "agent-" + string(stage),
		Status:     schema.RunCompleted,
		ArtifactID: artifact,
	}
}

func TestApplyAdvancesThroughAllStages(t *testing.T) {
	c := newTestCoordinator()

	handoffs := []schema.PipelineStage{
		schema.StageBuilding,
		schema.StagePreLoad,
		schema.StageEvaluation,
		schema.StageSkillManage,
	}
	for i, stage := range schema.StageOrder {
		next, err := c.Apply(completedResult("run-1", stage, "artifact-v1"))
		if err != nil {
			t.Fatalf("Apply(%s): %v", stage, err)
		}
		if i < len(handoffs) {
			if next == nil {
				t.Fatalf("Apply(%s): expected a hand-off, got nil", stage)
			}
			if next.Stage != handoffs[i] {
				t.Fatalf("Apply(%s): hand-off targets %s, want %s", stage, next.Stage, handoffs[i])
			}
			if next.ArtifactID != "artifact-v1" {
				t.Errorf("Apply(%s): hand-off artifact = %q", stage, next.ArtifactID)
			}
			if next.Metadata["run_id"] != "run-1" {
				t.Errorf("Apply(%s): hand-off metadata missing run_id", stage)
			}
		} else if next != nil {
			t.Fatalf("Apply(final stage): unexpected hand-off to %s", next.Stage)
		}
	}

	run, err := c.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != schema.RunCompleted {
		t.Errorf("final run status = %s, want completed", run.Status)
	}
	if !run.Terminal() {
		t.Error("completed run is not terminal")
	}
}

func TestApplyFailureIsTerminal(t *testing.T) {
	c := newTestCoordinator()
	c.Apply(completedResult("run-1", schema.StageLearning, "artifact-v1"))

	reason := "compile error"
	next, err := c.Apply(schema.PipelineStageResult{
		RunID:   "run-1",
		Stage:   schema.StageBuilding,
		AgentID: "agent-building",
		Status:  schema.RunFailed,
		Error:   &reason,
	})
	if err != nil {
		t.Fatalf("Apply(failed): %v", err)
	}
	if next != nil {
		t.Fatalf("failed result produced a hand-off to %s", next.Stage)
	}

	run, _ := c.Get("run-1")
	if run.Status != schema.RunFailed {
		t.Errorf("run status = %s, want failed", run.Status)
	}

	// No later stage can touch the run now.
	_, err = c.Apply(completedResult("run-1", schema.StagePreLoad, "artifact-v2"))
	if !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("result after terminal: error = %v, want ErrRunTerminal", err)
	}
}

func TestApplyStaleStageIsDiscarded(t *testing.T) {
	c := newTestCoordinator()
	c.Apply(completedResult("run-1", schema.StageLearning, "artifact-v1"))
	// Run is now at building; a result for evaluation is out of order.
	next, err := c.Apply(completedResult("run-1", schema.StageEvaluation, "artifact-v9"))
	if err != nil {
		t.Fatalf("Apply(stale): %v", err)
	}
	if next != nil {
		t.Fatal("stale result produced a hand-off")
	}

	run, _ := c.Get("run-1")
	if run.Stage != schema.StageBuilding {
		t.Errorf("run stage = %s, want building", run.Stage)
	}
	if run.ArtifactID != "artifact-v1" {
		t.Errorf("stale result changed the artifact to %q", run.ArtifactID)
	}
}

func TestApplyRedeliveryIsDiscarded(t *testing.T) {
	c := newTestCoordinator()
	result := completedResult("run-1", schema.StageLearning, "artifact-v1")
	result.Output = []byte(`{"skill": "parse"}`)
	if _, err := c.Apply(result); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// Same result again, with the output re-serialized differently.
	redelivered := result
	redelivered.Output = []byte(`{ "skill" : "parse" }`)
	next, err := c.Apply(redelivered)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if next != nil {
		t.Fatal("redelivery produced a second hand-off")
	}

	run, _ := c.Get("run-1")
	if run.Stage != schema.StageBuilding {
		t.Errorf("run stage = %s, want building", run.Stage)
	}
}

func TestApplyRejectsRunningStatus(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.Apply(schema.PipelineStageResult{
		RunID:   "run-1",
		Stage:   schema.StageLearning,
		AgentID: "agent-learning",
		Status:  schema.RunRunning,
	})
	if !errors.Is(err, ErrResultStatus) {
		t.Fatalf("Apply(running): error = %v, want ErrResultStatus", err)
	}
	if _, err := c.Get("run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Error("rejected result still created a run")
	}
}

func TestApplyCreatesRunImplicitly(t *testing.T) {
	c := newTestCoordinator()
	if _, err := c.Get("run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Get before first result: error = %v, want ErrRunNotFound", err)
	}
	c.Apply(completedResult("run-1", schema.StageLearning, "artifact-v1"))

	run, err := c.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.CreatedAt == "" || run.UpdatedAt == "" {
		t.Error("implicit run is missing timestamps")
	}
}

func TestSnapshotRestore(t *testing.T) {
	c := newTestCoordinator()
	c.Apply(completedResult("run-1", schema.StageLearning, "a1"))
	c.Apply(completedResult("run-2", schema.StageLearning, "a2"))

	snapshot := c.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot returned %d runs, want 2", len(snapshot))
	}
	if snapshot[0].ID != "run-1" || snapshot[1].ID != "run-2" {
		t.Errorf("Snapshot order = %s, %s", snapshot[0].ID, snapshot[1].ID)
	}

	restored := NewCoordinator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	restored.Restore(snapshot)
	run, err := restored.Get("run-2")
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if run.Stage != schema.StageBuilding || run.ArtifactID != "a2" {
		t.Errorf("restored run = stage %s artifact %q", run.Stage, run.ArtifactID)
	}
}

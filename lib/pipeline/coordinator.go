// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/throne-labs/throne/lib/schema"
)

// Coordinator errors.
var (
	// ErrRunTerminal means a result would mutate a run that already
	// reached a terminal status.
	ErrRunTerminal = errors.New("pipeline run is terminal")

	// ErrRunNotFound means the named run does not exist.
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrResultStatus means a stage result carried a status that is
	// not a reportable outcome (only completed, failed, and timed_out
	// are).
	ErrResultStatus = errors.New("stage result status is not reportable")
)

// Run is the coordinator's record of one pipeline execution: an
// artifact moving forward through the fixed stage order. A run is
// created implicitly by the first stage result naming its run_id.
type Run struct {
	// ID is the run identifier chosen by whichever agent reported the
	// first stage result.
	ID string `json:"id"`

	// ArtifactID is the artifact most recently produced by a stage.
	ArtifactID string `json:"artifact_id"`

	// Stage is the run's current stage: the stage whose result the
	// coordinator expects next.
	Stage schema.PipelineStage `json:"stage"`

	// Status is running until a stage fails, times out, or the final
	// stage completes.
	Status schema.PipelineRunStatus `json:"status"`

	// CreatedAt and UpdatedAt are RFC 3339 timestamps.
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	// last is the most recently applied result, kept so a bus
	// redelivery of the same result is recognized and discarded.
	last schema.PipelineStageResult
}

// Terminal reports whether the run accepts no further results.
func (r *Run) Terminal() bool {
	return r.Status.Terminal()
}

// Coordinator applies stage results to runs. Safe for concurrent use.
type Coordinator struct {
	mu   sync.Mutex
	runs map[string]*Run

	log *slog.Logger
	now func() time.Time
}

// NewCoordinator returns an empty coordinator. Discarded and stale
// results are logged at debug level through log.
func NewCoordinator(log *slog.Logger) *Coordinator {
	return &Coordinator{
		runs: make(map[string]*Run),
		log:  log,
		now:  time.Now,
	}
}

// Apply consumes one PipelineStageResult. The returned PipelineNext,
// when non-nil, must be published to the role room of its stage (the
// result completed a non-final stage). A nil PipelineNext with a nil
// error means the run became terminal, or the result was stale and
// was discarded. A non-nil error is a state violation to report back
// to the sender.
func (c *Coordinator) Apply(result schema.PipelineStageResult) (*schema.PipelineNext, error) {
	if !result.Status.Terminal() {
		// Running is a run state, not a stage outcome.
		return nil, fmt.Errorf("applying result for run %s: %w: %q", result.RunID, ErrResultStatus, result.Status)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.runs[result.RunID]
	if !ok {
		// First result for this run id defines the run.
		now := c.timestamp()
		run = &Run{
			ID:        result.RunID,
			Stage:     result.Stage,
			Status:    schema.RunRunning,
			CreatedAt: now,
			UpdatedAt: now,
		}
		c.runs[run.ID] = run
	}

	if sameResult(run.last, result) {
		// Bus redelivery: already applied, by value.
		c.log.Debug("discarding redelivered stage result",
			"run_id", run.ID, "stage", result.Stage)
		return nil, nil
	}

	if run.Terminal() {
		return nil, fmt.Errorf("applying result for run %s: %w (status %s)", run.ID, ErrRunTerminal, run.Status)
	}

	if result.Stage != run.Stage {
		// Out of order: a slow or duplicated agent reporting on a
		// stage the run has moved past (or not reached).
		c.log.Debug("discarding stale stage result",
			"run_id", run.ID, "result_stage", result.Stage, "current_stage", run.Stage)
		return nil, nil
	}

	run.last = result
	run.UpdatedAt = c.timestamp()
	if result.ArtifactID != "" {
		run.ArtifactID = result.ArtifactID
	}

	if result.Status != schema.RunCompleted {
		run.Status = result.Status
		c.log.Info("pipeline run terminal",
			"run_id", run.ID, "stage", run.Stage, "status", run.Status)
		return nil, nil
	}

	next := run.Stage.Next()
	if next == "" {
		run.Status = schema.RunCompleted
		c.log.Info("pipeline run completed", "run_id", run.ID, "artifact_id", run.ArtifactID)
		return nil, nil
	}

	run.Stage = next
	return &schema.PipelineNext{
		Stage:      next,
		ArtifactID: run.ArtifactID,
		Metadata:   map[string]any{"run_id": run.ID},
	}, nil
}

// Get returns a copy of the named run.
func (c *Coordinator) Get(runID string) (Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.runs[runID]
	if !ok {
		return Run{}, fmt.Errorf("getting run %s: %w", runID, ErrRunNotFound)
	}
	return *run, nil
}

// Snapshot returns every run ordered by creation time then id, for
// checkpointing.
func (c *Coordinator) Snapshot() []Run {
	c.mu.Lock()
	defer c.mu.Unlock()

	runs := make([]Run, 0, len(c.runs))
	for _, run := range c.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt < runs[j].CreatedAt
		}
		return runs[i].ID < runs[j].ID
	})
	return runs
}

// Restore replaces the coordinator's runs with a checkpointed
// snapshot.
func (c *Coordinator) Restore(runs []Run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs = make(map[string]*Run, len(runs))
	for _, run := range runs {
		copied := run
		c.runs[run.ID] = &copied
	}
}

func (c *Coordinator) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

// sameResult reports whether two stage results are equal by value.
// Output is compared as JSON, so re-serialization differences between
// deliveries do not defeat duplicate detection.
func sameResult(a, b schema.PipelineStageResult) bool {
	if a.RunID != b.RunID || a.Stage != b.Stage || a.AgentID != b.AgentID ||
		a.Status != b.Status || a.ArtifactID != b.ArtifactID {
		return false
	}
	if (a.Error == nil) != (b.Error == nil) {
		return false
	}
	if a.Error != nil && *a.Error != *b.Error {
		return false
	}
	return schema.EqualJSON(a.Output, b.Output)
}

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PipelineStage is one of the five ordered stages an artifact moves
// through: discovery of a candidate skill, building it, pre-loading
// its runtime, evaluating it, and finally registering it with skill
// management. The order is fixed; lib/pipeline owns the advancement
// rules.
type PipelineStage string

const (
	StageLearning    PipelineStage = "learning"
	StageBuilding    PipelineStage = "building"
	StagePreLoad     PipelineStage = "pre_load"
	StageEvaluation  PipelineStage = "evaluation"
	StageSkillManage PipelineStage = "skill_manage"
)

// StageOrder is the fixed stage sequence. A run's stage only advances
// forward through this order; it never regresses.
var StageOrder = []PipelineStage{
	StageLearning,
	StageBuilding,
	StagePreLoad,
	StageEvaluation,
	StageSkillManage,
}

// Valid reports whether s is a known stage token.
func (s PipelineStage) Valid() bool {
	switch s {
	case StageLearning, StageBuilding, StagePreLoad, StageEvaluation, StageSkillManage:
		return true
	}
	return false
}

// Next returns the stage after s in the fixed order, or "" when s is
// the final stage.
func (s PipelineStage) Next() PipelineStage {
	for i, stage := range StageOrder {
		if stage == s && i+1 < len(StageOrder) {
			return StageOrder[i+1]
		}
	}
	return ""
}

// Role returns the agent role that executes this stage. Stage tokens
// and role tokens coincide by construction, but consumers go through
// this mapping rather than casting strings.
func (s PipelineStage) Role() AgentRole {
	switch s {
	case StageLearning:
		return RoleLearning
	case StageBuilding:
		return RoleBuilding
	case StagePreLoad:
		return RolePreLoad
	case StageEvaluation:
		return RoleEvaluation
	case StageSkillManage:
		return RoleSkillManage
	}
	return AgentRole{}
}

// UnmarshalJSON rejects unknown tokens.
func (s *PipelineStage) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("pipeline stage must be a string: %w", err)
	}
	if !PipelineStage(token).Valid() {
		return fmt.Errorf("unknown pipeline stage %q", token)
	}
	*s = PipelineStage(token)
	return nil
}

// PipelineRunStatus is a run's overall state. Running is the only
// non-terminal status; a run reaching any other status accepts no
// further stage results.
type PipelineRunStatus string

const (
	RunRunning   PipelineRunStatus = "running"
	RunCompleted PipelineRunStatus = "completed"
	RunFailed    PipelineRunStatus = "failed"
	RunTimedOut  PipelineRunStatus = "timed_out"
)

// Valid reports whether s is a known run status token.
func (s PipelineRunStatus) Valid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed, RunTimedOut:
		return true
	}
	return false
}

// Terminal reports whether s ends a run.
func (s PipelineRunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunTimedOut
}

// UnmarshalJSON rejects unknown tokens.
func (s *PipelineRunStatus) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("pipeline run status must be a string: %w", err)
	}
	if !PipelineRunStatus(token).Valid() {
		return fmt.Errorf("unknown pipeline run status %q", token)
	}
	*s = PipelineRunStatus(token)
	return nil
}

// PipelineNext is the body of an EventPipelineNext event: the king's
// instruction to produce an artifact for a stage. It routes to the
// role room of the named stage.
type PipelineNext struct {
	// Stage is the stage whose agents should act.
	Stage PipelineStage `json:"stage"`

	// ArtifactID identifies the artifact being threaded through the
	// pipeline.
	ArtifactID string `json:"artifact_id"`

	// Metadata carries stage-specific parameters. Shape is owned by
	// the stage, not the protocol.
	Metadata map[string]any `json:"metadata"`
}

// Validate checks required fields.
func (m *PipelineNext) Validate() error {
	if m.Stage == "" {
		return errors.New("stage is required")
	}
	if m.ArtifactID == "" {
		return errors.New("artifact_id is required")
	}
	return nil
}

// PipelineStageResult is the body of an EventPipelineStageResult
// event: an agent reporting a stage's outcome back to the king. A
// completed result authorizes advancing the run to the next stage;
// failed or timed_out makes the run terminal immediately. A result for
// a stage other than the run's current stage is stale and must be
// discarded without error — agents may be slow or duplicated.
type PipelineStageResult struct {
	// RunID identifies the pipeline run. The first result naming a
	// run id defines the run's identity.
	RunID string `json:"run_id"`

	// Stage is the stage this result reports on.
	Stage PipelineStage `json:"stage"`

	// AgentID identifies the reporting agent.
	AgentID string `json:"agent_id"`

	// Status is completed, failed, or timed_out (running is not a
	// reportable result).
	Status PipelineRunStatus `json:"status"`

	// ArtifactID is the produced artifact. May be empty on failure.
	ArtifactID string `json:"artifact_id"`

	// Output carries the stage's structured output.
	Output json.RawMessage `json:"output"`

	// Error is the failure reason, when Status is failed or timed_out.
	Error *string `json:"error"`
}

// UnmarshalJSON rejects absent output. Required with no default — an
// explicit JSON null is a legal output value, absence is not.
func (m *PipelineStageResult) UnmarshalJSON(data []byte) error {
	type alias PipelineStageResult
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Output) == 0 {
		return errors.New("output is required")
	}
	*m = PipelineStageResult(a)
	return nil
}

// Validate checks required fields.
func (m *PipelineStageResult) Validate() error {
	if m.RunID == "" {
		return errors.New("run_id is required")
	}
	if m.Stage == "" {
		return errors.New("stage is required")
	}
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	if m.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

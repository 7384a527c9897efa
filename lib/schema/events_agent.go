// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
)

// AgentRegister is the body of an EventAgentRegister event. An agent
// publishes it once on startup; the identity it declares is immutable
// for the agent's process lifetime. The protocol does not persist
// registrations — whatever registry consumes the event owns them.
type AgentRegister struct {
	// AgentID is the globally unique agent identifier
	// (e.g., "learning-001").
	AgentID string `json:"agent_id"`

	// Role is the agent's fixed role.
	Role AgentRole `json:"role"`

	// Capabilities lists free-form capability names the agent
	// advertises (e.g., "discover", "evaluate").
	Capabilities []string `json:"capabilities"`
}

// UnmarshalJSON rejects absent capabilities. Required with no
// default: an agent advertising nothing declares an empty list, it
// does not omit the field.
func (m *AgentRegister) UnmarshalJSON(data []byte) error {
	type alias AgentRegister
	var a struct {
		alias
		Capabilities *[]string `json:"capabilities"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Capabilities == nil {
		return errors.New("capabilities is required")
	}
	*m = AgentRegister(a.alias)
	m.Capabilities = *a.Capabilities
	return nil
}

// Validate checks required fields.
func (m *AgentRegister) Validate() error {
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	if m.Role.IsZero() {
		return errors.New("role is required")
	}
	return nil
}

// AgentStatus is the body of an EventAgentStatus heartbeat.
type AgentStatus struct {
	// AgentID identifies the reporting agent.
	AgentID string `json:"agent_id"`

	// Status is the agent process's lifecycle state.
	Status RunnerStatus `json:"status"`

	// Metrics carries free-form runner metrics (queue depths, token
	// counts, provider latencies). Shape is owned by the agent.
	Metrics map[string]any `json:"metrics"`
}

// UnmarshalJSON rejects absent metrics. Required with no default: a
// runner with nothing to report sends an empty object.
func (m *AgentStatus) UnmarshalJSON(data []byte) error {
	type alias AgentStatus
	var a struct {
		alias
		Metrics *map[string]any `json:"metrics"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Metrics == nil {
		return errors.New("metrics is required")
	}
	*m = AgentStatus(a.alias)
	m.Metrics = *a.Metrics
	return nil
}

// Validate checks required fields.
func (m *AgentStatus) Validate() error {
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	if m.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

// AgentSkillReport is the body of an EventAgentSkillReport event:
// the outcome of exercising one skill, with an optional score.
type AgentSkillReport struct {
	// AgentID identifies the reporting agent.
	AgentID string `json:"agent_id"`

	// SkillID identifies the skill that was exercised.
	SkillID string `json:"skill_id"`

	// Result is the skill outcome. Failure and partial variants
	// carry a reason string.
	Result SkillResult `json:"result"`

	// Score is an optional numeric score assigned by the agent.
	Score *float64 `json:"score"`
}

// Validate checks required fields.
func (m *AgentSkillReport) Validate() error {
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	if m.SkillID == "" {
		return errors.New("skill_id is required")
	}
	if m.Result.IsZero() {
		return errors.New("result is required")
	}
	return nil
}

// HealthCheck is one named probe result inside an AgentHealth report.
type HealthCheck struct {
	// Name identifies the check (e.g., "provider", "disk").
	Name string `json:"name"`

	// Endpoint is the probed endpoint, if the check is network-based.
	Endpoint string `json:"endpoint"`

	// Healthy reports whether the probe succeeded.
	Healthy bool `json:"healthy"`

	// LatencyMS is the probe latency in milliseconds, when measured.
	LatencyMS *uint64 `json:"latency_ms"`

	// Error is the probe failure message, when unhealthy.
	Error *string `json:"error"`
}

// AgentHealth is the body of an EventAgentHealth event.
type AgentHealth struct {
	// AgentID identifies the reporting agent.
	AgentID string `json:"agent_id"`

	// HealthChecks lists the individual probe results.
	HealthChecks []HealthCheck `json:"health_checks"`
}

// Validate checks required fields.
func (m *AgentHealth) Validate() error {
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	return nil
}

// KingCommand is the body of an EventKingCommand event: a directive
// the king issues to a specific agent. The command vocabulary is open
// — agents ignore commands they do not understand.
type KingCommand struct {
	// Command names the directive (e.g., "reload_skills", "drain").
	Command string `json:"command"`

	// TargetAgent is the agent_id the command is addressed to. Other
	// agents in the same role room must ignore the command.
	TargetAgent string `json:"target_agent"`

	// Params carries command-specific parameters.
	Params map[string]any `json:"params"`
}

// UnmarshalJSON rejects absent params. Required with no default: a
// parameterless command carries an empty object.
func (m *KingCommand) UnmarshalJSON(data []byte) error {
	type alias KingCommand
	var a struct {
		alias
		Params *map[string]any `json:"params"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Params == nil {
		return errors.New("params is required")
	}
	*m = KingCommand(a.alias)
	m.Params = *a.Params
	return nil
}

// Validate checks required fields.
func (m *KingCommand) Validate() error {
	if m.Command == "" {
		return errors.New("command is required")
	}
	if m.TargetAgent == "" {
		return errors.New("target_agent is required")
	}
	return nil
}

// KingConfigUpdate is the body of an EventKingConfigUpdate event. The
// hash lets agents skip reloading a configuration they have already
// applied after a redelivery.
type KingConfigUpdate struct {
	// ConfigType names the configuration object that changed
	// (e.g., "server", "skills").
	ConfigType string `json:"config_type"`

	// NewConfigHash is the content hash of the new configuration.
	NewConfigHash string `json:"new_config_hash"`
}

// Validate checks required fields.
func (m *KingConfigUpdate) Validate() error {
	if m.ConfigType == "" {
		return errors.New("config_type is required")
	}
	if m.NewConfigHash == "" {
		return errors.New("new_config_hash is required")
	}
	return nil
}

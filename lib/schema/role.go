// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role tokens for the five fixed agent roles. These are the wire
// representation of the unit variants of AgentRole — lowercase
// snake_case derived from the variant name.
const (
	roleTokenSkillManage = "skill_manage"
	roleTokenLearning    = "learning"
	roleTokenPreLoad     = "pre_load"
	roleTokenBuilding    = "building"
	roleTokenEvaluation  = "evaluation"
	roleTokenUser        = "user"
)

// AgentRole identifies what kind of work an agent performs. The five
// fixed roles form the skill pipeline; the user variant carries an
// ad-hoc label for roles added without protocol changes.
//
// AgentRole is a comparable value type: two roles are equal iff they
// have the same variant and (for user roles) the same label. The zero
// value is invalid — construct roles with the Role* variables or
// UserRole, or decode them from the wire.
//
// Wire encoding: unit variants are bare strings ("learning",
// "pre_load"); the user variant is a single-key object
// ({"user": "qa-bot"}). Unknown tokens fail decoding with a schema
// error — the role vocabulary is closed.
type AgentRole struct {
	token string
	label string
}

// The fixed roles.
var (
	RoleSkillManage = AgentRole{token: roleTokenSkillManage}
	RoleLearning    = AgentRole{token: roleTokenLearning}
	RolePreLoad     = AgentRole{token: roleTokenPreLoad}
	RoleBuilding    = AgentRole{token: roleTokenBuilding}
	RoleEvaluation  = AgentRole{token: roleTokenEvaluation}
)

// UserRole returns the ad-hoc role with the given label (e.g.
// UserRole("qa-bot")). The label is free-form and non-empty.
func UserRole(label string) AgentRole {
	return AgentRole{token: roleTokenUser, label: label}
}

// IsUser reports whether the role is an ad-hoc user role.
func (r AgentRole) IsUser() bool {
	return r.token == roleTokenUser
}

// UserLabel returns the label of a user role, or "" for fixed roles.
func (r AgentRole) UserLabel() string {
	return r.label
}

// IsZero reports whether the role is the invalid zero value.
func (r AgentRole) IsZero() bool {
	return r.token == ""
}

// Token returns the role's wire token: the variant name for fixed
// roles, the label for user roles. Used as the role segment in
// "role:<role>" room names.
func (r AgentRole) Token() string {
	if r.token == roleTokenUser {
		return r.label
	}
	return r.token
}

// String implements fmt.Stringer for log output.
func (r AgentRole) String() string {
	if r.token == roleTokenUser {
		return "user(" + r.label + ")"
	}
	if r.token == "" {
		return "<invalid role>"
	}
	return r.token
}

// MarshalJSON encodes fixed roles as bare string tokens and user roles
// as {"user": label}.
func (r AgentRole) MarshalJSON() ([]byte, error) {
	switch r.token {
	case "":
		return nil, errors.New("cannot marshal zero AgentRole")
	case roleTokenUser:
		return json.Marshal(map[string]string{roleTokenUser: r.label})
	default:
		return json.Marshal(r.token)
	}
}

// UnmarshalJSON decodes either form. Unknown role tokens are a schema
// error, not a silent fallback — a consumer that does not recognize a
// role cannot route work for it.
func (r *AgentRole) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		switch token {
		case roleTokenSkillManage, roleTokenLearning, roleTokenPreLoad,
			roleTokenBuilding, roleTokenEvaluation:
			r.token = token
			r.label = ""
			return nil
		default:
			return fmt.Errorf("unknown agent role %q", token)
		}
	}

	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("agent role must be a string token or {\"user\": label} object: %w", err)
	}
	label, ok := tagged[roleTokenUser]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("agent role object must have exactly the %q key", roleTokenUser)
	}
	if label == "" {
		return errors.New("user role label must not be empty")
	}
	r.token = roleTokenUser
	r.label = label
	return nil
}

// RunnerStatus is an agent process's lifecycle state, reported in
// AgentStatus heartbeats.
type RunnerStatus string

const (
	RunnerStarting RunnerStatus = "starting"
	RunnerReady    RunnerStatus = "ready"
	RunnerBusy     RunnerStatus = "busy"
	RunnerError    RunnerStatus = "error"
	RunnerShutting RunnerStatus = "shutting"
)

// Valid reports whether s is a known runner status token.
func (s RunnerStatus) Valid() bool {
	switch s {
	case RunnerStarting, RunnerReady, RunnerBusy, RunnerError, RunnerShutting:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown tokens.
func (s *RunnerStatus) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("runner status must be a string: %w", err)
	}
	if !RunnerStatus(token).Valid() {
		return fmt.Errorf("unknown runner status %q", token)
	}
	*s = RunnerStatus(token)
	return nil
}

// SkillResult is the outcome of exercising a skill. Success is a unit
// variant; failure and partial carry a reason string. These are domain
// outcomes, not protocol errors — a failure propagates to subscribers
// as a first-class terminal result.
//
// Wire encoding: "success" as a bare string; {"failure": reason} and
// {"partial": reason} as single-key objects.
type SkillResult struct {
	token  string
	reason string
}

const (
	skillTokenSuccess = "success"
	skillTokenFailure = "failure"
	skillTokenPartial = "partial"
)

// SkillSuccess is the success outcome.
var SkillSuccess = SkillResult{token: skillTokenSuccess}

// SkillFailure returns a failure outcome with the given reason.
func SkillFailure(reason string) SkillResult {
	return SkillResult{token: skillTokenFailure, reason: reason}
}

// SkillPartial returns a partial-success outcome with the given reason.
func SkillPartial(reason string) SkillResult {
	return SkillResult{token: skillTokenPartial, reason: reason}
}

// IsSuccess reports whether the result is the success variant.
func (s SkillResult) IsSuccess() bool { return s.token == skillTokenSuccess }

// IsFailure reports whether the result is the failure variant.
func (s SkillResult) IsFailure() bool { return s.token == skillTokenFailure }

// IsPartial reports whether the result is the partial variant.
func (s SkillResult) IsPartial() bool { return s.token == skillTokenPartial }

// Reason returns the reason string for failure/partial results, or ""
// for success.
func (s SkillResult) Reason() string { return s.reason }

// IsZero reports whether the result is the invalid zero value.
func (s SkillResult) IsZero() bool { return s.token == "" }

// String implements fmt.Stringer for log output.
func (s SkillResult) String() string {
	switch s.token {
	case skillTokenSuccess:
		return skillTokenSuccess
	case skillTokenFailure, skillTokenPartial:
		return s.token + "(" + s.reason + ")"
	default:
		return "<invalid skill result>"
	}
}

// MarshalJSON encodes success as a bare string and failure/partial as
// single-key objects carrying the reason.
func (s SkillResult) MarshalJSON() ([]byte, error) {
	switch s.token {
	case skillTokenSuccess:
		return json.Marshal(skillTokenSuccess)
	case skillTokenFailure, skillTokenPartial:
		return json.Marshal(map[string]string{s.token: s.reason})
	default:
		return nil, errors.New("cannot marshal zero SkillResult")
	}
}

// UnmarshalJSON decodes either form and rejects unknown variants.
func (s *SkillResult) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		if token != skillTokenSuccess {
			return fmt.Errorf("unknown skill result %q", token)
		}
		s.token = skillTokenSuccess
		s.reason = ""
		return nil
	}

	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("skill result must be \"success\" or a {\"failure\"|\"partial\": reason} object: %w", err)
	}
	if len(tagged) != 1 {
		return errors.New("skill result object must have exactly one key")
	}
	for token, reason := range tagged {
		switch token {
		case skillTokenFailure, skillTokenPartial:
			s.token = token
			s.reason = reason
			return nil
		default:
			return fmt.Errorf("unknown skill result variant %q", token)
		}
	}
	return nil
}

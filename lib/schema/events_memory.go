// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MemoryScope is the visibility/ownership scope of a memory record.
type MemoryScope string

const (
	ScopeSystem   MemoryScope = "system"
	ScopeAgent    MemoryScope = "agent"
	ScopePipeline MemoryScope = "pipeline"
	ScopeSkill    MemoryScope = "skill"
)

// Valid reports whether s is a known scope token.
func (s MemoryScope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeAgent, ScopePipeline, ScopeSkill:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown tokens.
func (s *MemoryScope) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("memory scope must be a string: %w", err)
	}
	if !MemoryScope(token).Valid() {
		return fmt.Errorf("unknown memory scope %q", token)
	}
	*s = MemoryScope(token)
	return nil
}

// MemoryCategory classifies what kind of knowledge a memory holds.
type MemoryCategory string

const (
	CategoryCase       MemoryCategory = "case"
	CategoryPattern    MemoryCategory = "pattern"
	CategoryFact       MemoryCategory = "fact"
	CategoryPreference MemoryCategory = "preference"
	CategoryResource   MemoryCategory = "resource"
	CategoryEvent      MemoryCategory = "event"
)

// Valid reports whether c is a known category token.
func (c MemoryCategory) Valid() bool {
	switch c {
	case CategoryCase, CategoryPattern, CategoryFact, CategoryPreference,
		CategoryResource, CategoryEvent:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown tokens.
func (c *MemoryCategory) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("memory category must be a string: %w", err)
	}
	if !MemoryCategory(token).Valid() {
		return fmt.Errorf("unknown memory category %q", token)
	}
	*c = MemoryCategory(token)
	return nil
}

// Memory tier names. Tiers are increasing-detail representations of
// the same record: l0 is a one-line summary, l1 a medium digest, l2
// the full content.
const (
	TierL0 = "l0"
	TierL1 = "l1"
	TierL2 = "l2"
)

// ValidTier reports whether tier is one of l0/l1/l2.
func ValidTier(tier string) bool {
	return tier == TierL0 || tier == TierL1 || tier == TierL2
}

// MemoryTierEntry is a single tier's content in a store request.
type MemoryTierEntry struct {
	// Tier is "l0", "l1", or "l2".
	Tier string `json:"tier"`

	// Content is the tier's text.
	Content string `json:"content"`
}

// MemoryStore is the body of an EventMemoryStore (and
// EventMemoryUpdate) request. The key is a caller-chosen logical
// address: storing twice with the same (scope, key) updates the
// existing record rather than duplicating it. Resolving that upsert is
// the memory store's job, not this contract's — the message only
// defines the request shape.
type MemoryStore struct {
	// Scope is the record's visibility scope.
	Scope MemoryScope `json:"scope"`

	// Category classifies the knowledge.
	Category MemoryCategory `json:"category"`

	// Key is the logical address used for idempotent upsert
	// (e.g., "memory://agent/learning/api_pattern"). Empty means
	// the store assigns a fresh record unconditionally.
	Key string `json:"key"`

	// Metadata is free-form structured data attached to the record.
	// Defaults to an empty object.
	Metadata json.RawMessage `json:"metadata"`

	// Tags are free-form labels for filtering.
	Tags []string `json:"tags"`

	// AgentID optionally links the memory to an agent.
	AgentID string `json:"agent_id"`

	// RunID optionally links the memory to a pipeline run.
	RunID string `json:"run_id"`

	// SkillID optionally links the memory to a skill.
	SkillID string `json:"skill_id"`

	// RelevanceScore is caller-assigned; the protocol does not
	// compute it.
	RelevanceScore float64 `json:"relevance_score"`

	// Tiers holds zero or more tier entries (l0/l1/l2).
	Tiers []MemoryTierEntry `json:"tiers"`

	// TaskID optionally links the memory to a task.
	TaskID *string `json:"task_id,omitempty"`
}

// UnmarshalJSON applies the metadata default.
func (m *MemoryStore) UnmarshalJSON(data []byte) error {
	type alias MemoryStore
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Metadata) == 0 || string(a.Metadata) == "null" {
		a.Metadata = emptyObject
	}
	*m = MemoryStore(a)
	return nil
}

// Validate checks required fields and tier names.
func (m *MemoryStore) Validate() error {
	if m.Scope == "" {
		return errors.New("scope is required")
	}
	if m.Category == "" {
		return errors.New("category is required")
	}
	for _, tier := range m.Tiers {
		if !ValidTier(tier.Tier) {
			return fmt.Errorf("unknown memory tier %q", tier.Tier)
		}
	}
	return nil
}

// defaultMemoryQueryLimit is MemoryQuery's limit when the field is
// absent.
const defaultMemoryQueryLimit = 20

// MemoryQuery is the body of an EventMemoryQuery request: free-text
// search plus optional filters. The matching MemoryResult arrives as
// an independent event, not a synchronous reply.
type MemoryQuery struct {
	// Query is the free-text query.
	Query string `json:"query"`

	// Scope filters by visibility scope.
	Scope *MemoryScope `json:"scope,omitempty"`

	// Category filters by knowledge category.
	Category *MemoryCategory `json:"category,omitempty"`

	// AgentID filters by linked agent.
	AgentID *string `json:"agent_id,omitempty"`

	// Tier restricts which tier's content is searched and returned.
	Tier *string `json:"tier,omitempty"`

	// TaskID filters by linked task.
	TaskID *string `json:"task_id,omitempty"`

	// Limit caps the number of returned records. Defaults to 20.
	Limit uint32 `json:"limit"`
}

// UnmarshalJSON applies the limit default.
func (m *MemoryQuery) UnmarshalJSON(data []byte) error {
	type alias struct {
		Query    string          `json:"query"`
		Scope    *MemoryScope    `json:"scope"`
		Category *MemoryCategory `json:"category"`
		AgentID  *string         `json:"agent_id"`
		Tier     *string         `json:"tier"`
		TaskID   *string         `json:"task_id"`
		Limit    *uint32         `json:"limit"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Query = a.Query
	m.Scope = a.Scope
	m.Category = a.Category
	m.AgentID = a.AgentID
	m.Tier = a.Tier
	m.TaskID = a.TaskID
	m.Limit = defaultMemoryQueryLimit
	if a.Limit != nil {
		m.Limit = *a.Limit
	}
	return nil
}

// Validate checks required fields and the optional tier filter.
func (m *MemoryQuery) Validate() error {
	if m.Query == "" {
		return errors.New("query is required")
	}
	if m.Tier != nil && !ValidTier(*m.Tier) {
		return fmt.Errorf("unknown memory tier %q", *m.Tier)
	}
	return nil
}

// MemoryDelete is the body of an EventMemoryDelete request.
type MemoryDelete struct {
	MemoryID string `json:"memory_id"`
}

// Validate checks required fields.
func (m *MemoryDelete) Validate() error {
	if m.MemoryID == "" {
		return errors.New("memory_id is required")
	}
	return nil
}

// MemoryTierRecord is a single stored tier in a returned record.
type MemoryTierRecord struct {
	ID        string `json:"id"`
	MemoryID  string `json:"memory_id"`
	Tier      string `json:"tier"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MemoryRecord is the serialized form of a stored memory. Scope and
// category are plain strings here so older readers can display records
// with tokens they do not know.
type MemoryRecord struct {
	ID             string             `json:"id"`
	Scope          string             `json:"scope"`
	Category       string             `json:"category"`
	Key            string             `json:"key"`
	Tiers          []MemoryTierRecord `json:"tiers"`
	Metadata       json.RawMessage    `json:"metadata"`
	Tags           []string           `json:"tags"`
	AgentID        string             `json:"agent_id"`
	RunID          string             `json:"run_id"`
	SkillID        string             `json:"skill_id"`
	RelevanceScore float64            `json:"relevance_score"`

	// AccessCount is monotonically non-decreasing, incremented by
	// reads. The protocol itself never increments it.
	AccessCount int64 `json:"access_count"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// UnmarshalJSON applies the metadata default.
func (m *MemoryRecord) UnmarshalJSON(data []byte) error {
	type alias MemoryRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Metadata) == 0 || string(a.Metadata) == "null" {
		a.Metadata = emptyObject
	}
	*m = MemoryRecord(a)
	return nil
}

// Validate checks required fields.
func (m *MemoryRecord) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}
	if m.Scope == "" {
		return errors.New("scope is required")
	}
	if m.Category == "" {
		return errors.New("category is required")
	}
	return nil
}

// MemoryResult is the body of an EventMemoryResult event. Ordering is
// the store's policy; count equals len(memories) when no further pages
// exist (the protocol defines no pagination cursors).
type MemoryResult struct {
	Memories []MemoryRecord `json:"memories"`
	Count    uint32         `json:"count"`
}

// Validate checks count consistency.
func (m *MemoryResult) Validate() error {
	if int(m.Count) != len(m.Memories) {
		return fmt.Errorf("count %d does not match %d returned memories", m.Count, len(m.Memories))
	}
	return nil
}

// MemoryChanged is the body of an EventMemoryChanged announcement,
// published after every successful mutation. Creations and updates
// carry the full record; deletions carry only the id.
type MemoryChanged struct {
	// Action is "created", "updated", or "deleted".
	Action string `json:"action"`

	// Memory is the full updated record. Nil for deletions.
	Memory *MemoryRecord `json:"memory,omitempty"`

	// MemoryID identifies the record for deletions.
	MemoryID *string `json:"memory_id,omitempty"`
}

// Validate checks required fields and action consistency.
func (m *MemoryChanged) Validate() error {
	switch m.Action {
	case ChangeCreated, ChangeUpdated:
		if m.Memory == nil {
			return fmt.Errorf("memory is required for action %q", m.Action)
		}
	case ChangeDeleted:
		if m.MemoryID == nil || *m.MemoryID == "" {
			return errors.New(`memory_id is required for action "deleted"`)
		}
	default:
		return fmt.Errorf("unknown change action %q", m.Action)
	}
	return nil
}

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/throne-labs/throne/lib/schema"
)

// ErrNotFound means the named memory record does not exist.
var ErrNotFound = errors.New("memory not found")

// recordDomainKey is the BLAKE3 keyed-hash domain for deriving record
// ids from (scope, key) addresses. Fixed constant — changing it
// changes every derived id. The bytes are the ASCII domain name,
// zero-padded to the 32 bytes keyed mode requires, so the key is
// inspectable in hex dumps.
var recordDomainKey = [32]byte{
	't', 'h', 'r', 'o', 'n', 'e', '.', 'm', 'e', 'm', 'o', 'r', 'y', '.',
	'r', 'e', 'c', 'o', 'r', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// deriveID returns the record id for a (scope, key) address. The id
// is stable: the same address always derives the same id, which is
// what makes keyed stores an upsert.
func deriveID(scope schema.MemoryScope, key string) string {
	hasher, err := blake3.NewKeyed(recordDomainKey[:])
	if err != nil {
		panic("memory: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(scope))
	hasher.Write([]byte{0})
	hasher.Write([]byte(key))
	sum := hasher.Sum(nil)
	return "mem-" + hex.EncodeToString(sum[:12])
}

// tierEntry is one tier's at-rest content.
type tierEntry struct {
	id         string
	tier       string
	stored     []byte
	compressed bool
	createdAt  string
	updatedAt  string
}

// record is the store's internal representation of one memory.
type record struct {
	id             string
	scope          schema.MemoryScope
	category       schema.MemoryCategory
	key            string
	tiers          []tierEntry
	metadata       []byte
	tags           []string
	agentID        string
	runID          string
	skillID        string
	taskID         string
	relevanceScore float64
	accessCount    int64
	createdAt      string
	updatedAt      string
}

// Store is the in-memory record table. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]*record

	now func() time.Time
}

// NewStore returns an empty memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Apply consumes one MemoryStore request. Keyed requests upsert: the
// first store to a (scope, key) address creates the record, later
// stores to the same address update it, and a store that is by-value
// identical to the current state (a bus redelivery) is a silent no-op
// with a nil announcement. Keyless requests always create.
func (s *Store) Apply(msg schema.MemoryStore) (schema.MemoryRecord, *schema.MemoryChanged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if msg.Key != "" {
		id = deriveID(msg.Scope, msg.Key)
	}

	now := s.timestamp()
	existing := s.records[id]
	if existing != nil && s.sameContent(existing, msg) {
		view, err := s.view(existing, nil)
		if err != nil {
			return schema.MemoryRecord{}, nil, err
		}
		return view, nil, nil
	}

	r := &record{
		id:             id,
		scope:          msg.Scope,
		category:       msg.Category,
		key:            msg.Key,
		metadata:       msg.Metadata,
		tags:           msg.Tags,
		agentID:        msg.AgentID,
		runID:          msg.RunID,
		skillID:        msg.SkillID,
		relevanceScore: msg.RelevanceScore,
		createdAt:      now,
		updatedAt:      now,
	}
	if msg.TaskID != nil {
		r.taskID = *msg.TaskID
	}

	action := schema.ChangeCreated
	if existing != nil {
		// Update preserves identity and history, replaces content.
		action = schema.ChangeUpdated
		r.createdAt = existing.createdAt
		r.accessCount = existing.accessCount
	}

	for _, entry := range msg.Tiers {
		stored, compressed := packContent(entry.Content)
		r.tiers = append(r.tiers, tierEntry{
			id:         id + "-" + entry.Tier,
			tier:       entry.Tier,
			stored:     stored,
			compressed: compressed,
			createdAt:  r.createdAt,
			updatedAt:  now,
		})
	}

	s.records[id] = r
	view, err := s.view(r, nil)
	if err != nil {
		return schema.MemoryRecord{}, nil, err
	}
	return view, &schema.MemoryChanged{Action: action, Memory: &view}, nil
}

// sameContent reports whether a store request would leave the record
// unchanged.
func (s *Store) sameContent(r *record, msg schema.MemoryStore) bool {
	taskID := ""
	if msg.TaskID != nil {
		taskID = *msg.TaskID
	}
	if r.scope != msg.Scope || r.category != msg.Category || r.key != msg.Key ||
		r.agentID != msg.AgentID || r.runID != msg.RunID || r.skillID != msg.SkillID ||
		r.taskID != taskID || r.relevanceScore != msg.RelevanceScore {
		return false
	}
	if !schema.EqualJSON(r.metadata, msg.Metadata) {
		return false
	}
	if len(r.tags) != len(msg.Tags) {
		return false
	}
	for i, tag := range r.tags {
		if msg.Tags[i] != tag {
			return false
		}
	}
	if len(r.tiers) != len(msg.Tiers) {
		return false
	}
	for i, entry := range r.tiers {
		content, err := unpackContent(entry.stored, entry.compressed)
		if err != nil || msg.Tiers[i].Tier != entry.tier || msg.Tiers[i].Content != content {
			return false
		}
	}
	return true
}

// Query consumes one MemoryQuery request and returns the matching
// result event. Returned records have their access counts
// incremented; an empty match is a valid result, not an error.
func (s *Store) Query(msg schema.MemoryQuery) (schema.MemoryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*record)
	var docs []rankDoc
	for _, r := range s.records {
		if msg.Scope != nil && r.scope != *msg.Scope {
			continue
		}
		if msg.Category != nil && r.category != *msg.Category {
			continue
		}
		if msg.AgentID != nil && r.agentID != *msg.AgentID {
			continue
		}
		if msg.TaskID != nil && r.taskID != *msg.TaskID {
			continue
		}

		var tierText []string
		for _, entry := range r.tiers {
			if msg.Tier != nil && entry.tier != *msg.Tier {
				continue
			}
			content, err := unpackContent(entry.stored, entry.compressed)
			if err != nil {
				return schema.MemoryResult{}, fmt.Errorf("querying memory %s: %w", r.id, err)
			}
			tierText = append(tierText, content)
		}

		byID[r.id] = r
		docs = append(docs, newRankDoc(r.id, r.key, r.tags, tierText))
	}

	hits := rank(msg.Query, docs, func(id string) string { return byID[id].updatedAt })
	if msg.Limit > 0 && len(hits) > int(msg.Limit) {
		hits = hits[:msg.Limit]
	}

	memories := make([]schema.MemoryRecord, 0, len(hits))
	for _, hit := range hits {
		r := byID[hit.id]
		r.accessCount++
		view, err := s.view(r, msg.Tier)
		if err != nil {
			return schema.MemoryResult{}, err
		}
		memories = append(memories, view)
	}
	return schema.MemoryResult{Memories: memories, Count: uint32(len(memories))}, nil
}

// Get returns one record by id without affecting its access count.
func (s *Store) Get(memoryID string) (schema.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[memoryID]
	if !ok {
		return schema.MemoryRecord{}, fmt.Errorf("getting memory %s: %w", memoryID, ErrNotFound)
	}
	return s.view(r, nil)
}

// Delete consumes one MemoryDelete request. Deleting an absent record
// is the redelivered delete: a no-op reported as a nil announcement.
func (s *Store) Delete(msg schema.MemoryDelete) *schema.MemoryChanged {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[msg.MemoryID]; !ok {
		return nil
	}
	delete(s.records, msg.MemoryID)
	id := msg.MemoryID
	return &schema.MemoryChanged{Action: schema.ChangeDeleted, MemoryID: &id}
}

// view builds the wire record, decompressing tier content. A non-nil
// tier filter restricts which tiers the view carries.
func (s *Store) view(r *record, tier *string) (schema.MemoryRecord, error) {
	view := schema.MemoryRecord{
		ID:             r.id,
		Scope:          string(r.scope),
		Category:       string(r.category),
		Key:            r.key,
		Metadata:       r.metadata,
		Tags:           r.tags,
		AgentID:        r.agentID,
		RunID:          r.runID,
		SkillID:        r.skillID,
		RelevanceScore: r.relevanceScore,
		AccessCount:    r.accessCount,
		CreatedAt:      r.createdAt,
		UpdatedAt:      r.updatedAt,
	}
	if len(view.Metadata) == 0 {
		view.Metadata = []byte("{}")
	}
	for _, entry := range r.tiers {
		if tier != nil && entry.tier != *tier {
			continue
		}
		content, err := unpackContent(entry.stored, entry.compressed)
		if err != nil {
			return schema.MemoryRecord{}, fmt.Errorf("reading memory %s tier %s: %w", r.id, entry.tier, err)
		}
		view.Tiers = append(view.Tiers, schema.MemoryTierRecord{
			ID:        entry.id,
			MemoryID:  r.id,
			Tier:      entry.tier,
			Content:   content,
			CreatedAt: entry.createdAt,
			UpdatedAt: entry.updatedAt,
		})
	}
	return view, nil
}

// Snapshot returns every record in wire form, for checkpointing.
func (s *Store) Snapshot() ([]schema.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]schema.MemoryRecord, 0, len(s.records))
	for _, r := range s.records {
		view, err := s.view(r, nil)
		if err != nil {
			return nil, err
		}
		records = append(records, view)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Restore replaces the store's contents with a checkpointed snapshot.
func (s *Store) Restore(records []schema.MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*record, len(records))
	for _, view := range records {
		r := &record{
			id:             view.ID,
			scope:          schema.MemoryScope(view.Scope),
			category:       schema.MemoryCategory(view.Category),
			key:            view.Key,
			metadata:       view.Metadata,
			tags:           view.Tags,
			agentID:        view.AgentID,
			runID:          view.RunID,
			skillID:        view.SkillID,
			relevanceScore: view.RelevanceScore,
			accessCount:    view.AccessCount,
			createdAt:      view.CreatedAt,
			updatedAt:      view.UpdatedAt,
		}
		for _, entry := range view.Tiers {
			stored, compressed := packContent(entry.Content)
			r.tiers = append(r.tiers, tierEntry{
				id:         entry.ID,
				tier:       entry.Tier,
				stored:     stored,
				compressed: compressed,
				createdAt:  entry.CreatedAt,
				updatedAt:  entry.UpdatedAt,
			})
		}
		s.records[r.id] = r
	}
}

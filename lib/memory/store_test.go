// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/throne-labs/throne/lib/schema"
)

func newTestStore() *Store {
	s := NewStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func storeRequest(key, content string, tags ...string) schema.MemoryStore {
	return schema.MemoryStore{
		Scope:    schema.ScopeAgent,
		Category: schema.CategoryPattern,
		Key:      key,
		Metadata: []byte("{}"),
		Tags:     tags,
		AgentID:  "agent-1",
		Tiers: []schema.MemoryTierEntry{
			{Tier: schema.TierL0, Content: content},
		},
	}
}

func TestApplyCreatesRecord(t *testing.T) {
	s := newTestStore()
	record, changed, err := s.Apply(storeRequest("memory://agent/learning/api_pattern", "retry with backoff", "http"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if record.ID == "" {
		t.Fatal("Apply did not assign an id")
	}
	if changed == nil || changed.Action != schema.ChangeCreated {
		t.Fatalf("announcement = %+v, want created", changed)
	}
	if changed.Memory == nil || changed.Memory.ID != record.ID {
		t.Error("announcement does not carry the record")
	}
	if len(record.Tiers) != 1 || record.Tiers[0].Content != "retry with backoff" {
		t.Errorf("tiers = %+v", record.Tiers)
	}
	if record.Tiers[0].MemoryID != record.ID {
		t.Error("tier does not reference its record")
	}
}

func TestApplyUpsertsByScopeAndKey(t *testing.T) {
	s := newTestStore()
	first, _, _ := s.Apply(storeRequest("memory://agent/learning/api_pattern", "v1"))

	second, changed, err := s.Apply(storeRequest("memory://agent/learning/api_pattern", "v2"))
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert changed the id: %q then %q", first.ID, second.ID)
	}
	if changed == nil || changed.Action != schema.ChangeUpdated {
		t.Fatalf("announcement = %+v, want updated", changed)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Error("update rewrote created_at")
	}
	if second.UpdatedAt == first.UpdatedAt {
		t.Error("update did not advance updated_at")
	}
	if second.Tiers[0].Content != "v2" {
		t.Errorf("tier content = %q, want v2", second.Tiers[0].Content)
	}

	// Same key, different scope: a different record.
	other := storeRequest("memory://agent/learning/api_pattern", "v2")
	other.Scope = schema.ScopeSystem
	third, changed, err := s.Apply(other)
	if err != nil {
		t.Fatalf("cross-scope Apply: %v", err)
	}
	if third.ID == first.ID {
		t.Error("records in different scopes share an id")
	}
	if changed == nil || changed.Action != schema.ChangeCreated {
		t.Errorf("cross-scope announcement = %+v, want created", changed)
	}
}

func TestApplyRedeliveryIsNoOp(t *testing.T) {
	s := newTestStore()
	request := storeRequest("memory://agent/learning/api_pattern", "v1", "http", "retry")
	first, _, _ := s.Apply(request)

	second, changed, err := s.Apply(request)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if changed != nil {
		t.Errorf("redelivery produced announcement %+v", changed)
	}
	if second.UpdatedAt != first.UpdatedAt {
		t.Error("redelivery advanced updated_at")
	}
}

func TestApplyKeylessAlwaysCreates(t *testing.T) {
	s := newTestStore()
	request := storeRequest("", "observation")
	first, _, _ := s.Apply(request)
	second, changed, err := s.Apply(request)
	if err != nil {
		t.Fatalf("second keyless Apply: %v", err)
	}
	if second.ID == first.ID {
		t.Error("keyless stores were deduplicated")
	}
	if changed == nil || changed.Action != schema.ChangeCreated {
		t.Errorf("announcement = %+v, want created", changed)
	}
}

func TestQueryRanksAndCounts(t *testing.T) {
	s := newTestStore()
	s.Apply(storeRequest("memory://agent/learning/http_retry", "retry HTTP requests with exponential backoff", "http", "retry"))
	s.Apply(storeRequest("memory://agent/learning/sql_schema", "normalize SQL schemas before migration", "sql"))
	s.Apply(storeRequest("memory://agent/learning/http_cache", "cache HTTP responses by etag", "http"))

	result, err := s.Query(schema.MemoryQuery{Query: "http retry backoff", Limit: 20})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Count != uint32(len(result.Memories)) {
		t.Errorf("count %d does not match %d memories", result.Count, len(result.Memories))
	}
	if len(result.Memories) != 2 {
		t.Fatalf("Query matched %d records, want 2", len(result.Memories))
	}
	if result.Memories[0].Key != "memory://agent/learning/http_retry" {
		t.Errorf("best match = %q", result.Memories[0].Key)
	}
	if result.Memories[0].AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", result.Memories[0].AccessCount)
	}

	// A second query keeps incrementing.
	result, _ = s.Query(schema.MemoryQuery{Query: "http retry backoff", Limit: 20})
	if result.Memories[0].AccessCount != 2 {
		t.Errorf("access_count after second query = %d, want 2", result.Memories[0].AccessCount)
	}
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore()
	s.Apply(storeRequest("memory://agent/learning/http_retry", "retry http", "http"))
	other := storeRequest("memory://system/http_policy", "system http policy")
	other.Scope = schema.ScopeSystem
	other.Category = schema.CategoryFact
	other.AgentID = ""
	s.Apply(other)

	scope := schema.ScopeSystem
	result, err := s.Query(schema.MemoryQuery{Query: "http", Scope: &scope, Limit: 20})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Memories) != 1 || result.Memories[0].Scope != "system" {
		t.Fatalf("scope filter returned %+v", result.Memories)
	}

	agent := "agent-1"
	result, _ = s.Query(schema.MemoryQuery{Query: "http", AgentID: &agent, Limit: 20})
	if len(result.Memories) != 1 || result.Memories[0].AgentID != "agent-1" {
		t.Fatalf("agent filter returned %+v", result.Memories)
	}

	category := schema.CategoryPreference
	result, _ = s.Query(schema.MemoryQuery{Query: "http", Category: &category, Limit: 20})
	if len(result.Memories) != 0 {
		t.Fatalf("category filter returned %+v", result.Memories)
	}
}

func TestQueryLimit(t *testing.T) {
	s := newTestStore()
	for _, key := range []string{"a", "b", "c"} {
		s.Apply(storeRequest("memory://agent/notes/"+key, "golang concurrency notes"))
	}
	result, err := s.Query(schema.MemoryQuery{Query: "golang concurrency", Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Memories) != 2 || result.Count != 2 {
		t.Fatalf("limited query returned %d records", len(result.Memories))
	}
}

func TestQueryTierFilter(t *testing.T) {
	s := newTestStore()
	request := storeRequest("memory://agent/learning/http_retry", "")
	request.Tiers = []schema.MemoryTierEntry{
		{Tier: schema.TierL0, Content: "short note"},
		{Tier: schema.TierL2, Content: "full transcript about http retry strategy"},
	}
	s.Apply(request)

	tier := schema.TierL0
	result, err := s.Query(schema.MemoryQuery{Query: "transcript", Tier: &tier, Limit: 20})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// "transcript" only appears in l2; with the l0 filter the key and
	// tags still match nothing, so the record is not returned.
	if len(result.Memories) != 0 {
		t.Fatalf("l0-filtered query matched %d records", len(result.Memories))
	}

	tier = schema.TierL2
	result, _ = s.Query(schema.MemoryQuery{Query: "transcript", Tier: &tier, Limit: 20})
	if len(result.Memories) != 1 {
		t.Fatalf("l2-filtered query matched %d records", len(result.Memories))
	}
	if len(result.Memories[0].Tiers) != 1 || result.Memories[0].Tiers[0].Tier != schema.TierL2 {
		t.Errorf("returned tiers = %+v, want only l2", result.Memories[0].Tiers)
	}
}

func TestLargeTierContentRoundTrips(t *testing.T) {
	s := newTestStore()
	// Repetitive content well past the compression threshold.
	content := strings.Repeat("the pipeline produced artifact alpha; ", 200)
	request := storeRequest("memory://pipeline/run-1/transcript", "")
	request.Tiers = []schema.MemoryTierEntry{{Tier: schema.TierL2, Content: content}}
	record, _, err := s.Apply(request)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if record.Tiers[0].Content != content {
		t.Fatal("stored l2 content does not round-trip")
	}

	got, err := s.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tiers[0].Content != content {
		t.Fatal("read-back l2 content does not round-trip")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore()
	record, _, _ := s.Apply(storeRequest("memory://agent/learning/http_retry", "v1"))

	changed := s.Delete(schema.MemoryDelete{MemoryID: record.ID})
	if changed == nil || changed.Action != schema.ChangeDeleted {
		t.Fatalf("Delete announcement = %+v, want deleted", changed)
	}
	if changed.MemoryID == nil || *changed.MemoryID != record.ID {
		t.Error("Delete announcement does not carry the id")
	}
	if _, err := s.Get(record.ID); !errors.Is(err, ErrNotFound) {
		t.Error("record survived deletion")
	}
	if changed := s.Delete(schema.MemoryDelete{MemoryID: record.ID}); changed != nil {
		t.Error("redelivered delete produced an announcement")
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestStore()
	s.Apply(storeRequest("memory://agent/a", "alpha content", "alpha"))
	s.Apply(storeRequest("memory://agent/b", "beta content", "beta"))

	snapshot, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot returned %d records, want 2", len(snapshot))
	}

	restored := NewStore()
	restored.Restore(snapshot)
	result, err := restored.Query(schema.MemoryQuery{Query: "beta content", Limit: 20})
	if err != nil {
		t.Fatalf("Query after restore: %v", err)
	}
	if len(result.Memories) == 0 || result.Memories[0].Key != "memory://agent/b" {
		t.Fatalf("restored query returned %+v", result.Memories)
	}
}

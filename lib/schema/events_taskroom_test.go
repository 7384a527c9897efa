// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"testing"
)

func TestTaskInviteDefaults(t *testing.T) {
	msg, err := Decode[TaskInvite]([]byte(`{"task_id": "t1", "task_type": "research"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(msg.Payload) != "{}" {
		t.Errorf("payload = %s, want {}", msg.Payload)
	}

	if _, err := Decode[TaskInvite]([]byte(`{"task_id": "t1"}`)); err == nil {
		t.Fatal("TaskInvite without task_type decoded without error")
	}
}

func TestTaskOutputWireFields(t *testing.T) {
	msg := TaskOutput{
		TaskID:     "t1",
		RequestID:  "r1",
		Source:     SourceLLM,
		Delta:      "partial text",
		ChunkIndex: 2,
		IsFinal:    true,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal to map: %v", err)
	}
	assertField(t, raw, "task_id", "t1")
	assertField(t, raw, "request_id", "r1")
	assertField(t, raw, "source", "llm")
	assertField(t, raw, "delta", "partial text")
	assertField(t, raw, "chunk_index", float64(2))
	assertField(t, raw, "is_final", true)
}

func TestTaskOutputValidation(t *testing.T) {
	// is_final defaults to false when absent.
	msg, err := Decode[TaskOutput]([]byte(`{"task_id": "t1", "request_id": "r1", "source": "pty", "delta": "x", "chunk_index": 0}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.IsFinal {
		t.Error("is_final should default to false")
	}

	bad := []byte(`{"task_id": "t1", "request_id": "r1", "source": "webcam", "delta": "", "chunk_index": 0}`)
	if _, err := Decode[TaskOutput](bad); err == nil {
		t.Fatal("unknown output source decoded without error")
	}
	if _, err := Decode[TaskOutput]([]byte(`{"task_id": "t1", "source": "pty"}`)); err == nil {
		t.Fatal("TaskOutput without request_id decoded without error")
	}
}

func TestTaskOutputRequiresDeltaAndChunkIndex(t *testing.T) {
	// delta and chunk_index have no default: an absent chunk_index is a
	// malformed chunk, not chunk zero. An empty delta stated explicitly
	// is fine.
	cases := []struct {
		name string
		body string
	}{
		{"missing delta", `{"task_id": "t1", "request_id": "r1", "source": "pty", "chunk_index": 0}`},
		{"null delta", `{"task_id": "t1", "request_id": "r1", "source": "pty", "delta": null, "chunk_index": 0}`},
		{"missing chunk_index", `{"task_id": "t1", "request_id": "r1", "source": "pty", "delta": "x"}`},
		{"null chunk_index", `{"task_id": "t1", "request_id": "r1", "source": "pty", "delta": "x", "chunk_index": null}`},
	}
	for _, tc := range cases {
		if _, err := Decode[TaskOutput]([]byte(tc.body)); err == nil {
			t.Errorf("%s decoded without error", tc.name)
		}
	}

	msg, err := Decode[TaskOutput]([]byte(`{"task_id": "t1", "request_id": "r1", "source": "pty", "delta": "", "chunk_index": 0}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Delta != "" || msg.ChunkIndex != 0 {
		t.Errorf("decoded = %+v", msg)
	}
}

func TestTaskEvaluateOptionalFields(t *testing.T) {
	msg, err := Decode[TaskEvaluate]([]byte(`{"task_id": "t1", "task_type": "research"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.ExitCode != nil || msg.LatencyMS != nil {
		t.Error("absent optional fields should decode to nil")
	}
	if string(msg.Metadata) != "{}" {
		t.Errorf("metadata = %s, want {}", msg.Metadata)
	}

	full := []byte(`{"task_id": "t1", "task_type": "research", "output_summary": "done", "exit_code": 0, "latency_ms": 1530}`)
	msg, err = Decode[TaskEvaluate](full)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.ExitCode == nil || *msg.ExitCode != 0 {
		t.Errorf("exit_code = %v", msg.ExitCode)
	}
	if msg.LatencyMS == nil || *msg.LatencyMS != 1530 {
		t.Errorf("latency_ms = %v", msg.LatencyMS)
	}
}

func TestTaskSummaryRoundTrip(t *testing.T) {
	score := 0.92
	original := TaskSummary{
		TaskID:     "t1",
		AgentID:    "evaluation-001",
		Summary:    "completed with high accuracy",
		Score:      &score,
		Tags:       []string{"research"},
		Evaluation: json.RawMessage(`{"accuracy":0.92}`),
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Decode[TaskSummary](data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Summary != original.Summary || decoded.Score == nil || *decoded.Score != score {
		t.Errorf("decoded = %+v", decoded)
	}

	if _, err := Decode[TaskSummary]([]byte(`{"task_id": "t1", "agent_id": "a"}`)); err == nil {
		t.Fatal("TaskSummary without summary decoded without error")
	}
}

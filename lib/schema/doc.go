// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire contracts for the throne coordination
// protocol: the event taxonomy, the room topology, and the typed message
// payload for every event the king and its agents exchange.
//
// Everything here is a pure data contract. The package holds no
// connection state and performs no I/O — it exists so that every
// producer and consumer on the bus agrees, bit-exactly, on event names,
// room names, field names, and enum tokens. The state machines that
// interpret these messages live in lib/task, lib/pipeline, lib/memory,
// and lib/taskroom.
//
// # Wire format
//
// One JSON object per event. Field names are snake_case. Enum values
// are lowercase snake_case tokens derived from the variant name
// ("pre_load", "timed_out", "in_progress"). Two enums carry payloads:
// AgentRole's user variant and SkillResult's failure/partial variants
// encode as single-key objects ({"user": "qa-bot"}) while unit variants
// encode as bare strings. These mappings are load-bearing for
// cross-implementation compatibility and must never change.
//
// # Forward compatibility
//
// Decoding rejects a body whose required fields are missing, silently
// ignores unknown fields, and accepts the absence of any defaulted
// field (TaskCreate.payload, TaskList.limit, MemoryQuery.limit). New
// event names and new optional fields may be added; existing names and
// fields are never repurposed. Use Decode to get these guarantees —
// a bare json.Unmarshal skips required-field validation.
package schema

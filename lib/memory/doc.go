// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory implements the king-side memory store: durable,
// scoped knowledge records with tiered content (l0 summary, l1
// digest, l2 full).
//
// Writes go through MemoryStore messages with idempotent upsert
// semantics: the caller-chosen (scope, key) pair is the record's
// logical address, and storing to the same address updates the
// existing record instead of duplicating it. Record ids are derived
// from that address with a keyed BLAKE3 hash, so the same address
// always yields the same id. Keyless stores get a random id and are
// never deduplicated.
//
// Reads go through MemoryQuery messages: free-text BM25 ranking over
// key, tags, and tier content, with optional scope/category/agent/
// task/tier filters. Query results increment the records' access
// counts. Large l2 tier content is held zstd-compressed at rest and
// decompressed on read.
package memory

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec persists king checkpoints: a CBOR snapshot of the
// task table, pipeline runs, and memory records, written atomically
// and reloaded on restart.
//
// Checkpoints use Core Deterministic Encoding (RFC 8949 §4.2), so
// the same state always produces identical bytes — a checkpoint can
// be content-hashed or diffed meaningfully. Decoding ignores unknown
// fields, so a newer king can read an older checkpoint.
package codec

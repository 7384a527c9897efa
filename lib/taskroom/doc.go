// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskroom tracks the ephemeral per-task rooms and the output
// streams flowing through them.
//
// A room opens with a task invite, accumulates joins and streamed
// output chunks, and closes when an evaluation summary is observed.
// Within a room, every (request_id, source) pair is an independent
// stream with strictly increasing chunk indexes, terminated by the
// chunk marked is_final. Ordering holds only within one stream;
// nothing is guaranteed across streams or across rooms.
//
// The bus delivers at least once, so the tracker separates duplicates
// from violations: a redelivered chunk (index already consumed) is
// discarded silently, while a chunk after the stream's final chunk, a
// gap in the index sequence, or output into a closed room is rejected
// with an error for the sender.
package taskroom

// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package king is the central orchestrator: one event loop consuming
// the kernel room and every open task room, applying each message to
// the task table, the pipeline coordinator, the memory store, or the
// task-room tracker, and publishing the resulting announcements and
// hand-offs back through the bus.
//
// The loop never dies on a bad message. Malformed payloads and state
// violations are logged and answered per message; stale duplicates
// are discarded silently. Durable state (tasks, runs, memories) is
// checkpointed periodically and restored on startup.
package king

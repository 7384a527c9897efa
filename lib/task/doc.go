// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package task implements the task lifecycle state machine and an
// in-memory task table that applies the protocol's task CRUD messages.
//
// The lifecycle is Pending → InProgress → {Completed | Failed |
// Cancelled}. Transition validates a single status move; Store applies
// whole TaskUpdate messages with the protocol's idempotency rule:
// redelivery of a by-value identical update is a silent no-op, while a
// conflicting update (second claim, post-terminal mutation) is a
// rejected state violation. The state machine itself is stateless —
// policy like at-most-one-owner lives in Store, which is what actually
// applies updates.
package task

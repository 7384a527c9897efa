// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the in-process event bus: named rooms, fan-out
// delivery to every subscriber of a room, at-least-once semantics.
//
// The coordination protocol assumes only rooms and fire-and-forget
// events, so the bus interface is deliberately small: publish an
// event into rooms, subscribe to a room, done. The in-process
// implementation backs the king binary and the tests; a networked
// transport can replace it without touching the protocol packages.
package bus

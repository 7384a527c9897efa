// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/throne-labs/throne/lib/schema"
)

// ErrClosed means the bus was shut down.
var ErrClosed = errors.New("bus is closed")

// Envelope is one delivered event: the room it arrived in, the event
// name, the sender's id, and the JSON body.
type Envelope struct {
	Room   string
	Event  string
	Sender string
	Body   json.RawMessage
}

// subscriptionBuffer is each subscription's channel depth. A
// subscriber that falls this far behind blocks its publishers, which
// is preferable to silent drops for a coordination bus.
const subscriptionBuffer = 64

// Subscription is one subscriber's view of a room. Consumers receive
// from Events and stop when Done is closed:
//
//	for {
//		select {
//		case envelope := <-sub.Events():
//			handle(envelope)
//		case <-sub.Done():
//			return
//		}
//	}
type Subscription struct {
	room string
	ch   chan Envelope
	done chan struct{}

	cancelOnce sync.Once
	detach     func()
}

// Events is the delivery channel. It is never closed; Done signals
// termination.
func (s *Subscription) Events() <-chan Envelope {
	return s.ch
}

// Done closes when the subscription is cancelled or the bus shuts
// down. Envelopes already buffered in Events stay readable.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Room returns the subscribed room name.
func (s *Subscription) Room() string {
	return s.room
}

// Cancel detaches the subscription. Idempotent.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.detach()
		close(s.done)
	})
}

// Bus is an in-process room bus. Rooms come into existence when
// first subscribed to; publishing into a room with no subscribers is
// legal and delivers nothing.
type Bus struct {
	mu     sync.Mutex
	rooms  map[string]map[*Subscription]bool
	closed bool
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{rooms: make(map[string]map[*Subscription]bool)}
}

// Subscribe attaches a new subscriber to a room. Subscribing to a
// closed bus yields an already-done subscription.
func (b *Bus) Subscribe(room string) *Subscription {
	sub := &Subscription{
		room: room,
		ch:   make(chan Envelope, subscriptionBuffer),
		done: make(chan struct{}),
	}
	sub.detach = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.rooms[room]
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.rooms, room)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.done)
		return sub
	}
	if b.rooms[room] == nil {
		b.rooms[room] = make(map[*Subscription]bool)
	}
	b.rooms[room][sub] = true
	return sub
}

// Publish delivers one event into a single room. It blocks while a
// subscriber's buffer is full, honoring ctx for cancellation;
// cancelled subscribers are skipped.
func (b *Bus) Publish(ctx context.Context, room, event, sender string, body json.RawMessage) error {
	envelope := Envelope{Room: room, Event: event, Sender: sender, Body: body}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	subs := make([]*Subscription, 0, len(b.rooms[room]))
	for sub := range b.rooms[room] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- envelope:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// PublishEvent routes body by the protocol's room-derivation rules
// and delivers into every derived room. The event name must be a
// known protocol event.
func (b *Bus) PublishEvent(ctx context.Context, event, sender string, body json.RawMessage) error {
	rooms, err := schema.Route(event, body)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if err := b.Publish(ctx, room, event, sender, body); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the bus down: every subscription becomes done and
// further publishes fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for room, subs := range b.rooms {
		for sub := range subs {
			all = append(all, sub)
		}
		delete(b.rooms, room)
	}
	b.mu.Unlock()

	// Signal outside the lock: a concurrent Cancel holds its Once
	// while detaching, which needs the lock.
	for _, sub := range all {
		sub.cancelOnce.Do(func() { close(sub.done) })
	}
}

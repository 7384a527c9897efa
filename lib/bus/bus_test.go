// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/throne-labs/throne/lib/schema"
)

func receive(t *testing.T, sub *Subscription) Envelope {
	t.Helper()
	select {
	case envelope := <-sub.Events():
		return envelope
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

func TestPublishFansOut(t *testing.T) {
	b := New()
	defer b.Close()

	first := b.Subscribe(schema.RoomKernel)
	second := b.Subscribe(schema.RoomKernel)
	other := b.Subscribe("role:building")

	body := json.RawMessage(`{"agent_id":"a1"}`)
	if err := b.Publish(context.Background(), schema.RoomKernel, schema.EventAgentStatus, "a1", body); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, sub := range []*Subscription{first, second} {
		envelope := receive(t, sub)
		if envelope.Event != schema.EventAgentStatus || envelope.Room != schema.RoomKernel {
			t.Errorf("envelope = %+v", envelope)
		}
		if envelope.Sender != "a1" {
			t.Errorf("sender = %q", envelope.Sender)
		}
	}

	select {
	case envelope := <-other.Events():
		t.Fatalf("role room received kernel event %+v", envelope)
	default:
	}
}

func TestPublishEventRoutes(t *testing.T) {
	b := New()
	defer b.Close()

	building := b.Subscribe(schema.RoleRoom(schema.RoleBuilding))
	kernel := b.Subscribe(schema.RoomKernel)

	body := json.RawMessage(`{"stage":"building","artifact_id":"art-1","metadata":{}}`)
	if err := b.PublishEvent(context.Background(), schema.EventPipelineNext, "king", body); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	envelope := receive(t, building)
	if envelope.Room != "role:building" {
		t.Errorf("delivered into %q", envelope.Room)
	}
	select {
	case envelope := <-kernel.Events():
		t.Fatalf("kernel received role-routed event %+v", envelope)
	default:
	}

	if err := b.PublishEvent(context.Background(), "no:such_event", "king", []byte("{}")); err == nil {
		t.Error("PublishEvent accepted an unknown event")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	defer b.Close()
	if err := b.Publish(context.Background(), "task:t1", schema.EventTaskLog, "a1", []byte("{}")); err != nil {
		t.Fatalf("Publish into empty room: %v", err)
	}
}

func TestCancelSkipsSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe(schema.RoomKernel)
	sub.Cancel()
	sub.Cancel() // idempotent

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done is not closed after Cancel")
	}

	// Fill well past the buffer: a cancelled subscriber must not
	// block publishers.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < subscriptionBuffer*2; i++ {
		if err := b.Publish(ctx, schema.RoomKernel, schema.EventAgentStatus, "a1", []byte("{}")); err != nil {
			t.Fatalf("Publish after Cancel: %v", err)
		}
	}
}

func TestPublishHonorsContext(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe(schema.RoomKernel)
	_ = sub // never drained

	ctx, cancel := context.WithCancel(context.Background())
	// Fill the buffer, then cancel mid-publish.
	for i := 0; i < subscriptionBuffer; i++ {
		if err := b.Publish(ctx, schema.RoomKernel, schema.EventAgentStatus, "a1", []byte("{}")); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	cancel()
	err := b.Publish(ctx, schema.RoomKernel, schema.EventAgentStatus, "a1", []byte("{}"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish into full buffer: error = %v, want context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	b := New()
	sub := b.Subscribe(schema.RoomKernel)
	b.Close()
	b.Close() // idempotent

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("Done is not closed after bus Close")
	}
	if err := b.Publish(context.Background(), schema.RoomKernel, schema.EventAgentStatus, "a1", []byte("{}")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Publish after Close: error = %v, want ErrClosed", err)
	}
	if late := b.Subscribe(schema.RoomKernel); late != nil {
		select {
		case <-late.Done():
		default:
			t.Error("subscription on closed bus is not done")
		}
	}
}

package channel

import (
	"testing"
)

func TestLocalBusSubscribe(t *testing.T) {
	bus := NewLocalBus()

	ch, err := bus.Subscribe("host")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if ch == nil {
		t.Fatal("Subscribe() returned nil channel")
	}

	// Duplicate names are rejected for both subscriber kinds.
	if _, err := bus.Subscribe("host"); err == nil {
		t.Error("Expected error for duplicate channel subscriber")
	}
	if err := bus.SubscribeFunc("host", func(*Message) {}); err == nil {
		t.Error("Expected error for duplicate callback subscriber")
	}

	names := bus.List()
	if len(names) != 1 || names[0] != "host" {
		t.Errorf("List() = %v, want [host]", names)
	}
}

func TestLocalBusSendToChannel(t *testing.T) {
	bus := NewLocalBus()
	ch, _ := bus.Subscribe("host")

	msg := NewMessage("BLOCK_SESSION", map[string]string{"eventType": "started"})
	if err := bus.Send("host", msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := <-ch
	if got.ID != msg.ID {
		t.Errorf("Received message ID = %s, want %s", got.ID, msg.ID)
	}
}

func TestLocalBusSendToHandler(t *testing.T) {
	bus := NewLocalBus()

	var received []*Message
	if err := bus.SubscribeFunc("collector", func(m *Message) {
		received = append(received, m)
	}); err != nil {
		t.Fatalf("SubscribeFunc() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := bus.Send("collector", NewMessage("BLOCK_INTERACTION", nil)); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	if len(received) != 3 {
		t.Errorf("Handler received %d messages, want 3", len(received))
	}
}

func TestLocalBusSendUnknownTarget(t *testing.T) {
	bus := NewLocalBus()
	if err := bus.Send("nobody", NewMessage("test", nil)); err == nil {
		t.Error("Expected error for unknown target")
	}
}

func TestLocalBusDropOnFullChannel(t *testing.T) {
	bus := NewLocalBusWithBuffer(2)
	_, _ = bus.Subscribe("slow")

	msg := NewMessage("BLOCK_INTERACTION", nil)
	if err := bus.Send("slow", msg); err != nil {
		t.Fatalf("Send() 1 error = %v", err)
	}
	if err := bus.Send("slow", msg); err != nil {
		t.Fatalf("Send() 2 error = %v", err)
	}

	// Third send overflows the buffer: dropped, not blocked.
	if err := bus.Send("slow", msg); err == nil {
		t.Error("Expected error for send to full channel")
	}
	if bus.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", bus.Dropped())
	}
}

func TestLocalBusBroadcast(t *testing.T) {
	bus := NewLocalBus()
	ch1, _ := bus.Subscribe("one")
	ch2, _ := bus.Subscribe("two")

	var handled int
	_ = bus.SubscribeFunc("three", func(*Message) { handled++ })

	if err := bus.Broadcast(NewMessage("EDITABLE_MODE_CHANGE", map[string]bool{"editMode": true})); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	if len(ch1) != 1 || len(ch2) != 1 {
		t.Errorf("Channel subscribers got %d/%d messages, want 1/1", len(ch1), len(ch2))
	}
	if handled != 1 {
		t.Errorf("Callback subscriber handled %d messages, want 1", handled)
	}
}

func TestLocalBusBroadcastContinuesPastFailures(t *testing.T) {
	bus := NewLocalBusWithBuffer(1)
	full, _ := bus.Subscribe("full")
	_ = bus.Send("full", NewMessage("fill", nil))

	var handled int
	_ = bus.SubscribeFunc("after", func(*Message) { handled++ })

	err := bus.Broadcast(NewMessage("BLOCK_SESSION", nil))
	if err == nil {
		t.Error("Expected first error from full subscriber")
	}
	if handled != 1 {
		t.Errorf("Later subscriber handled %d messages, want 1", handled)
	}
	_ = full
}

func TestLocalBusHandlerPanicIsolated(t *testing.T) {
	bus := NewLocalBus()
	_ = bus.SubscribeFunc("faulty", func(*Message) { panic("boom") })

	var handled int
	_ = bus.SubscribeFunc("healthy", func(*Message) { handled++ })

	if err := bus.Broadcast(NewMessage("BLOCK_QUESTION", nil)); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if handled != 1 {
		t.Errorf("Healthy subscriber handled %d messages, want 1", handled)
	}
}

func TestLocalBusParentUplink(t *testing.T) {
	bus := NewLocalBus()

	// No parent configured: publish is a silent no-op.
	if err := bus.PublishToParent(NewMessage("editor:init", nil)); err != nil {
		t.Fatalf("PublishToParent() without parent error = %v", err)
	}

	ch, _ := bus.Subscribe("parent-frame")
	bus.SetParent("parent-frame")

	if bus.Parent() != "parent-frame" {
		t.Errorf("Parent() = %s, want parent-frame", bus.Parent())
	}

	msg := NewMessage("editor:init", map[string]string{"id": "hero"})
	if err := bus.PublishToParent(msg); err != nil {
		t.Fatalf("PublishToParent() error = %v", err)
	}
	got := <-ch
	if got.Type != "editor:init" {
		t.Errorf("Parent received type %s, want editor:init", got.Type)
	}
}

func TestLocalBusUnsubscribe(t *testing.T) {
	bus := NewLocalBus()
	_, _ = bus.Subscribe("gone")
	bus.SetParent("gone")

	if err := bus.Unsubscribe("gone"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := bus.Unsubscribe("gone"); err == nil {
		t.Error("Expected error for double unsubscribe")
	}

	// Unsubscribing the parent clears the uplink.
	if bus.Parent() != "" {
		t.Errorf("Parent() = %s, want empty after unsubscribe", bus.Parent())
	}
	if err := bus.Send("gone", NewMessage("test", nil)); err == nil {
		t.Error("Expected error sending to removed subscriber")
	}
}

func TestLocalBusOrderPreserved(t *testing.T) {
	bus := NewLocalBus()
	ch, _ := bus.Subscribe("host")

	for i := 0; i < 10; i++ {
		msg := NewMessage("BLOCK_INTERACTION", map[string]int{"seq": i})
		if err := bus.Send("host", msg); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	for i := 0; i < 10; i++ {
		got := <-ch
		var payload map[string]int
		if err := got.UnmarshalPayload(&payload); err != nil {
			t.Fatalf("UnmarshalPayload() error = %v", err)
		}
		if payload["seq"] != i {
			t.Fatalf("Message %d out of order: seq = %d", i, payload["seq"])
		}
	}
}

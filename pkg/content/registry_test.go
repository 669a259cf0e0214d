package content

import (
	"testing"

	"github.com/blockpulse-dev/blockpulse/channel"
)

func setup(t *testing.T) (*Registry, *[]*channel.Message) {
	t.Helper()
	bus := channel.NewLocalBus()

	var got []*channel.Message
	if err := bus.SubscribeFunc("editor", func(msg *channel.Message) {
		got = append(got, msg)
	}); err != nil {
		t.Fatal(err)
	}
	bus.SetParent("editor")

	return NewRegistry(bus), &got
}

func TestRegistryFirstRegistrationWins(t *testing.T) {
	reg, got := setup(t)

	first := reg.Register("quiz", Paths{SourcePath: "src/content.ts"}, map[string]any{"title": "Quiz"})
	second := reg.Register("quiz", Paths{SourcePath: "other.ts"}, map[string]any{"title": "Other"})

	if second != first {
		t.Error("expected the second registration to return the first instance")
	}
	if len(*got) != 1 {
		t.Fatalf("expected exactly one announcement, got %d", len(*got))
	}

	var init InitPayload
	if err := (*got)[0].UnmarshalPayload(&init); err != nil {
		t.Fatal(err)
	}
	if (*got)[0].Type != MsgEditorInit {
		t.Errorf("expected %s, got %s", MsgEditorInit, (*got)[0].Type)
	}
	if init.ID != "quiz" || init.Paths.SourcePath != "src/content.ts" {
		t.Errorf("unexpected announcement: %+v", init)
	}

	// The registry still maps to the first instance's data.
	c, ok := reg.Lookup("quiz")
	if !ok {
		t.Fatal("expected registered store")
	}
	if c.Data().(map[string]any)["title"] != "Quiz" {
		t.Errorf("expected first data tree preserved, got %v", c.Data())
	}
}

func TestRegistryInlineUpdate(t *testing.T) {
	t.Run("patch carries path and value", func(t *testing.T) {
		reg, got := setup(t)

		reg.Register("quiz", Paths{SourcePath: "src/content.ts"}, map[string]any{"title": "Quiz"})
		reg.InlineUpdate("quiz", "items[2].title", "Renamed")

		if len(*got) != 2 {
			t.Fatalf("expected init plus one patch, got %d messages", len(*got))
		}
		patch := (*got)[1]
		if patch.Type != MsgEditorInlineUpdate {
			t.Fatalf("expected %s, got %s", MsgEditorInlineUpdate, patch.Type)
		}
		var p UpdatePayload
		if err := patch.UnmarshalPayload(&p); err != nil {
			t.Fatal(err)
		}
		if p.ID != "quiz" || p.Path != "items[2].title" || p.Value != "Renamed" {
			t.Errorf("unexpected patch: %+v", p)
		}
	})

	t.Run("unknown store id is a silent no-op", func(t *testing.T) {
		reg, got := setup(t)

		reg.InlineUpdate("missing", "title", "x")

		if len(*got) != 0 {
			t.Errorf("expected no messages for an unknown store, got %d", len(*got))
		}
	})
}

func TestRegistryWithoutParent(t *testing.T) {
	// An unparented bus discards announcements; registration must still work.
	bus := channel.NewLocalBus()
	reg := NewRegistry(bus)

	c := reg.Register("quiz", Paths{}, "data")
	if c == nil {
		t.Fatal("expected registration to succeed without a parent")
	}
	c.InlineUpdate("title", "x")

	if _, ok := reg.Lookup("quiz"); !ok {
		t.Error("expected quiz registered")
	}
}

package editable

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/blockpulse-dev/blockpulse/channel"
)

// EditState is the interaction state of one element.
type EditState string

const (
	StateViewing       EditState = "viewing"
	StateHovered       EditState = "hovered"
	StateInlineEditing EditState = "inline-editing"
)

// DefaultFocusDelay is the pause before the focus callback fires when
// entering inline edit, letting the input render first.
const DefaultFocusDelay = 50 * time.Millisecond

// ElementConfig configures an editable element.
type ElementConfig struct {
	// ID uniquely identifies the element. Required.
	ID string
	// FilePath and PropertyPath locate the backing source for the host
	// editor. Descriptive metadata only.
	FilePath     string
	PropertyPath string
	// Content is the element's current text.
	Content string
	// Geometry reports the element's bounding rect on demand. Optional;
	// a nil func reports a zero rect.
	Geometry func() Rect
	// OnFocus is invoked after FocusDelay when inline editing starts.
	// Optional.
	OnFocus func()
	// FocusDelay overrides DefaultFocusDelay when positive.
	FocusDelay time.Duration
}

// Element is one editable text region. It subscribes on the bus under a name
// derived from its id so the host can address it directly, and it relays its
// own lifecycle and edits back to the parent uplink.
//
// State machine: Viewing -> Hovered (edit mode + hover) -> InlineEditing
// (click) -> Viewing (commit or cancel). Nothing enforces that only one
// element is editing at a time; that exclusivity, when wanted, is the host's
// concern.
type Element struct {
	cfg ElementConfig
	bus channel.Bus

	mu       sync.Mutex
	state    EditState
	editMode bool
	content  string
	draft    string
	mounted  bool
}

// NewElement creates an element and subscribes it on the bus. The element is
// not announced until Mount is called.
func NewElement(bus channel.Bus, cfg ElementConfig) (*Element, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("element id is required")
	}
	if cfg.FocusDelay <= 0 {
		cfg.FocusDelay = DefaultFocusDelay
	}

	e := &Element{
		cfg:     cfg,
		bus:     bus,
		state:   StateViewing,
		content: cfg.Content,
	}

	if err := bus.SubscribeFunc(subscriberName(cfg.ID), e.handle); err != nil {
		return nil, fmt.Errorf("failed to subscribe element %s: %w", cfg.ID, err)
	}
	return e, nil
}

// Mount announces the element to the host.
func (e *Element) Mount() {
	e.mu.Lock()
	e.mounted = true
	msg := channel.NewMessage(MsgRegister, e.registerPayloadLocked())
	e.mu.Unlock()

	e.publish(msg)
}

// Unmount withdraws the element and removes its bus subscription.
func (e *Element) Unmount() {
	e.mu.Lock()
	if !e.mounted {
		e.mu.Unlock()
		return
	}
	e.mounted = false
	e.state = StateViewing
	e.mu.Unlock()

	e.publish(channel.NewMessage(MsgUnregister, UnregisterPayload{ID: e.cfg.ID}))
	if err := e.bus.Unsubscribe(subscriberName(e.cfg.ID)); err != nil {
		log.Printf("Warning: failed to unsubscribe element %s: %v", e.cfg.ID, err)
	}
}

// SetContent updates the element's text and re-announces it, since the
// host's view of the registration is now stale.
func (e *Element) SetContent(content string) {
	e.mu.Lock()
	e.content = content
	mounted := e.mounted
	msg := channel.NewMessage(MsgRegister, e.registerPayloadLocked())
	e.mu.Unlock()

	if mounted {
		e.publish(msg)
	}
}

// Hover moves Viewing to Hovered. Requires edit mode; otherwise a no-op.
func (e *Element) Hover() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editMode && e.state == StateViewing {
		e.state = StateHovered
	}
}

// Unhover returns a hovered element to Viewing.
func (e *Element) Unhover() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateHovered {
		e.state = StateViewing
	}
}

// Click enters inline edit from the hovered state, seeding the draft with
// the current text and scheduling the deferred focus callback.
func (e *Element) Click() {
	e.mu.Lock()
	if !e.editMode || e.state != StateHovered {
		e.mu.Unlock()
		return
	}
	e.enterInlineEditLocked()
	e.mu.Unlock()
}

// SetDraft replaces the in-progress edit text. No-op outside inline edit.
func (e *Element) SetDraft(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInlineEditing {
		e.draft = text
	}
}

// Commit confirms the edit (Enter or focus loss): sends the save message and
// optimistically applies the draft locally. Fire-and-forget, no rollback.
func (e *Element) Commit() {
	e.mu.Lock()
	if e.state != StateInlineEditing {
		e.mu.Unlock()
		return
	}
	old := e.content
	e.content = e.draft
	e.state = StateViewing

	msg := channel.NewMessage(MsgSaveInline, SaveInlinePayload{
		ID:           e.cfg.ID,
		FilePath:     e.cfg.FilePath,
		PropertyPath: e.cfg.PropertyPath,
		OldContent:   old,
		NewContent:   e.draft,
	})
	e.draft = ""
	e.mu.Unlock()

	e.publish(msg)
}

// Cancel discards the edit (Escape) and returns to Viewing.
func (e *Element) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInlineEditing {
		e.draft = ""
		e.state = StateViewing
	}
}

// State returns the element's interaction state.
func (e *Element) State() EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// EditMode reports the last observed global edit-mode flag.
func (e *Element) EditMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editMode
}

// Content returns the element's current text.
func (e *Element) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

// Draft returns the in-progress edit text.
func (e *Element) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// handle routes host-to-element messages.
func (e *Element) handle(msg *channel.Message) {
	switch msg.Type {
	case MsgModeChange:
		var p ModeChangePayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: element %s received malformed %s: %v", e.cfg.ID, msg.Type, err)
			return
		}
		e.mu.Lock()
		e.editMode = p.Enabled
		// Leaving edit mode mid-edit discards the draft.
		if !p.Enabled && e.state != StateViewing {
			e.draft = ""
			e.state = StateViewing
		}
		e.mu.Unlock()

	case MsgStartInlineEdit:
		var p StartInlineEditPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: element %s received malformed %s: %v", e.cfg.ID, msg.Type, err)
			return
		}
		if p.ID != e.cfg.ID {
			return
		}
		e.mu.Lock()
		if e.editMode && e.state != StateInlineEditing {
			e.enterInlineEditLocked()
		}
		e.mu.Unlock()

	case MsgEditRequest:
		var p EditRequestPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: element %s received malformed %s: %v", e.cfg.ID, msg.Type, err)
			return
		}
		if p.ID != e.cfg.ID {
			return
		}
		e.mu.Lock()
		resp := channel.NewMessage(MsgEditResponse, EditResponsePayload{
			ID:           e.cfg.ID,
			FilePath:     e.cfg.FilePath,
			PropertyPath: e.cfg.PropertyPath,
			Content:      e.content,
			Rect:         e.rectLocked(),
		})
		e.mu.Unlock()
		e.publish(resp)
	}
}

// enterInlineEditLocked transitions into inline edit. Caller must hold e.mu.
func (e *Element) enterInlineEditLocked() {
	e.state = StateInlineEditing
	e.draft = e.content
	if e.cfg.OnFocus != nil {
		// The input needs a beat to render before it can take focus.
		time.AfterFunc(e.cfg.FocusDelay, e.cfg.OnFocus)
	}
}

func (e *Element) registerPayloadLocked() RegisterPayload {
	return RegisterPayload{
		ID:           e.cfg.ID,
		FilePath:     e.cfg.FilePath,
		PropertyPath: e.cfg.PropertyPath,
		Content:      e.content,
		Rect:         e.rectLocked(),
	}
}

func (e *Element) rectLocked() Rect {
	if e.cfg.Geometry == nil {
		return Rect{}
	}
	return e.cfg.Geometry()
}

// publish sends toward the host; a delivery failure never disturbs local
// element state.
func (e *Element) publish(msg *channel.Message) {
	if err := e.bus.PublishToParent(msg); err != nil {
		log.Printf("Warning: element %s failed to publish %s: %v", e.cfg.ID, msg.Type, err)
	}
}

package editable

import (
	"fmt"
	"log"
	"sync"

	"github.com/blockpulse-dev/blockpulse/channel"
)

// HostCallbacks are invoked synchronously as element messages arrive.
// All fields are optional.
type HostCallbacks struct {
	OnRegister     func(RegisterPayload)
	OnUnregister   func(UnregisterPayload)
	OnEditResponse func(EditResponsePayload)
	OnSave         func(SaveInlinePayload)
}

// Host is the editor side of the protocol. It subscribes on the bus as the
// parent uplink, so every element message published to the parent lands
// here, and it addresses individual elements by id.
type Host struct {
	bus  channel.Bus
	name string
	cb   HostCallbacks

	mu       sync.Mutex
	editMode bool
	// elements tracks currently registered elements by id, as announced
	// over the wire.
	elements map[string]RegisterPayload
}

// NewHost creates the host controller, subscribes it under name, and
// designates it the bus parent.
func NewHost(bus channel.Bus, name string, cb HostCallbacks) (*Host, error) {
	h := &Host{
		bus:      bus,
		name:     name,
		cb:       cb,
		elements: make(map[string]RegisterPayload),
	}
	if err := bus.SubscribeFunc(name, h.handle); err != nil {
		return nil, fmt.Errorf("failed to subscribe host %s: %w", name, err)
	}
	bus.SetParent(name)
	return h, nil
}

// SetEditMode broadcasts the global edit-mode flag to every element.
func (h *Host) SetEditMode(enabled bool) {
	h.mu.Lock()
	h.editMode = enabled
	h.mu.Unlock()

	msg := channel.NewMessage(MsgModeChange, ModeChangePayload{Enabled: enabled})
	if err := h.bus.Broadcast(msg); err != nil {
		log.Printf("Warning: host failed to broadcast edit mode: %v", err)
	}
}

// EditMode reports the host's current edit-mode flag.
func (h *Host) EditMode() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.editMode
}

// StartInlineEdit instructs one element to enter inline edit state.
func (h *Host) StartInlineEdit(id string) {
	h.send(id, channel.NewMessage(MsgStartInlineEdit, StartInlineEditPayload{ID: id}))
}

// RequestEdit asks one element to report its current content and geometry.
// The reply arrives through OnEditResponse.
func (h *Host) RequestEdit(id string) {
	h.send(id, channel.NewMessage(MsgEditRequest, EditRequestPayload{ID: id}))
}

// Elements returns a snapshot of the currently registered elements.
func (h *Host) Elements() map[string]RegisterPayload {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]RegisterPayload, len(h.elements))
	for k, v := range h.elements {
		out[k] = v
	}
	return out
}

func (h *Host) send(id string, msg *channel.Message) {
	if err := h.bus.Send(subscriberName(id), msg); err != nil {
		log.Printf("Warning: host failed to send %s to element %s: %v", msg.Type, id, err)
	}
}

func (h *Host) handle(msg *channel.Message) {
	switch msg.Type {
	case MsgRegister:
		var p RegisterPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: host received malformed %s: %v", msg.Type, err)
			return
		}
		h.mu.Lock()
		h.elements[p.ID] = p
		h.mu.Unlock()
		if h.cb.OnRegister != nil {
			h.cb.OnRegister(p)
		}

	case MsgUnregister:
		var p UnregisterPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: host received malformed %s: %v", msg.Type, err)
			return
		}
		h.mu.Lock()
		delete(h.elements, p.ID)
		h.mu.Unlock()
		if h.cb.OnUnregister != nil {
			h.cb.OnUnregister(p)
		}

	case MsgEditResponse:
		var p EditResponsePayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: host received malformed %s: %v", msg.Type, err)
			return
		}
		if h.cb.OnEditResponse != nil {
			h.cb.OnEditResponse(p)
		}

	case MsgSaveInline:
		var p SaveInlinePayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			log.Printf("Warning: host received malformed %s: %v", msg.Type, err)
			return
		}
		if h.cb.OnSave != nil {
			h.cb.OnSave(p)
		}
	}
}

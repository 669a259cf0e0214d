// Package content implements the registered-content announce/patch protocol.
//
// A content store backs a block's rendered data tree. Each store announces
// itself to the parent editor exactly once, at first registration, with its
// full tree; afterwards it emits patch messages for individual field changes.
// The registry is an explicit process-wide object constructed once at
// application start and passed to whichever components need lookup.
package content

import (
	"log"
	"sync"

	"github.com/blockpulse-dev/blockpulse/channel"
)

// Message type discriminators for the content protocol.
const (
	MsgEditorInit         = "editor:init"
	MsgEditorInlineUpdate = "editor:inline-update"
)

// Paths locates a store's backing source for the host editor. Descriptive
// metadata only; runtime logic never consumes it.
type Paths struct {
	SourcePath    string `json:"sourcePath"`
	ComponentPath string `json:"componentPath"`
	StylePath     string `json:"stylePath"`
}

// InitPayload is the one-time full-tree announcement of a store.
type InitPayload struct {
	ID    string `json:"id"`
	Paths Paths  `json:"paths"`
	Data  any    `json:"data"`
}

// UpdatePayload is a single-field patch. Path is a dotted/indexed path into
// the data tree, e.g. "items[2].title".
type UpdatePayload struct {
	ID    string `json:"id"`
	Paths Paths  `json:"paths"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// RegisteredContent is one announced content store. Instances are created
// through Registry.Register, never directly.
type RegisteredContent struct {
	id    string
	paths Paths
	data  any
	bus   channel.Bus
}

// ID returns the store identifier.
func (c *RegisteredContent) ID() string { return c.id }

// Paths returns the store's source metadata.
func (c *RegisteredContent) Paths() Paths { return c.paths }

// Data returns the data tree announced at registration.
func (c *RegisteredContent) Data() any { return c.data }

// InlineUpdate emits a patch message for one field of the store's tree.
func (c *RegisteredContent) InlineUpdate(path string, value any) {
	msg := channel.NewMessage(MsgEditorInlineUpdate, UpdatePayload{
		ID:    c.id,
		Paths: c.paths,
		Path:  path,
		Value: value,
	})
	if err := c.bus.PublishToParent(msg); err != nil {
		log.Printf("Warning: content store %s failed to publish update for %s: %v", c.id, path, err)
	}
}

// Registry maps store id to store instance with first-registration-wins
// semantics. Safe for concurrent use.
type Registry struct {
	bus channel.Bus

	mu     sync.Mutex
	stores map[string]*RegisteredContent
}

// NewRegistry creates an empty registry publishing over the given bus.
func NewRegistry(bus channel.Bus) *Registry {
	return &Registry{
		bus:    bus,
		stores: make(map[string]*RegisteredContent),
	}
}

// Register creates and announces a store for id, or returns the existing one.
// Only the first registration for an id emits the editor:init announcement;
// later attempts are completely inert and their data is discarded.
func (r *Registry) Register(id string, paths Paths, data any) *RegisteredContent {
	r.mu.Lock()
	if existing, ok := r.stores[id]; ok {
		r.mu.Unlock()
		return existing
	}

	c := &RegisteredContent{
		id:    id,
		paths: paths,
		data:  data,
		bus:   r.bus,
	}
	r.stores[id] = c
	r.mu.Unlock()

	msg := channel.NewMessage(MsgEditorInit, InitPayload{
		ID:    id,
		Paths: paths,
		Data:  data,
	})
	if err := r.bus.PublishToParent(msg); err != nil {
		log.Printf("Warning: content store %s failed to announce: %v", id, err)
	}
	return c
}

// Lookup returns the store registered under id, if any.
func (r *Registry) Lookup(id string) (*RegisteredContent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.stores[id]
	return c, ok
}

// InlineUpdate forwards a patch on behalf of the store registered under id.
// Unknown ids are a silent no-op.
func (r *Registry) InlineUpdate(id, path string, value any) {
	c, ok := r.Lookup(id)
	if !ok {
		return
	}
	c.InlineUpdate(path, value)
}

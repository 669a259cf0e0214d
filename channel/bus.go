package channel

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Handler processes a message delivered to a callback subscriber.
// Handlers are invoked synchronously on the publisher's goroutine, in the
// order messages are sent. A panicking handler is isolated: the panic is
// recovered and logged, and delivery to other subscribers continues.
type Handler func(msg *Message)

// Bus is the page-local broadcast mechanism shared by the tracker, the
// editable-content protocol, and the registered-content registry.
//
// Subscribers register under a unique name and receive messages either over a
// buffered channel (Subscribe) or through a callback (SubscribeFunc). One
// subscriber may be designated the parent uplink; PublishToParent targets it
// without the sender needing to know its name.
type Bus interface {
	// Subscribe registers a channel subscriber under the given name.
	// Returns an error if the name is already taken.
	Subscribe(name string) (<-chan *Message, error)

	// SubscribeFunc registers a callback subscriber under the given name.
	// Returns an error if the name is already taken.
	SubscribeFunc(name string, h Handler) error

	// Unsubscribe removes a subscriber and closes its channel if it had one.
	Unsubscribe(name string) error

	// Send delivers a message to a single named subscriber.
	// A send to a full channel drops the message and returns an error;
	// local state on the sending side must never block on a slow consumer.
	Send(target string, msg *Message) error

	// Broadcast delivers a message to every subscriber.
	// Delivery continues past individual failures; the first error is returned.
	Broadcast(msg *Message) error

	// SetParent designates an existing subscriber as the parent uplink.
	SetParent(name string)

	// PublishToParent delivers a message to the parent uplink.
	// A bus with no parent configured silently discards the message, the
	// same way a frame without a listening parent discards posted messages.
	PublishToParent(msg *Message) error

	// List returns all subscriber names in registration order.
	List() []string
}

// LocalBus is the in-process implementation of Bus.
// It is safe for concurrent use.
type LocalBus struct {
	mu       sync.RWMutex
	channels map[string]chan *Message
	handlers map[string]Handler
	order    []string // registration order, for deterministic broadcast
	parent   string
	bufSize  int

	dropped uint64
}

// DefaultBufferSize is the per-subscriber channel buffer used by NewLocalBus.
const DefaultBufferSize = 100

// NewLocalBus creates a local bus with the default subscriber buffer size.
func NewLocalBus() *LocalBus {
	return NewLocalBusWithBuffer(DefaultBufferSize)
}

// NewLocalBusWithBuffer creates a local bus with a custom subscriber buffer size.
func NewLocalBusWithBuffer(size int) *LocalBus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &LocalBus{
		channels: make(map[string]chan *Message),
		handlers: make(map[string]Handler),
		order:    make([]string, 0),
		bufSize:  size,
	}
}

// Subscribe registers a channel subscriber under the given name.
func (b *LocalBus) Subscribe(name string) (<-chan *Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exists(name) {
		return nil, fmt.Errorf("subscriber %s already registered", name)
	}

	ch := make(chan *Message, b.bufSize)
	b.channels[name] = ch
	b.order = append(b.order, name)
	return ch, nil
}

// SubscribeFunc registers a callback subscriber under the given name.
func (b *LocalBus) SubscribeFunc(name string, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler for %s is nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exists(name) {
		return fmt.Errorf("subscriber %s already registered", name)
	}

	b.handlers[name] = h
	b.order = append(b.order, name)
	return nil
}

// Unsubscribe removes a subscriber and closes its channel if it had one.
func (b *LocalBus) Unsubscribe(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(name) {
		return fmt.Errorf("subscriber %s not found", name)
	}

	if ch, ok := b.channels[name]; ok {
		close(ch)
		delete(b.channels, name)
	}
	delete(b.handlers, name)

	if b.parent == name {
		b.parent = ""
	}

	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}

	return nil
}

// Send delivers a message to a single named subscriber.
func (b *LocalBus) Send(target string, msg *Message) error {
	b.mu.RLock()
	ch, chOK := b.channels[target]
	h, hOK := b.handlers[target]
	b.mu.RUnlock()

	switch {
	case hOK:
		b.invoke(target, h, msg)
		return nil
	case chOK:
		select {
		case ch <- msg:
			return nil
		default:
			atomic.AddUint64(&b.dropped, 1)
			return fmt.Errorf("subscriber %s channel is full, message %s dropped", target, msg.ID)
		}
	default:
		return fmt.Errorf("subscriber %s not found", target)
	}
}

// Broadcast delivers a message to every subscriber in registration order.
func (b *LocalBus) Broadcast(msg *Message) error {
	b.mu.RLock()
	names := make([]string, len(b.order))
	copy(names, b.order)
	b.mu.RUnlock()

	var firstErr error
	for _, target := range names {
		if err := b.Send(target, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetParent designates a subscriber as the parent uplink.
func (b *LocalBus) SetParent(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = name
}

// Parent returns the current parent uplink name, or "" if none is set.
func (b *LocalBus) Parent() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parent
}

// PublishToParent delivers a message to the parent uplink.
func (b *LocalBus) PublishToParent(msg *Message) error {
	b.mu.RLock()
	parent := b.parent
	b.mu.RUnlock()

	if parent == "" {
		// No listening parent: discard, same as an unparented frame.
		return nil
	}
	return b.Send(parent, msg)
}

// List returns all subscriber names in registration order.
func (b *LocalBus) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, len(b.order))
	copy(names, b.order)
	return names
}

// Dropped returns the number of messages dropped on full subscriber channels.
func (b *LocalBus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// exists reports whether a name is taken. Caller must hold b.mu.
func (b *LocalBus) exists(name string) bool {
	if _, ok := b.channels[name]; ok {
		return true
	}
	_, ok := b.handlers[name]
	return ok
}

// invoke runs a callback subscriber with panic isolation.
func (b *LocalBus) invoke(name string, h Handler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: subscriber %s panicked handling %s: %v", name, msg.Type, r)
		}
	}()
	h(msg)
}

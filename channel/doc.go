// Package channel provides the message-passing layer connecting an embedded
// block to its host process.
//
// A block and its host genuinely run in separate execution contexts (the host
// is typically a parent frame or a collector process), so they communicate
// exclusively through self-describing messages rather than direct calls. The
// Bus is the page-local broadcast mechanism: subscribers register by name and
// receive messages over buffered channels or callback handlers, and a single
// designated "parent" subscriber stands in for the parent-frame uplink.
//
// # Basic Usage
//
// Create a bus, subscribe the host side, and publish from the block side:
//
//	bus := channel.NewLocalBus()
//	ch, _ := bus.Subscribe("host")
//	bus.SetParent("host")
//
//	bus.Send("host", channel.NewMessage("BLOCK_INTERACTION", payload))
//	msg := <-ch
//
// Delivery is best-effort by design: a send to a full subscriber channel drops
// the message and the caller's local state is never blocked on a slow consumer.
package channel

package substrates

import "sync/atomic"

// Channel is a conduit's single typed emission endpoint: identity is
// stable for the conduit's lifetime, and every pipe it hands out
// (configured or not) feeds the same shared hub (spec.md §4.2, §4.5
// "Channel identity stability"). The subscription hub itself belongs to
// the owning conduit, not to this channel; Channel only caches the flat
// delivery list the hub computes for its own subject.
type Channel[E any] struct {
	subject *Subject
	circuit *Circuit
	hub     *hub[E]
	root    Pipe[E]

	builtEpoch atomic.Uint64
	snapshot   atomic.Pointer[[]Pipe[E]]
}

func newChannel[E any](subject *Subject, circuit *Circuit, hub *hub[E]) *Channel[E] {
	ch := &Channel[E]{subject: subject, circuit: circuit, hub: hub}
	empty := make([]Pipe[E], 0)
	ch.snapshot.Store(&empty)
	ch.root = newRootPipe[E](circuit, ch.fanOut)
	return ch
}

// Subject returns the channel's identity.
func (c *Channel[E]) Subject() *Subject { return c.subject }

// Pipe returns a pipe feeding this channel. With a nil flow the returned
// pipe is the channel's single shared unconfigured (root) pipe; with a
// non-nil flow, a fresh pipe is built carrying that operator chain in
// front of the same fan-out (spec.md §4.5 "channel.pipe(configurer)").
func (c *Channel[E]) Pipe(flow *Flow[E]) Pipe[E] {
	if flow == nil {
		return c.root
	}
	return newFlowPipe[E](c.circuit, flow, c.fanOut)
}

// deliveryList returns the channel's current flat fan-out list,
// rebuilding it first if the owning hub changed since the last call
// (spec.md §4.6 "seen_epoch < hub.epoch"). Only ever called from fanOut,
// itself only ever invoked on the circuit's worker thread, so the bare
// load/store pair below needs no further synchronization of its own.
func (c *Channel[E]) deliveryList() []Pipe[E] {
	current := c.hub.Epoch()
	if c.builtEpoch.Load() != current {
		list := c.hub.rebuild(c.subject)
		c.snapshot.Store(&list)
		c.builtEpoch.Store(current)
	}
	return *c.snapshot.Load()
}

// fanOut delivers value to every currently-registered downstream pipe.
// Always runs on the circuit's worker thread, since it is only ever
// invoked from a pipe's deliver() (itself only called by the engine).
func (c *Channel[E]) fanOut(value E) {
	for _, downstream := range c.deliveryList() {
		downstream.Emit(value)
	}
}

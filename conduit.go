package substrates

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Composer manufactures a conduit's external percept value P from the
// Channel<E> the conduit built for a given name (spec.md §4.2
// "Composer.compose(channel: Channel<E>) -> P").
type Composer[P, E any] func(channel *Channel[E]) P

// IdentityComposer returns a Composer that hands the channel itself back
// as P, for conduits that have no need for a dedicated percept wrapper
// type.
func IdentityComposer[E any]() Composer[*Channel[E], E] {
	return func(channel *Channel[E]) *Channel[E] { return channel }
}

// Conduit owns a pool of percept-keyed Channels, every one created at
// most once for a given name even under concurrent first access
// (spec.md §4.2, backed by Pool's at-most-once contract), plus the
// subscription hub shared by every channel it manages (spec.md §4.6 "A
// hub is the subscription registry inside a conduit").
type Conduit[P, E any] struct {
	subject *Subject
	circuit *Circuit
	compose Composer[P, E]
	hub     *hub[E]
	pool    *Pool[*Channel[E]]
}

func newConduit[P, E any](subject *Subject, circuit *Circuit, compose Composer[P, E]) *Conduit[P, E] {
	c := &Conduit[P, E]{
		subject: subject,
		circuit: circuit,
		compose: compose,
		hub:     newHub[E](subject.Path("."), circuit.valve.metrics, circuit.valve.tracer),
	}
	c.pool = NewPool[*Channel[E]](func(name *Name) *Channel[E] {
		degraded := newChannel[E](NewSubject(name, TypeChannel, subject), circuit, c.hub)
		degraded.root = newEmptyPipe[E]()
		return degraded
	})
	return c
}

// Subject returns the conduit's identity.
func (c *Conduit[P, E]) Subject() *Subject { return c.subject }

// Percept returns the percept for name, constructing its backing channel
// the first time any caller asks for that name and composing P from it
// (spec.md §4.2: percept(name) (a) constructs the channel, (b) builds
// its root pipe, (c) invokes the composer, (d) records the channel for
// subsequent rebuilds).
func (c *Conduit[P, E]) Percept(name *Name) (P, error) {
	channel, err := c.pool.Get(name, func(n *Name) (*Channel[E], error) {
		return newChannel[E](NewSubject(n, TypeChannel, c.subject), c.circuit, c.hub), nil
	})
	if err != nil {
		var zero P
		return zero, err
	}
	return c.compose(channel), nil
}

// Subscribe registers sub's callback in this conduit's hub (spec.md
// §4.2, §4.6 "subscribe(subscriber)"). configure runs once per channel,
// lazily, on the circuit's worker thread at that channel's next rebuild
// -- never synchronously here -- so one subscription reaches every
// channel this conduit manages, including channels created after this
// call returns (spec.md §4.6 "Why lazy").
func (c *Conduit[P, E]) Subscribe(sub *Subscriber, configure func(*Subject, *Registrar[E])) error {
	if c.circuit != sub.circuit {
		capitan.Warn(context.Background(), SignalHubCrossCircuit,
			FieldSubjectPath.Field(sub.subject.Path(".")),
			FieldChannelName.Field(c.subject.Path(".")),
		)
		return &CrossCircuitError{Subscriber: sub.subject.Name(), Conduit: c.subject.Name()}
	}
	id := sub.subject.ID()
	c.hub.subscribe(id, configure)
	sub.closers = append(sub.closers, func() { c.hub.unsubscribeAll(id) })
	return nil
}

// TapMapper converts a conduit's emission type E into a derived type O
// for Tap; a false second return drops the emission (spec.md §4.2
// "tap(mapper)": "a null mapper return drops the emission").
type TapMapper[E, O any] func(value E) (O, bool)

// Tap returns a new conduit fed by every emission across every channel
// conduit manages, each one passed through mapper before forwarding
// (spec.md §4.2 "tap(mapper[, configurer]) returns a derived source that
// subscribes to the conduit, mapping each emission"). It is a
// package-level function, not a method, because Go methods cannot carry
// a type parameter -- O -- beyond the receiver's own P and E.
func Tap[P, E, O any](conduit *Conduit[P, E], mapper TapMapper[E, O]) *Conduit[*Channel[O], O] {
	derived := newConduit[*Channel[O], O](
		NewSubject(nil, TypeConduit, conduit.subject),
		conduit.circuit,
		IdentityComposer[O](),
	)
	out, _ := derived.Percept(nil) //nolint:errcheck // nil name, pool.Get cannot fail

	sub := conduit.circuit.Subscriber(nil)
	_ = conduit.Subscribe(sub, func(_ *Subject, r *Registrar[E]) { //nolint:errcheck // same circuit by construction
		r.Register(newAsyncPipe[E](conduit.circuit, func(v E) {
			if mapped, ok := mapper(v); ok {
				out.Pipe(nil).Emit(mapped)
			}
		}))
	})
	return derived
}

// Reservoir returns a capture buffer fed from channel (spec.md §4.7).
func (c *Conduit[P, E]) Reservoir(channel *Channel[E], capacity int) *Reservoir[E] {
	return newReservoir[E](channel, capacity)
}

// Each visits every channel constructed so far under this conduit.
func (c *Conduit[P, E]) Each(fn func(name *Name, channel *Channel[E])) {
	c.pool.Each(fn)
}

// Close marks the conduit's channel pool closed: subsequent Percept
// calls for unseen names return a degraded channel whose pipe silently
// drops everything instead of constructing real infrastructure, while
// names built before Close keep returning their existing channel.
func (c *Conduit[P, E]) Close() {
	c.pool.Close()
}

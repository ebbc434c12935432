package substrates

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Subscriber is a circuit-owned consumer identity that can register with
// any number of conduits on the same circuit (spec.md §4.2, §4.6). It
// exists primarily so that closing one Subscriber tears down every
// registration it made, across every conduit it ever subscribed to.
type Subscriber struct {
	subject *Subject
	circuit *Circuit
	closers []func()
	closed  bool
}

func newSubscriber(subject *Subject, circuit *Circuit) *Subscriber {
	return &Subscriber{subject: subject, circuit: circuit}
}

// Subject returns the subscriber's identity.
func (s *Subscriber) Subject() *Subject { return s.subject }

// Close unsubscribes this subscriber from every conduit it registered
// with. Idempotent (spec.md §4.6 "idempotent close").
func (s *Subscriber) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, closer := range s.closers {
		closer()
	}
	s.closers = nil
	capitan.Info(context.Background(), SignalSubscriberClosed,
		FieldSubjectPath.Field(s.subject.Path(".")),
	)
}

// Registrar is handed to a conduit's subscribe callback, once per
// channel at that channel's lazy rebuild, and accepts pipe registrations
// for that one channel. It is valid only for the dynamic extent of the
// callback invocation: spec.md §4.6's "temporal one-shot guard" forbids
// retaining and reusing it afterward.
type Registrar[E any] struct {
	active bool
	pipes  []Pipe[E]
}

// Register attaches pipe as a delivery target for the channel this
// registrar's callback was invoked for.
func (r *Registrar[E]) Register(pipe Pipe[E]) error {
	if !r.active {
		capitan.Warn(context.Background(), SignalRegistrarMisuse)
		return &IllegalStateError{Reason: "registrar used after its subscribe callback returned"}
	}
	r.pipes = append(r.pipes, pipe)
	return nil
}

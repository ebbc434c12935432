package substrates

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/tracez"
)

// circuitConfig collects the constructor options a circuit accepts, in the
// functional-options shape used elsewhere in this module's constructors.
type circuitConfig struct {
	clock       clockz.Clock
	tracer      *tracez.Tracer
	ingressHint int
}

// CircuitOption configures a circuit at construction time.
type CircuitOption func(*circuitConfig)

// WithClock overrides the circuit's injectable time source; Cortex's own
// clock is used when this option is absent.
func WithClock(clock clockz.Clock) CircuitOption {
	return func(cfg *circuitConfig) { cfg.clock = clock }
}

// WithTracer overrides the circuit's tracer instead of letting it allocate
// its own, so callers can share one tracez.Tracer across several circuits.
func WithTracer(tracer *tracez.Tracer) CircuitOption {
	return func(cfg *circuitConfig) { cfg.tracer = tracer }
}

// WithIngressCapacityHint records an expected steady-state ingress depth
// on the circuit's valve. The value is stored only: no metric reports it,
// and the ingress queue itself always stays unbounded, so this hint never
// causes backpressure.
func WithIngressCapacityHint(n int) CircuitOption {
	return func(cfg *circuitConfig) { cfg.ingressHint = n }
}

// Circuit owns a single valve and the subtree of conduits and
// subscribers confined to its worker thread (spec.md §4.1, §4.4). All
// receptors registered through this circuit's pipes and subscribers run
// exclusively on that one goroutine.
type Circuit struct {
	subject *Subject
	valve   *valve
	faults  *faultSource
}

func newCircuit(subject *Subject, defaultClock clockz.Clock, opts ...CircuitOption) *Circuit {
	cfg := circuitConfig{clock: defaultClock}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = clockz.RealClock
	}

	c := &Circuit{subject: subject}
	c.valve = newValve(subject, cfg.clock, cfg.tracer, cfg.ingressHint)
	c.faults = c.valve.faults

	capitan.Info(context.Background(), SignalCircuitStarted,
		FieldCircuitName.Field(subject.Path(".")),
	)
	return c
}

// submit satisfies valveRef: every Pipe this circuit hands out schedules
// through here.
func (c *Circuit) submit(target emitter, value interface{}) {
	c.valve.submit(target, value)
}

// Subject returns the circuit's identity.
func (c *Circuit) Subject() *Subject { return c.subject }

// NewConduit constructs a new conduit owned by circuit, using compose to
// manufacture each percept from its backing channel. It is a
// package-level function, not a method, because Go methods cannot carry
// type parameters of their own beyond the receiver's.
func NewConduit[P, E any](circuit *Circuit, name *Name, compose Composer[P, E]) *Conduit[P, E] {
	return newConduit[P, E](NewSubject(name, TypeConduit, circuit.subject), circuit, compose)
}

// CircuitPipe wraps receptor in an async pipe scheduled on circuit
// (spec.md §6 "circuit.pipe(receptor)").
func CircuitPipe[E any](circuit *Circuit, receptor func(E)) Pipe[E] {
	return newAsyncPipe[E](circuit, receptor)
}

// Subscriber constructs a new subscriber identity owned by this circuit.
func (c *Circuit) Subscriber(name *Name) *Subscriber {
	return newSubscriber(NewSubject(name, TypeSubscriber, c.subject), c)
}

// Faults exposes the circuit's self-observation source: every receptor
// panic this circuit's worker recovers from is published here instead of
// propagating (spec.md §7 "Receptor fault").
func (c *Circuit) Faults() *faultSource {
	return c.faults
}

// Await blocks until every task this circuit has accepted so far has
// finished running. Returns IllegalStateError if called from inside one
// of this circuit's own receptors.
func (c *Circuit) Await() error {
	return c.valve.await()
}

// Close stops the circuit from accepting new external work and lets
// already-queued and cascaded work drain before the worker exits.
// Idempotent (spec.md §4.4 "close()").
func (c *Circuit) Close() {
	capitan.Info(context.Background(), SignalCircuitClosing,
		FieldCircuitName.Field(c.subject.Path(".")),
	)
	c.valve.close()
}

// Closed reports whether the circuit's worker has fully drained and
// exited.
func (c *Circuit) Closed() bool {
	return c.valve.closed()
}

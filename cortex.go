package substrates

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/zoobzio/clockz"
)

// Cortex is the process-wide entry point: every circuit, scope, and
// named resource traces its enclosure chain back to the single Cortex
// subject (spec.md §3, §4.1). Most programs use the package-level
// default via the Default* helpers below; Cortex itself stays
// constructible for tests that want isolated state.
type Cortex struct {
	subject  *Subject
	circuits *Pool[*Circuit]
	scopes   *Pool[*Scope]
	clock    clockz.Clock
	anon     atomic.Uint64
}

// NewCortex constructs an independent Cortex. clock, if nil, defaults to
// clockz.RealClock; it becomes the default clock of every circuit this
// Cortex builds, which stamps the time on each Fault. Flow operators do
// not read it: SampleRate takes its own clock argument.
func NewCortex(clock clockz.Clock) *Cortex {
	if clock == nil {
		clock = clockz.RealClock
	}
	c := &Cortex{
		subject: NewRootSubject(RootName()),
		clock:   clock,
	}
	c.circuits = NewPool[*Circuit](nil)
	c.scopes = NewPool[*Scope](nil)
	return c
}

var defaultCortex = NewCortex(nil)

// Default returns the process-wide Cortex.
func Default() *Cortex { return defaultCortex }

// Subject returns the Cortex's own identity, the root of every subject
// tree in the process.
func (c *Cortex) Subject() *Subject { return c.subject }

// Circuit constructs a new, unnamed circuit. Each call returns a
// distinct Circuit; callers that need a singleton by name should use
// Named instead.
func (c *Cortex) Circuit(opts ...CircuitOption) *Circuit {
	part := fmt.Sprintf("circuit-%d", c.anon.Add(1))
	name, err := globalNames.Child(RootName(), part)
	if err != nil {
		name = RootName()
	}
	return newCircuit(NewSubject(name, TypeCircuit, c.subject), c.clock, opts...)
}

// Named returns the circuit registered under name, constructing it on
// first request (spec.md §4.3 "at most once per name"). Options are only
// consulted on the call that wins construction; later callers simply
// receive the already-built circuit.
func (c *Cortex) Named(name *Name, opts ...CircuitOption) (*Circuit, error) {
	return c.circuits.Get(name, func(n *Name) (*Circuit, error) {
		return newCircuit(NewSubject(n, TypeCircuit, c.subject), c.clock, opts...), nil
	})
}

// Scope returns the scope registered under name, constructing it on
// first request.
func (c *Cortex) Scope(name *Name) (*Scope, error) {
	return c.scopes.Get(name, func(n *Name) (*Scope, error) {
		return newScope(NewSubject(n, TypeScope, c.subject)), nil
	})
}

// Name resolves a dotted path into an interned Name rooted at the
// Cortex's own root name.
func (c *Cortex) Name(path string) (*Name, error) {
	return NameOf(path)
}

// Sink returns a degraded pipe that accepts any value and drops it: the
// caller-facing equivalent of what a closed Pool hands back to late
// arrivals (spec.md §4.3), made directly reachable so callers building a
// topology before its real destination exists have somewhere safe to
// point interim wiring at.
func Sink[E any](ctx context.Context) Pipe[E] {
	_ = ctx
	return newEmptyPipe[E]()
}

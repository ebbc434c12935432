package substrates

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// poolEntry tracks a single name's construction state: either already
// built (value set) or in the process of being built by exactly one
// winning goroutine (cond signals losers once the winner finishes).
type poolEntry[V any] struct {
	value V
	ready bool
}

// Pool is a lazy, thread-safe name-to-value factory with at-most-one
// construction per name, even under contention (spec.md §4.3). Values are
// built by a user Factory the first time a name is requested; concurrent
// requesters for the same name block on the same winning construction and
// all observe the identical value.
type Pool[V any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[*Name]*poolEntry[V]
	closed  bool
	fallback func(*Name) V
}

// Factory builds the pool's value for a given name. It may fail; a failed
// construction leaves the key unpopulated so the next caller retries
// (spec.md §4.3 "Failure semantics").
type Factory[V any] func(name *Name) (V, error)

// NewPool constructs an empty Pool. fallback, if non-nil, supplies the
// degraded value returned for new names once the pool has been closed,
// so late arrivals during shutdown do not panic or block
// (spec.md §4.3 "tolerate late arrivals during shutdown").
func NewPool[V any](fallback func(*Name) V) *Pool[V] {
	p := &Pool[V]{
		entries:  make(map[*Name]*poolEntry[V]),
		fallback: fallback,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Get returns the pool's value for name, invoking factory at most once per
// name even under concurrent callers. Losing goroutines wait for the
// winner's construction and return its value; factory never runs for them.
func (p *Pool[V]) Get(name *Name, factory Factory[V]) (V, error) {
	p.mu.Lock()
	waited := false
	for {
		entry, ok := p.entries[name]
		if !ok {
			if p.closed {
				p.mu.Unlock()
				var zero V
				if p.fallback != nil {
					return p.fallback(name), nil
				}
				return zero, nil
			}
			// We are the winner: claim the slot with a placeholder
			// before releasing the lock, so every other goroutine
			// that reaches this name blocks on us instead of racing
			// the factory concurrently.
			entry = &poolEntry[V]{}
			p.entries[name] = entry
			p.mu.Unlock()

			value, err := factory(name)

			p.mu.Lock()
			if err != nil {
				// Construction failed: vacate the slot so the next
				// caller retries from scratch.
				delete(p.entries, name)
				p.cond.Broadcast()
				p.mu.Unlock()
				capitan.Warn(context.Background(), SignalPoolConstructionFailed,
					FieldSubjectPath.Field(name.Path(".")),
					FieldError.Field(err.Error()),
				)
				var zero V
				return zero, err
			}
			entry.value = value
			entry.ready = true
			p.cond.Broadcast()
			p.mu.Unlock()
			capitan.Info(context.Background(), SignalPoolConstructed,
				FieldSubjectPath.Field(name.Path(".")),
			)
			return value, nil
		}

		if entry.ready {
			p.mu.Unlock()
			if waited {
				capitan.Info(context.Background(), SignalPoolRaceLost,
					FieldSubjectPath.Field(name.Path(".")),
				)
			}
			return entry.value, nil
		}

		// Someone else is constructing this name; wait for them.
		waited = true
		p.cond.Wait()
	}
}

// Peek returns the current value for name without triggering
// construction, reporting ok=false if absent or still under construction.
func (p *Pool[V]) Peek(name *Name) (V, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[name]
	if !ok || !entry.ready {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Each calls fn for every fully-constructed value currently in the pool.
func (p *Pool[V]) Each(fn func(name *Name, value V)) {
	p.mu.Lock()
	type pair struct {
		name  *Name
		value V
	}
	var snapshot []pair
	for name, entry := range p.entries {
		if entry.ready {
			snapshot = append(snapshot, pair{name, entry.value})
		}
	}
	p.mu.Unlock()
	for _, pr := range snapshot {
		fn(pr.name, pr.value)
	}
}

// Close marks the pool closed: further Get calls for unseen names return
// the degraded fallback value instead of invoking factory.
func (p *Pool[V]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

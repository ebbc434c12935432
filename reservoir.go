package substrates

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// Capture pairs a captured emission with the subject that produced it
// (spec.md §4.7 "Reservoir").
type Capture[E any] struct {
	Subject *Subject
	Value   E
}

// Reservoir is a bounded FIFO capture buffer fed passively from a
// channel: it subscribes itself once at construction and every emission
// thereafter is appended until Drain empties it. Oldest entries are
// evicted once capacity is reached (spec.md §4.7 "bounded, drop-oldest").
type Reservoir[E any] struct {
	subject  *Subject
	capacity int
	channel  *Channel[E]

	mu      sync.Mutex
	entries []Capture[E]
}

func newReservoir[E any](channel *Channel[E], capacity int) *Reservoir[E] {
	r := &Reservoir[E]{
		subject:  NewSubject(nil, TypeReservoir, channel.subject),
		capacity: capacity,
		channel:  channel,
	}
	channel.circuit.valve.metrics.Counter(MetricCaptureCount)
	channel.hub.subscribe(r.subject.ID(), func(channelSubject *Subject, reg *Registrar[E]) {
		if channelSubject != channel.subject {
			return
		}
		reg.Register(newAsyncPipe[E](channel.circuit, r.capture))
	})
	return r
}

// Close detaches the reservoir from its channel; already-buffered
// captures remain available via Drain.
func (r *Reservoir[E]) Close() {
	r.channel.hub.unsubscribeAll(r.subject.ID())
}

func (r *Reservoir[E]) capture(value E) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Capture[E]{Subject: r.channel.subject, Value: value})
	if r.capacity > 0 && len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
	r.channel.circuit.valve.metrics.Counter(MetricCaptureCount).Inc()
}

// Subject returns the reservoir's identity.
func (r *Reservoir[E]) Subject() *Subject { return r.subject }

// Len reports the number of captures currently buffered.
func (r *Reservoir[E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drain atomically removes and returns every capture buffered so far, in
// arrival order.
func (r *Reservoir[E]) Drain() []Capture[E] {
	r.mu.Lock()
	out := r.entries
	r.entries = nil
	r.mu.Unlock()

	capitan.Info(context.Background(), SignalReservoirDrained,
		FieldSubjectPath.Field(r.subject.Path(".")),
		FieldCaptureCount.Field(len(out)),
	)
	return out
}

package substrates

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// subscription binds one subscriber identity to the callback it wants
// invoked, once per channel, whenever that channel's delivery list is
// rebuilt (spec.md §4.6 "Subscription").
type subscription[E any] struct {
	subscriberID uint64
	configure    func(*Subject, *Registrar[E])
}

// hub is a conduit's subscription registry, shared by every channel the
// conduit manages (spec.md §4.2, §4.6 "A hub is the subscription
// registry inside a conduit"): the bespoke lazy-rebuild algorithm spec.md
// §4.6 calls for, deliberately hand-rolled rather than delegated to a
// generic pub/sub library. Registrations may arrive from any goroutine;
// a channel's flat delivery list is only ever rebuilt on the circuit's
// worker thread, and only when the hub changed since that channel's last
// rebuild.
type hub[E any] struct {
	mu            sync.Mutex
	subscriptions []subscription[E]

	epoch atomic.Uint64

	conduitName string
	metrics     *metricz.Registry
	tracer      *tracez.Tracer
}

func newHub[E any](conduitName string, metrics *metricz.Registry, tracer *tracez.Tracer) *hub[E] {
	h := &hub[E]{conduitName: conduitName, metrics: metrics, tracer: tracer}
	metrics.Counter(MetricHubRebuilds)
	metrics.Counter(MetricHubEpochBumps)
	return h
}

// subscribe registers configure under subscriberID. Safe from any
// goroutine; O(1) and never itself invokes configure -- that only
// happens later, per channel, during a lazy rebuild (spec.md §4.6 "Why
// lazy").
func (h *hub[E]) subscribe(subscriberID uint64, configure func(*Subject, *Registrar[E])) {
	h.mu.Lock()
	h.subscriptions = append(h.subscriptions, subscription[E]{subscriberID, configure})
	h.mu.Unlock()
	h.epoch.Add(1)
	h.metrics.Counter(MetricHubEpochBumps).Inc()
	capitan.Info(context.Background(), SignalHubSubscribed,
		FieldChannelName.Field(h.conduitName),
		FieldEpoch.Field(int(h.epoch.Load())),
	)
}

// unsubscribeAll removes every subscription owned by subscriberID,
// invoked once when a Subscriber closes.
func (h *hub[E]) unsubscribeAll(subscriberID uint64) {
	h.mu.Lock()
	out := h.subscriptions[:0]
	for _, s := range h.subscriptions {
		if s.subscriberID != subscriberID {
			out = append(out, s)
		}
	}
	h.subscriptions = out
	h.mu.Unlock()
	h.epoch.Add(1)
	h.metrics.Counter(MetricHubEpochBumps).Inc()
	capitan.Info(context.Background(), SignalHubUnsubscribed,
		FieldChannelName.Field(h.conduitName),
		FieldEpoch.Field(int(h.epoch.Load())),
	)
}

// Epoch reports the number of registration changes observed so far,
// letting a channel detect "did the hub change" without comparing slice
// contents.
func (h *hub[E]) Epoch() uint64 {
	return h.epoch.Load()
}

// rebuild replays every registered subscription against channelSubject,
// collecting the pipes each callback registers into one flat delivery
// list. Must only be called on the owning circuit's worker thread
// (spec.md §4.6 "Lazy rebuild (delivery list construction)").
func (h *hub[E]) rebuild(channelSubject *Subject) []Pipe[E] {
	ctx, span := h.tracer.StartSpan(context.Background(), SpanHubRebuild)
	defer span.Finish()

	h.mu.Lock()
	specs := make([]subscription[E], len(h.subscriptions))
	copy(specs, h.subscriptions)
	h.mu.Unlock()

	var list []Pipe[E]
	for _, s := range specs {
		r := &Registrar[E]{active: true}
		func() {
			defer func() { r.active = false }()
			s.configure(channelSubject, r)
		}()
		list = append(list, r.pipes...)
	}

	h.metrics.Counter(MetricHubRebuilds).Inc()
	capitan.Info(ctx, SignalHubRebuilt,
		FieldChannelName.Field(h.conduitName),
		FieldDeliveryCount.Field(len(list)),
	)
	return list
}

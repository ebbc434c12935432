package substrates

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// valveState tracks the engine's lifecycle (spec.md §4.4 "Circuit states").
type valveState int32

const (
	valveRunning valveState = iota
	valveDraining
	valveClosed
)

// goroutineID returns the calling goroutine's runtime identifier, parsed
// from its own stack trace header. Go deliberately exposes no public
// goroutine-identity API; this is the standard workaround for exactly the
// check spec.md §4.4 asks for ("compare a thread-local ... against the
// worker reference captured at construction"). It only ever inspects the
// caller's own stack, so it introduces no shared state and no race.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		if id, err := strconv.ParseUint(string(b[:i]), 10, 64); err == nil {
			return id
		}
	}
	return 0
}

// valve is the single-threaded worker that drains a circuit's ingress
// queue, giving strict priority to its own worker-local transit queue
// (spec.md §4.4). Every Circuit owns exactly one valve.
type valve struct {
	subject *Subject

	state atomic.Int32

	ingress *mpscQueue
	transit transitQueue // worker-owned only

	pending atomic.Int64

	mu       sync.Mutex
	cond     *sync.Cond
	hasWork  bool
	workerID uint64
	started  chan struct{}

	faults      *faultSource
	metrics     *metricz.Registry
	tracer      *tracez.Tracer
	clock       clockz.Clock
	ingressHint int
}

// newValve constructs a circuit's worker. tracer, if nil, gets its own
// fresh tracez.Tracer; ingressHint is stored as given and is neither
// exported as a metric nor used to bound the ingress queue.
func newValve(subject *Subject, clock clockz.Clock, tracer *tracez.Tracer, ingressHint int) *valve {
	if tracer == nil {
		tracer = tracez.New()
	}
	v := &valve{
		subject:     subject,
		ingress:     newMPSCQueue(),
		started:     make(chan struct{}),
		faults:      newFaultSource(),
		metrics:     metricz.New(),
		tracer:      tracer,
		clock:       clock,
		ingressHint: ingressHint,
	}
	v.cond = sync.NewCond(&v.mu)
	v.registerMetrics()
	go v.loop()
	return v
}

func (v *valve) registerMetrics() {
	v.metrics.Counter(MetricTasksProcessed)
	v.metrics.Counter(MetricFaults)
	v.metrics.Counter(MetricIngressEnqueued)
	v.metrics.Counter(MetricTransitEnqueued)
	v.metrics.Gauge(MetricPending)
}

func (v *valve) isWorker() bool {
	select {
	case <-v.started:
		return goroutineID() == v.workerID
	default:
		return false
	}
}

// submit enqueues t onto transit if the caller is the worker goroutine
// itself (a cascaded emission), or onto ingress otherwise. External
// submissions are dropped once the valve has stopped accepting new work.
func (v *valve) submit(target emitter, value interface{}) {
	if v.isWorker() {
		v.transit.PushBack(deliverTask(target, value))
		v.metrics.Gauge(MetricPending).Set(float64(v.pending.Add(1)))
		v.metrics.Counter(MetricTransitEnqueued).Inc()
		return
	}

	if valveState(v.state.Load()) != valveRunning {
		return
	}

	v.ingress.Push(deliverTask(target, value))
	v.metrics.Gauge(MetricPending).Set(float64(v.pending.Add(1)))
	v.metrics.Counter(MetricIngressEnqueued).Inc()

	v.mu.Lock()
	v.hasWork = true
	v.cond.Broadcast()
	v.mu.Unlock()
}

// submitControl pushes a housekeeping task rather than a delivery. Unlike
// submit it does not check whether the valve still accepts new work.
func (v *valve) submitControl(fn func()) {
	if v.isWorker() {
		v.transit.PushBack(controlTask(fn))
		v.pending.Add(1)
		return
	}
	v.ingress.Push(controlTask(fn))
	v.pending.Add(1)
	v.mu.Lock()
	v.hasWork = true
	v.cond.Broadcast()
	v.mu.Unlock()
}

func (v *valve) loop() {
	v.workerID = goroutineID()
	close(v.started)

	for {
		for {
			t, ok := v.transit.PopFront()
			if !ok {
				break
			}
			v.runTask(t)
		}

		if t, ok := v.ingress.Pop(); ok {
			v.runTask(t)
			continue
		}

		if valveState(v.state.Load()) != valveRunning {
			break
		}

		v.park()
	}

	v.state.Store(int32(valveClosed))
	v.faults.close()
	v.notifyIdle()
	capitan.Info(context.Background(), SignalCircuitClosed,
		FieldCircuitName.Field(v.subject.Path(".")),
	)
}

func (v *valve) park() {
	v.mu.Lock()
	for !v.hasWork && valveState(v.state.Load()) == valveRunning {
		v.cond.Wait()
	}
	v.hasWork = false
	v.mu.Unlock()
}

func (v *valve) runTask(t task) {
	ctx, span := v.tracer.StartSpan(context.Background(), SpanValveTask)
	func() {
		defer func() {
			if r := recover(); r != nil {
				v.metrics.Counter(MetricFaults).Inc()
				v.faults.emit(ctx, Fault{
					Circuit:   v.subject,
					Recovered: r,
					Timestamp: v.clock.Now(),
				})
			}
		}()
		t.run()
	}()
	span.Finish()
	v.metrics.Counter(MetricTasksProcessed).Inc()

	remaining := v.pending.Add(-1)
	v.metrics.Gauge(MetricPending).Set(float64(remaining))
	if remaining == 0 {
		v.notifyIdle()
	}
}

func (v *valve) notifyIdle() {
	v.mu.Lock()
	v.cond.Broadcast()
	v.mu.Unlock()
}

// await blocks the calling goroutine until every submitted task this
// valve has accepted has finished running (spec.md §4.4 "await()"). It
// refuses to block the worker's own goroutine.
func (v *valve) await() error {
	if v.isWorker() {
		return &IllegalStateError{Reason: "cannot await a circuit from its own worker thread"}
	}
	v.mu.Lock()
	for v.pending.Load() != 0 {
		v.cond.Wait()
	}
	v.mu.Unlock()
	return nil
}

// close stops the valve from accepting new external submissions and lets
// the worker drain whatever is already queued before exiting
// (spec.md §4.4 "close()", idempotent).
func (v *valve) close() {
	if !v.state.CompareAndSwap(int32(valveRunning), int32(valveDraining)) {
		return
	}
	v.mu.Lock()
	v.hasWork = true
	v.cond.Broadcast()
	v.mu.Unlock()
}

func (v *valve) closed() bool {
	return valveState(v.state.Load()) == valveClosed
}

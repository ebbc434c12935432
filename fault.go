package substrates

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
)

// Fault describes a user receptor panic caught by a circuit's engine. The
// worker survives; the fault is surfaced as an event on the circuit's own
// state source instead of propagating (spec.md §7 "Receptor fault").
type Fault struct {
	Circuit   *Subject
	Recovered interface{}
	Timestamp time.Time
}

// faultSource is the circuit's self-observation channel (spec.md §4.4
// "Circuit ... implements Source<State> for self-observation"). It is
// deliberately built on hookz rather than on the Hub/Subscriber machinery
// in hub.go: this is an ambient, best-effort notification side-channel,
// distinct from the bespoke lazy-rebuild delivery-list mechanism a real
// per-channel Hub uses.
type faultSource struct {
	hooks *hookz.Hooks[Fault]
}

func newFaultSource() *faultSource {
	return &faultSource{hooks: hookz.New[Fault]()}
}

// Subscribe registers a callback invoked whenever the circuit catches a
// receptor panic. It returns an unsubscribe function.
func (f *faultSource) Subscribe(handler func(context.Context, Fault) error) (func(), error) {
	handle, err := f.hooks.Hook(hookz.Key("valve.fault"), handler)
	if err != nil {
		return nil, err
	}
	return func() { _ = handle.Unhook() }, nil //nolint:errcheck
}

func (f *faultSource) emit(ctx context.Context, fault Fault) {
	_ = f.hooks.Emit(ctx, hookz.Key("valve.fault"), fault) //nolint:errcheck

	capitan.Error(ctx, SignalValveFault,
		FieldSubjectPath.Field(fault.Circuit.Path(".")),
		FieldTimestamp.Field(float64(fault.Timestamp.Unix())),
	)
}

func (f *faultSource) close() {
	f.hooks.Close()
}

package substrates

import (
	"math/rand"

	"github.com/zoobzio/clockz"
)

// Flow is an inline chain of stateful operator cells that a Channel pipe
// applies to every value before it reaches the registered downstreams
// (spec.md §4.5 "Flow operators"). Every cell in the chain runs on the
// owning circuit's worker thread and owns its state exclusively; nothing
// here needs a mutex.
type Flow[E any] struct {
	apply func(value E, emit func(E))
}

// newFlow returns the identity flow: every value passes through
// unchanged.
func newFlow[E any]() *Flow[E] {
	return &Flow[E]{apply: func(v E, emit func(E)) { emit(v) }}
}

func (f *Flow[E]) run(value E, emit func(E)) {
	f.apply(value, emit)
}

// Diff drops a value equal to the immediately preceding one, per equal.
// The first value observed always passes (spec.md §4.5 "Flow null
// policy": a dropped diff value is "drop").
func (f *Flow[E]) Diff(equal func(a, b E) bool) *Flow[E] {
	prev := f.apply
	var (
		has  bool
		last E
	)
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if has && equal(last, out) {
				return
			}
			has, last = true, out
			emit(out)
		})
	}}
}

// DiffFrom is Diff's primed-initial variant: initial stands in for a
// value observed immediately before the chain started, so a first value
// equal to initial is dropped instead of automatically passing (spec.md
// §4.5 operator table, "diff(initial)").
func (f *Flow[E]) DiffFrom(initial E, equal func(a, b E) bool) *Flow[E] {
	prev := f.apply
	last := initial
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if equal(last, out) {
				return
			}
			last = out
			emit(out)
		})
	}}
}

// Guard drops a value that fails predicate.
func (f *Flow[E]) Guard(predicate func(E) bool) *Flow[E] {
	prev := f.apply
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if predicate(out) {
				emit(out)
			}
		})
	}}
}

// GuardFrom is Guard's stateful dual-argument variant (spec.md §4.5
// operator table, "guard(initial, bipred)"): bipred compares the last
// passing value (seeded with initial) against the current one, and the
// stored value only advances when a value passes.
func (f *Flow[E]) GuardFrom(initial E, bipred func(prev, current E) bool) *Flow[E] {
	prev := f.apply
	last := initial
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if !bipred(last, out) {
				return
			}
			last = out
			emit(out)
		})
	}}
}

// Limit passes at most n values total, then drops every value after.
// Negative n is rejected with a ValidationError (spec.md §4.5 "Flow null
// policy": "limit ... reject negative arguments with a validation
// error").
func (f *Flow[E]) Limit(n int) (*Flow[E], error) {
	if n < 0 {
		return nil, &ValidationError{Reason: "limit: n must not be negative"}
	}
	prev := f.apply
	count := 0
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if count >= n {
				return
			}
			count++
			emit(out)
		})
	}}, nil
}

// Skip drops the first n values, then passes everything after. Negative
// n is rejected with a ValidationError (spec.md §4.5 "Flow null
// policy").
func (f *Flow[E]) Skip(n int) (*Flow[E], error) {
	if n < 0 {
		return nil, &ValidationError{Reason: "skip: n must not be negative"}
	}
	prev := f.apply
	skipped := 0
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if skipped < n {
				skipped++
				return
			}
			emit(out)
		})
	}}, nil
}

// Sample passes every nth value seen (1-indexed: the first value always
// passes). n<=0 is rejected with a ValidationError (spec.md §4.5 "Sample
// with k<=0 rejects").
func (f *Flow[E]) Sample(n int) (*Flow[E], error) {
	if n <= 0 {
		return nil, &ValidationError{Reason: "sample: n must be positive"}
	}
	prev := f.apply
	seen := 0
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if seen%n == 0 {
				emit(out)
			}
			seen++
		})
	}}, nil
}

// SampleRate passes each value independently with probability rate,
// using a PRNG seeded from clock at chain-construction time so test
// suites can hand in a fixed clockz.Clock for reproducible sequences.
func (f *Flow[E]) SampleRate(rate float64, clock clockz.Clock) *Flow[E] {
	if clock == nil {
		clock = clockz.RealClock
	}
	prev := f.apply
	rng := rand.New(rand.NewSource(clock.Now().UnixNano()))
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			if rng.Float64() < rate {
				emit(out)
			}
		})
	}}
}

// Reduce folds every value into running state acc via step, emitting the
// updated accumulator on every value (a running scan, not a windowed
// aggregate -- the cell has no notion of window closure).
func (f *Flow[E]) Reduce(initial E, step func(acc, value E) E) *Flow[E] {
	prev := f.apply
	acc := initial
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			acc = step(acc, out)
			emit(acc)
		})
	}}
}

// Replace substitutes every passing value with the result of mapper.
func (f *Flow[E]) Replace(mapper func(E) E) *Flow[E] {
	prev := f.apply
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			emit(mapper(out))
		})
	}}
}

// Peek invokes observer for every value that reaches this point in the
// chain, without altering or dropping it.
func (f *Flow[E]) Peek(observer func(E)) *Flow[E] {
	prev := f.apply
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			observer(out)
			emit(out)
		})
	}}
}

// Forward is a no-op pass-through cell, useful as an explicit chain
// terminator when a configurer wants to make "do nothing further"
// intent-explicit rather than implicit.
func (f *Flow[E]) Forward() *Flow[E] {
	prev := f.apply
	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, emit)
	}}
}

// SiftMode selects which bounds test Sift applies to each value (spec.md
// §4.5 "sift(cmp, config) | Stateful filter built from {above, below,
// min, max, range, high (new high), low (new low)}").
type SiftMode int

const (
	// SiftAbove passes values strictly greater than Bound.
	SiftAbove SiftMode = iota
	// SiftBelow passes values strictly less than Bound.
	SiftBelow
	// SiftMin passes values greater than or equal to Bound.
	SiftMin
	// SiftMax passes values less than or equal to Bound.
	SiftMax
	// SiftRange passes values within [Bound, UpperBound].
	SiftRange
	// SiftHigh passes a value that sets a new running high, per cmp.
	SiftHigh
	// SiftLow passes a value that sets a new running low, per cmp.
	SiftLow
)

// SiftConfig selects Sift's Mode and the bound(s) it tests against.
// UpperBound is only consulted when Mode is SiftRange; Bound is ignored
// entirely by SiftHigh and SiftLow, which track their own running
// extreme instead.
type SiftConfig[E any] struct {
	Mode       SiftMode
	Bound      E
	UpperBound E
}

// Sift is a stateful bounds filter driven by cmp, a three-way comparator
// (negative if a < b, zero if equal, positive if a > b) and cfg's Mode
// (spec.md §4.5 "sift(cmp, config)"). SiftHigh and SiftLow carry their
// own running extreme across calls; every other mode is stateless aside
// from the bound(s) supplied up front.
func (f *Flow[E]) Sift(cmp func(a, b E) int, cfg SiftConfig[E]) *Flow[E] {
	prev := f.apply
	var hasExtreme bool
	var extreme E

	return &Flow[E]{apply: func(v E, emit func(E)) {
		prev(v, func(out E) {
			switch cfg.Mode {
			case SiftAbove:
				if cmp(out, cfg.Bound) > 0 {
					emit(out)
				}
			case SiftBelow:
				if cmp(out, cfg.Bound) < 0 {
					emit(out)
				}
			case SiftMin:
				if cmp(out, cfg.Bound) >= 0 {
					emit(out)
				}
			case SiftMax:
				if cmp(out, cfg.Bound) <= 0 {
					emit(out)
				}
			case SiftRange:
				if cmp(out, cfg.Bound) >= 0 && cmp(out, cfg.UpperBound) <= 0 {
					emit(out)
				}
			case SiftHigh:
				if !hasExtreme || cmp(out, extreme) > 0 {
					hasExtreme, extreme = true, out
					emit(out)
				}
			case SiftLow:
				if !hasExtreme || cmp(out, extreme) < 0 {
					hasExtreme, extreme = true, out
					emit(out)
				}
			}
		})
	}}
}

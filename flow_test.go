package substrates

import (
	"testing"
)

func collect[E any](flow *Flow[E], values []E) []E {
	var out []E
	for _, v := range values {
		flow.run(v, func(out2 E) {
			out = append(out, out2)
		})
	}
	return out
}

func TestFlowDiffDropsRepeats(t *testing.T) {
	flow := newFlow[int]().Diff(func(a, b int) bool { return a == b })
	got := collect(flow, []int{1, 1, 2, 2, 2, 3, 1})
	want := []int{1, 2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowDiffFromDropsFirstValueEqualToInitial(t *testing.T) {
	flow := newFlow[int]().DiffFrom(1, func(a, b int) bool { return a == b })
	got := collect(flow, []int{1, 1, 2, 2})
	want := []int{2}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlowGuardDropsFailing(t *testing.T) {
	flow := newFlow[int]().Guard(func(v int) bool { return v%2 == 0 })
	got := collect(flow, []int{1, 2, 3, 4, 5, 6})
	want := []int{2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlowGuardFromComparesAgainstEvolvingPrior(t *testing.T) {
	// Passes only strictly increasing values, seeded at 0.
	flow := newFlow[int]().GuardFrom(0, func(prev, current int) bool { return current > prev })
	got := collect(flow, []int{1, 0, 2, 2, 5, 3, 6})
	want := []int{1, 2, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowLimit(t *testing.T) {
	flow, err := newFlow[int]().Limit(3)
	if err != nil {
		t.Fatalf("Limit: %v", err)
	}
	got := collect(flow, []int{1, 2, 3, 4, 5})
	if len(got) != 3 {
		t.Fatalf("got %v, want 3 values", got)
	}
}

func TestFlowLimitRejectsNegative(t *testing.T) {
	_, err := newFlow[int]().Limit(-1)
	if err == nil {
		t.Fatal("expected ValidationError for a negative limit")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("got %T, want *ValidationError", err)
	}
}

func TestFlowSkip(t *testing.T) {
	flow, err := newFlow[int]().Skip(2)
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	got := collect(flow, []int{1, 2, 3, 4})
	want := []int{3, 4}
	if len(got) != len(want) || got[0] != 3 || got[1] != 4 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlowSkipRejectsNegative(t *testing.T) {
	_, err := newFlow[int]().Skip(-1)
	if err == nil {
		t.Fatal("expected ValidationError for a negative skip")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("got %T, want *ValidationError", err)
	}
}

func TestFlowSample(t *testing.T) {
	flow, err := newFlow[int]().Sample(2)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	got := collect(flow, []int{1, 2, 3, 4, 5, 6})
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowSampleRejectsNonPositive(t *testing.T) {
	if _, err := newFlow[int]().Sample(0); err == nil {
		t.Fatal("expected ValidationError for sample(0)")
	} else if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("got %T, want *ValidationError", err)
	}
	if _, err := newFlow[int]().Sample(-3); err == nil {
		t.Fatal("expected ValidationError for a negative sample rate")
	}
}

func TestFlowReduceRunningSum(t *testing.T) {
	flow := newFlow[int]().Reduce(0, func(acc, v int) int { return acc + v })
	got := collect(flow, []int{1, 2, 3})
	want := []int{1, 3, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowReplace(t *testing.T) {
	flow := newFlow[int]().Replace(func(v int) int { return v * 10 })
	got := collect(flow, []int{1, 2, 3})
	want := []int{10, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowPeekDoesNotAlter(t *testing.T) {
	var peeked []int
	flow := newFlow[int]().Peek(func(v int) { peeked = append(peeked, v) })
	got := collect(flow, []int{1, 2, 3})
	if len(got) != 3 || len(peeked) != 3 {
		t.Fatalf("got %v, peeked %v", got, peeked)
	}
}

func intCmp(a, b int) int { return a - b }

func TestFlowSiftAbove(t *testing.T) {
	flow := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftAbove, Bound: 3})
	got := collect(flow, []int{1, 2, 3, 4, 5})
	want := []int{4, 5}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlowSiftBelow(t *testing.T) {
	flow := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftBelow, Bound: 3})
	got := collect(flow, []int{1, 2, 3, 4})
	want := []int{1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlowSiftMinMax(t *testing.T) {
	min := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftMin, Bound: 2})
	gotMin := collect(min, []int{1, 2, 3})
	if len(gotMin) != 2 || gotMin[0] != 2 || gotMin[1] != 3 {
		t.Fatalf("min got %v, want [2 3]", gotMin)
	}

	max := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftMax, Bound: 2})
	gotMax := collect(max, []int{1, 2, 3})
	if len(gotMax) != 2 || gotMax[0] != 1 || gotMax[1] != 2 {
		t.Fatalf("max got %v, want [1 2]", gotMax)
	}
}

func TestFlowSiftRange(t *testing.T) {
	flow := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftRange, Bound: 2, UpperBound: 4})
	got := collect(flow, []int{1, 2, 3, 4, 5})
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlowSiftHighPassesOnlyNewHighs(t *testing.T) {
	flow := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftHigh})
	got := collect(flow, []int{3, 1, 5, 4, 7, 2})
	want := []int{3, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowSiftLowPassesOnlyNewLows(t *testing.T) {
	flow := newFlow[int]().Sift(intCmp, SiftConfig[int]{Mode: SiftLow})
	got := collect(flow, []int{5, 7, 3, 4, 1, 6})
	want := []int{5, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

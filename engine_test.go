package substrates

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func newTestCircuit() *Circuit {
	subject := NewSubject(nil, TypeCircuit, nil)
	return newCircuit(subject, clockz.RealClock)
}

func TestCircuitSequentialDelivery(t *testing.T) {
	c := newTestCircuit()
	defer c.Close()

	var order []int
	pipe := CircuitPipe[int](c, func(v int) {
		order = append(order, v)
	})

	for i := 0; i < 50; i++ {
		pipe.Emit(i)
	}
	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order broken at index %d: got %d, want %d", i, v, i)
		}
	}
	if len(order) != 50 {
		t.Fatalf("got %d deliveries, want 50", len(order))
	}
}

func TestCircuitCascadeUsesTransitBeforeIngress(t *testing.T) {
	c := newTestCircuit()
	defer c.Close()

	var order []string
	var cascaded Pipe[int]
	cascaded = CircuitPipe[int](c, func(v int) {
		order = append(order, "cascaded")
	})

	entry := CircuitPipe[int](c, func(v int) {
		order = append(order, "entry")
		cascaded.Emit(v)
	})

	// A second, independently-submitted external task: it should still
	// only run after the cascade the first task triggers has drained,
	// since the worker gives the transit queue strict priority.
	entry.Emit(1)
	entry.Emit(2)

	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}

	want := []string{"entry", "cascaded", "entry", "cascaded"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCircuitAwaitFromWorkerFails(t *testing.T) {
	c := newTestCircuit()
	defer c.Close()

	done := make(chan error, 1)
	pipe := CircuitPipe[int](c, func(int) {
		done <- c.Await()
	})
	pipe.Emit(1)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected IllegalStateError calling Await from the worker thread")
		}
		if _, ok := err.(*IllegalStateError); !ok {
			t.Fatalf("got %T, want *IllegalStateError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for receptor")
	}
}

func TestCircuitCloseIsIdempotent(t *testing.T) {
	c := newTestCircuit()
	c.Close()
	c.Close()
	if err := c.Await(); err != nil {
		t.Fatalf("Await after close: %v", err)
	}
}

func TestCircuitFaultRecoveryKeepsWorkerAlive(t *testing.T) {
	c := newTestCircuit()
	defer c.Close()

	faults := make(chan Fault, 1)
	unsub, err := c.Faults().Subscribe(func(_ context.Context, f Fault) error {
		faults <- f
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	var recovered []int
	pipe := CircuitPipe[int](c, func(v int) {
		if v == 1 {
			panic("boom")
		}
		recovered = append(recovered, v)
	})
	pipe.Emit(1)
	pipe.Emit(2)

	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(recovered) != 1 || recovered[0] != 2 {
		t.Fatalf("recovered = %v, want [2] (worker must survive a panic)", recovered)
	}

	select {
	case f := <-faults:
		if f.Recovered != "boom" {
			t.Errorf("fault.Recovered = %v, want %q", f.Recovered, "boom")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fault notification")
	}
}

package substrates

import (
	"testing"

	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

func newTestHub[E any]() *hub[E] {
	return newHub[E]("test.conduit", metricz.New(), tracez.New())
}

func TestHubRebuildReflectsRegisteredSubscriptions(t *testing.T) {
	h := newTestHub[int]()
	subject := NewSubject(nil, TypeChannel, nil)

	if got := len(h.rebuild(subject)); got != 0 {
		t.Fatalf("got %d entries, want 0 before any subscribe", got)
	}

	h.subscribe(1, func(_ *Subject, r *Registrar[int]) {
		r.Register(newEmptyPipe[int]())
	})

	list := h.rebuild(subject)
	if len(list) != 1 {
		t.Fatalf("got %d entries, want 1", len(list))
	}
}

func TestHubUnsubscribeAllRemovesOnlyMatchingSubscriber(t *testing.T) {
	h := newTestHub[int]()
	subject := NewSubject(nil, TypeChannel, nil)

	h.subscribe(1, func(_ *Subject, r *Registrar[int]) { r.Register(newEmptyPipe[int]()) })
	h.subscribe(2, func(_ *Subject, r *Registrar[int]) { r.Register(newEmptyPipe[int]()) })
	h.subscribe(1, func(_ *Subject, r *Registrar[int]) { r.Register(newEmptyPipe[int]()) })

	if got := len(h.rebuild(subject)); got != 3 {
		t.Fatalf("got %d entries before unsubscribe, want 3", got)
	}

	h.unsubscribeAll(1)
	if got := len(h.rebuild(subject)); got != 1 {
		t.Fatalf("got %d entries after unsubscribing id 1, want 1", got)
	}
}

func TestHubEpochIncreasesOnEveryChange(t *testing.T) {
	h := newTestHub[int]()
	e0 := h.Epoch()
	h.subscribe(1, func(_ *Subject, r *Registrar[int]) {})
	e1 := h.Epoch()
	h.unsubscribeAll(1)
	e2 := h.Epoch()

	if !(e0 < e1 && e1 < e2) {
		t.Fatalf("epochs did not strictly increase: %d, %d, %d", e0, e1, e2)
	}
}

func TestHubRebuildPassesChannelSubjectToConfigure(t *testing.T) {
	h := newTestHub[int]()
	subjectA := NewSubject(nil, TypeChannel, nil)
	subjectB := NewSubject(nil, TypeChannel, nil)

	var seen []*Subject
	h.subscribe(1, func(subject *Subject, r *Registrar[int]) {
		seen = append(seen, subject)
		if subject == subjectA {
			r.Register(newEmptyPipe[int]())
		}
	})

	listA := h.rebuild(subjectA)
	listB := h.rebuild(subjectB)

	if len(listA) != 1 {
		t.Fatalf("got %d entries for subjectA, want 1", len(listA))
	}
	if len(listB) != 0 {
		t.Fatalf("got %d entries for subjectB, want 0", len(listB))
	}
	if len(seen) != 2 || seen[0] != subjectA || seen[1] != subjectB {
		t.Fatalf("configure did not see the expected per-channel subjects: %v", seen)
	}
}

package substrates

// SlotType tags the value carried by a Slot. Only these primitive shapes
// are supported, no arbitrary interface{} payloads, so that State stays
// comparable and a Subject's identity never depends on reference equality
// of something mutable (spec.md §3 "Slot").
type SlotType int

const (
	SlotBool SlotType = iota
	SlotInt32
	SlotInt64
	SlotFloat32
	SlotFloat64
	SlotString
	SlotName
	SlotState
)

// Slot is an immutable (name, type, value) triple. Equality compares name
// and type by identity/value and the boxed value by ==, matching spec.md's
// "first two identity-compared, the third value-compared" rule (Name is
// already interned, so identity and value comparison coincide for it).
type Slot struct {
	name  *Name
	typ   SlotType
	value interface{}
}

// NewSlot constructs a Slot. Callers normally use the typed constructors
// below (BoolSlot, Int32Slot, ...) which also pin the SlotType correctly.
func NewSlot(name *Name, typ SlotType, value interface{}) Slot {
	return Slot{name: name, typ: typ, value: value}
}

func BoolSlot(name *Name, v bool) Slot       { return NewSlot(name, SlotBool, v) }
func Int32Slot(name *Name, v int32) Slot     { return NewSlot(name, SlotInt32, v) }
func Int64Slot(name *Name, v int64) Slot     { return NewSlot(name, SlotInt64, v) }
func Float32Slot(name *Name, v float32) Slot { return NewSlot(name, SlotFloat32, v) }
func Float64Slot(name *Name, v float64) Slot { return NewSlot(name, SlotFloat64, v) }
func StringSlot(name *Name, v string) Slot   { return NewSlot(name, SlotString, v) }
func NameSlot(name *Name, v *Name) Slot      { return NewSlot(name, SlotName, v) }
func StateSlot(name *Name, v State) Slot     { return NewSlot(name, SlotState, v) }

// Name returns the slot's key name.
func (s Slot) Name() *Name { return s.name }

// Type returns the slot's value kind.
func (s Slot) Type() SlotType { return s.typ }

// Value returns the slot's boxed value.
func (s Slot) Value() interface{} { return s.value }

// Equal compares two slots by (name, type, value), as required by
// spec.md §3.
func (s Slot) Equal(o Slot) bool {
	return s.name == o.name && s.typ == o.typ && s.value == o.value
}

// slotKey identifies a slot for compaction purposes: (name, type).
type slotKey struct {
	name *Name
	typ  SlotType
}

// State is an immutable, persistent, append-to-front list of Slots. It is
// the value carried by a Subject's state() and by SlotState slots
// themselves (spec.md §3).
type State struct {
	head *stateNode
}

type stateNode struct {
	slot Slot
	next *stateNode
}

// EmptyState is the canonical zero-length State.
var EmptyState = State{}

// With returns a new State with slot prepended. The receiver is untouched
// (State is a persistent data structure; prior observers keep seeing the
// old list).
func (s State) With(slot Slot) State {
	return State{head: &stateNode{slot: slot, next: s.head}}
}

// Slots returns the slots from most- to least-recently-added.
func (s State) Slots() []Slot {
	var out []Slot
	for n := s.head; n != nil; n = n.next {
		out = append(out, n.slot)
	}
	return out
}

// Compact removes duplicate (name, type) pairs, keeping the first
// (most-recently-added) occurrence of each, per spec.md §3.
func (s State) Compact() State {
	seen := make(map[slotKey]bool)
	var kept []Slot
	for n := s.head; n != nil; n = n.next {
		key := slotKey{name: n.slot.name, typ: n.slot.typ}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, n.slot)
	}
	out := EmptyState
	for i := len(kept) - 1; i >= 0; i-- {
		out = out.With(kept[i])
	}
	return out
}

// IsEmpty reports whether the state carries no slots.
func (s State) IsEmpty() bool {
	return s.head == nil
}

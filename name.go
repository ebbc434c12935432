package substrates

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Name is an interned, hierarchical identifier. Two names built from the
// same sequence of parts are always the same instance: comparing names
// with == is always correct and is how the rest of the module establishes
// identity (spec.md "Identity of names").
//
// A Name is immutable and lives for the lifetime of the process once
// constructed; there is no way to un-intern one.
type Name struct {
	parent *Name
	part   string
}

// Enclosure returns the parent name, or nil if this is the root.
func (n *Name) Enclosure() *Name {
	if n == nil {
		return nil
	}
	return n.parent
}

// Part returns this name's own segment, without its ancestry.
func (n *Name) Part() string {
	if n == nil {
		return ""
	}
	return n.part
}

// String renders the canonical dotted form, root-to-self.
func (n *Name) String() string {
	return n.Path(".")
}

// Path concatenates every segment from the root to this name using sep.
func (n *Name) Path(sep string) string {
	if n == nil {
		return ""
	}
	parts := n.segments()
	return strings.Join(parts, sep)
}

// segments returns the root-to-self sequence of parts.
func (n *Name) segments() []string {
	if n == nil {
		return nil
	}
	var depth int
	for p := n; p != nil && p.parent != nil; p = p.parent {
		depth++
	}
	out := make([]string, depth)
	p := n
	for i := depth - 1; i >= 0; i-- {
		out[i] = p.part
		p = p.parent
	}
	return out
}

// Depth is the number of segments in this name, i.e. its distance from
// the root (the root itself has depth 0, a top-level name depth 1).
func (n *Name) Depth() int {
	var depth int
	for p := n; p != nil && p.parent != nil; p = p.parent {
		depth++
	}
	return depth
}

// innerTable is a concurrent part->*Name map for a single parent,
// guarded by a mutex so concurrent name() calls for the same
// (parent, part) pair converge on one instance.
type innerTable struct {
	mu sync.Mutex
	m  map[string]*Name
}

func (t *innerTable) getOrCreate(parent *Name, part string) *Name {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.m[part]; ok {
		return existing
	}
	child := &Name{parent: parent, part: part}
	t.m[part] = child
	return child
}

// nameTable is the two-level intern table: outer keyed by parent identity
// (pointer), inner keyed by part string.
type nameTable struct {
	mu    sync.Mutex
	outer map[*Name]*innerTable
}

var globalNames = &nameTable{
	outer: make(map[*Name]*innerTable),
}

// root is the process-wide singleton root name ("cortex"), the enclosure
// of every top-level name.
var root = &Name{parent: nil, part: "cortex"}

// RootName returns the singleton root of the global name tree.
func RootName() *Name {
	return root
}

// Child returns the unique interned name for parent + part, constructing
// it at most once even under concurrent access. parent == nil means the
// global root.
func (t *nameTable) Child(parent *Name, part string) (*Name, error) {
	if part == "" {
		return nil, &InvalidNameError{Reason: "empty segment"}
	}
	if strings.Contains(part, ".") {
		return nil, &InvalidNameError{Reason: "segment must not contain separator: " + part}
	}
	if parent == nil {
		parent = root
	}

	t.mu.Lock()
	inner, ok := t.outer[parent]
	if !ok {
		inner = &innerTable{m: make(map[string]*Name)}
		t.outer[parent] = inner
	}
	t.mu.Unlock()

	return inner.getOrCreate(parent, part), nil
}

// NameOf parses a dotted path ("a.b.c") into its interned Name, rooted at
// the global root. Empty segments, and leading/trailing/consecutive
// separators are rejected.
func NameOf(path string) (*Name, error) {
	return NameOfRelative(nil, path)
}

// NameOfRelative parses a dotted path relative to a given enclosure
// (nil means the global root).
func NameOfRelative(enclosure *Name, path string) (*Name, error) {
	if path == "" {
		return nil, &InvalidNameError{Reason: "empty path"}
	}
	if strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") {
		return nil, &InvalidNameError{Reason: "path must not start or end with separator: " + path}
	}
	parts := strings.Split(path, ".")
	cur := enclosure
	for _, part := range parts {
		if part == "" {
			return nil, &InvalidNameError{Reason: "consecutive separators in path: " + path}
		}
		var err error
		cur, err = globalNames.Child(cur, part)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// NameOfParts interns a name from an already-split, non-empty sequence of
// segments (the "iterable" constructor form named in spec.md §6).
func NameOfParts(parts ...string) (*Name, error) {
	if len(parts) == 0 {
		return nil, &InvalidNameError{Reason: "empty parts"}
	}
	var cur *Name
	for _, part := range parts {
		if part == "" {
			return nil, &InvalidNameError{Reason: "empty segment in parts"}
		}
		var err error
		cur, err = globalNames.Child(cur, part)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// NameOfType yields the canonical dotted name for a Go type, using the
// '/'- and '.'-separated elements of its package path followed by its type
// name as successive segments, the Go analogue of spec.md's "class/member
// descriptor" parser.
func NameOfType(v interface{}) (*Name, error) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	name := t.Name()
	if name == "" {
		return nil, &InvalidNameError{Reason: "anonymous type has no name"}
	}
	if pkg == "" {
		return NameOfParts(name)
	}
	elems := strings.FieldsFunc(pkg, func(r rune) bool { return r == '/' || r == '.' })
	return NameOfParts(append(elems, name)...)
}

// NameOfEnum yields "DeclaringType.CONST" for an enum-like constant,
// matching spec.md's "enum constants yield DeclaringClass.NAME".
func NameOfEnum(declaring interface{}, constant string) (*Name, error) {
	typeName, err := NameOfType(declaring)
	if err != nil {
		return nil, err
	}
	return globalNames.Child(typeName, constant)
}

// idCounter hands out process-unique opaque identifiers for Subject.
var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

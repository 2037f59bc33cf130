package firm

import (
	"fmt"
	"sort"
)

// anchorEntry records a tracked object seen during a dump.
type anchorEntry struct {
	id       int
	typeName string
	node     *Node
}

// dumpTracker assigns anchors to tracked objects and turns repeat
// occurrences into aliases. Identity is the pointer itself held in an
// interface, which compares both address and dynamic type.
type dumpTracker struct {
	anchors map[any]*anchorEntry
	next    int
	stats   stats
}

func newDumpTracker() *dumpTracker {
	return &dumpTracker{anchors: make(map[any]*anchorEntry)}
}

// lookup returns the anchor of an already registered object.
func (t *dumpTracker) lookup(ptr any) (*anchorEntry, bool) {
	e, ok := t.anchors[ptr]
	return e, ok
}

// register records ptr as the anchor for node. It must happen before the
// object's contents are written so cycles resolve to aliases.
func (t *dumpTracker) register(ptr any, typeName string, node *Node) (*anchorEntry, error) {
	if e, ok := t.anchors[ptr]; ok {
		return nil, &AnchorError{TypeName: typeName, ID: e.id}
	}
	t.next++
	e := &anchorEntry{id: t.next, typeName: typeName, node: node}
	t.anchors[ptr] = e
	t.stats.objects++
	return e, nil
}

// alias returns an alias node for e and tags the anchor node the first time
// it is referenced.
func (t *dumpTracker) alias(e *anchorEntry) *Node {
	if e.node.Anchor == 0 {
		e.node.Anchor = e.id
		t.stats.anchors++
	}
	t.stats.aliases++
	return NewAlias(e.typeName, e.id)
}

type loadKey struct {
	typeName string
	id       int
}

// restored is an instance created for an anchor during a load.
type restored struct {
	value   any
	claimed bool // the anchor body has been seen
}

// loadTracker resolves aliases to the instances restored for their anchors.
type loadTracker struct {
	entries map[loadKey]*restored
	stats   stats
}

func newLoadTracker() *loadTracker {
	return &loadTracker{entries: make(map[loadKey]*restored)}
}

// resolve returns the instance for an alias. An alias met before its anchor
// gets a pre-allocated empty instance that the anchor body later fills.
func (t *loadTracker) resolve(typeName string, id int, alloc func() any) any {
	t.stats.aliases++
	key := loadKey{typeName, id}
	if r, ok := t.entries[key]; ok {
		return r.value
	}
	r := &restored{value: alloc()}
	t.entries[key] = r
	return r.value
}

// claim returns the instance an anchor body must populate, reusing one
// pre-allocated by an earlier alias. It is registered before population.
func (t *loadTracker) claim(typeName string, id int, alloc func() any) (any, error) {
	key := loadKey{typeName, id}
	r, ok := t.entries[key]
	if ok && r.claimed {
		return nil, newCorruptError("", fmt.Sprintf("anchor %d of %s defined twice", id, typeName), nil)
	}
	if !ok {
		r = &restored{value: alloc()}
		t.entries[key] = r
	}
	r.claimed = true
	t.stats.anchors++
	return r.value, nil
}

// verify reports aliases whose anchor never appeared.
func (t *loadTracker) verify() error {
	var missing []string
	for key, r := range t.entries {
		if !r.claimed {
			missing = append(missing, fmt.Sprintf("%s#%d", key.typeName, key.id))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return newCorruptError("", fmt.Sprintf("alias to unknown anchor %v", missing), nil)
}

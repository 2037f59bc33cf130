package firm

import (
	"fmt"
	"reflect"
)

// Disabler is implemented by values that can opt out of serialization.
// A disabled value held directly by a property is skipped unless the
// property is forced. Disabled elements of sequences and sets are always
// dropped.
type Disabler interface {
	SerializeDisabled() bool
}

// Toggle is an embeddable Disabler.
type Toggle struct {
	disabled bool
}

// DisableSerialize excludes the value from serialization.
func (t *Toggle) DisableSerialize() { t.disabled = true }

// EnableSerialize re-includes the value in serialization.
func (t *Toggle) EnableSerialize() { t.disabled = false }

// SerializeDisabled reports whether serialization is disabled.
func (t *Toggle) SerializeDisabled() bool { return t.disabled }

// List is an ordered sequence with reference identity. Unlike native slices,
// a List shared between several owners, or containing itself, is written once
// and restored as a single instance.
type List struct {
	items []any
}

// NewList returns a List holding items.
func NewList(items ...any) *List {
	return &List{items: append([]any(nil), items...)}
}

// Append adds items to the end of the list.
func (l *List) Append(items ...any) {
	l.items = append(l.items, items...)
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// At returns the item at index i.
func (l *List) At(i int) any { return l.items[i] }

// Put replaces the item at index i.
func (l *List) Put(i int, v any) { l.items[i] = v }

// Items returns a copy of the items.
func (l *List) Items() []any {
	return append([]any(nil), l.items...)
}

// Map is an insertion-ordered map with reference identity.
// Keys must be comparable.
type Map struct {
	keys   []any
	values map[any]any
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[any]any)}
}

// Put sets the value for key k, keeping the original position of existing keys.
func (m *Map) Put(k, v any) error {
	if !hashable(k) {
		return fmt.Errorf("%w: map key of type %T is not comparable", ErrUnsupportedType, k)
	}
	if m.values == nil {
		m.values = make(map[any]any)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
	return nil
}

// Get returns the value for key k.
func (m *Map) Get(k any) (any, bool) {
	if !hashable(k) {
		return nil, false
	}
	v, ok := m.values[k]
	return v, ok
}

// Delete removes key k.
func (m *Map) Delete(k any) {
	if !hashable(k) {
		return
	}
	if _, ok := m.values[k]; !ok {
		return
	}
	delete(m.values, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []any {
	return append([]any(nil), m.keys...)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(k, v any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Set is an insertion-ordered set with reference identity.
// Members must be comparable.
type Set struct {
	items []any
	index map[any]struct{}
}

// NewSet returns a Set holding items. Duplicates are dropped and
// non-comparable items are rejected.
func NewSet(items ...any) (*Set, error) {
	s := &Set{index: make(map[any]struct{})}
	for _, item := range items {
		if _, err := s.Add(item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts v and reports whether it was not already present.
func (s *Set) Add(v any) (bool, error) {
	if !hashable(v) {
		return false, fmt.Errorf("%w: set member of type %T is not comparable", ErrUnsupportedType, v)
	}
	if s.index == nil {
		s.index = make(map[any]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false, nil
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true, nil
}

// Has reports whether v is a member.
func (s *Set) Has(v any) bool {
	if !hashable(v) {
		return false
	}
	_, ok := s.index[v]
	return ok
}

// Remove deletes v.
func (s *Set) Remove(v any) {
	if !s.Has(v) {
		return
	}
	delete(s.index, v)
	for i, item := range s.items {
		if item == v {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.items) }

// Items returns the members in insertion order.
func (s *Set) Items() []any {
	return append([]any(nil), s.items...)
}

func hashable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Comparable()
}

// isDisabled reports whether v opts out of serialization.
func isDisabled(v any) bool {
	d, ok := v.(Disabler)
	if !ok {
		return false
	}
	rv := reflect.ValueOf(d)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return false
	}
	return d.SerializeDisabled()
}

// withoutDisabled returns v with disabled elements dropped from sequences
// and sets. The source is never mutated; a filtered copy is made only when
// an element is actually removed.
func withoutDisabled(v any) any {
	switch c := v.(type) {
	case *List:
		if c == nil || !anyDisabled(c.items) {
			return v
		}
		out := &List{}
		for _, item := range c.items {
			if !isDisabled(item) {
				out.items = append(out.items, item)
			}
		}
		return out
	case *Set:
		if c == nil || !anyDisabled(c.items) {
			return v
		}
		out := &Set{index: make(map[any]struct{})}
		for _, item := range c.items {
			if !isDisabled(item) {
				out.items = append(out.items, item)
				out.index[item] = struct{}{}
			}
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	n := rv.Len()
	drop := make([]bool, n)
	dropped := 0
	for i := 0; i < n; i++ {
		if isDisabled(elemInterface(rv.Index(i))) {
			drop[i] = true
			dropped++
		}
	}
	if dropped == 0 {
		return v
	}
	out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), 0, n-dropped)
	for i := 0; i < n; i++ {
		if !drop[i] {
			out = reflect.Append(out, rv.Index(i))
		}
	}
	return out.Interface()
}

func anyDisabled(items []any) bool {
	for _, item := range items {
		if isDisabled(item) {
			return true
		}
	}
	return false
}

func elemInterface(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

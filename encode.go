package firm

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

// MaxDepth bounds the nesting of a dumped or loaded graph. Cycles through
// untracked values (native slices and maps, types registered WithoutAliases)
// hit this limit instead of exhausting the stack.
const MaxDepth = 10000

var (
	idType   = reflect.TypeFor[ID]()
	timeType = reflect.TypeFor[time.Time]()
	listType = reflect.TypeFor[*List]()
	dictType = reflect.TypeFor[*Map]()
	setType  = reflect.TypeFor[*Set]()
)

// encoder turns a value graph into a Node tree.
type encoder struct {
	ctx   context.Context
	frame *frame
	depth int
}

// toNode dumps v within a new session frame.
func toNode(ctx context.Context, v any) (*Node, stats, error) {
	f := dumpFrame()
	ctx, leave := enter(ctx, f)
	defer leave()

	enc := &encoder{ctx: ctx, frame: f}
	n, err := enc.encode(reflect.ValueOf(v))
	return n, f.dump.stats, err
}

func (e *encoder) encode(v reflect.Value) (*Node, error) {
	if !v.IsValid() {
		return NewNil(), nil
	}
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > MaxDepth {
		return nil, ErrDepthExceeded
	}

	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return NewNil(), nil
		}
		v = v.Elem()
	}

	switch v.Type() {
	case idType:
		return NewIDNode(v.Interface().(ID)), nil
	case timeType:
		return NewTime(v.Interface().(time.Time)), nil
	case listType:
		return e.list(v.Interface().(*List))
	case dictType:
		return e.dict(v.Interface().(*Map))
	case setType:
		return e.set(v.Interface().(*Set))
	}
	if n, ok, err := encodeText(v); ok {
		return n, err
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return NewNil(), nil
		}
		if ti, ok := Lookup(v.Type().Elem()); ok {
			return e.object(v.Convert(reflect.PointerTo(ti.typ)), ti)
		}
		return e.encode(v.Elem())
	case reflect.Struct:
		ti, ok := Lookup(v.Type())
		if !ok {
			return nil, unsupported(v.Type())
		}
		// A struct value has no identity of its own.
		ptr := reflect.New(ti.typ)
		ptr.Elem().Set(v)
		return e.body(ptr.Interface(), ti, NewObject(ti.name))
	case reflect.Bool:
		return NewBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedType, u)
		}
		return NewInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return NewFloat(v.Float()), nil
	case reflect.String:
		return NewString(v.String()), nil
	case reflect.Slice:
		if v.IsNil() {
			return NewNil(), nil
		}
		return e.seq(v)
	case reflect.Array:
		return e.seq(v)
	case reflect.Map:
		if v.IsNil() {
			return NewNil(), nil
		}
		return e.nativeMap(v)
	}
	return nil, unsupported(v.Type())
}

func unsupported(t reflect.Type) error {
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return fmt.Errorf("%w: %s is not registered, see RegisterText", ErrUnsupportedType, t)
	}
	if t.Kind() == reflect.Struct {
		return fmt.Errorf("%w: %s is not registered", ErrUnsupportedType, t)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// object writes a registered instance, anchoring it on first sight and
// aliasing it afterwards.
func (e *encoder) object(ptr reflect.Value, ti *TypeInfo) (*Node, error) {
	obj := ptr.Interface()
	node := NewObject(ti.name)
	if ti.aliases {
		if entry, ok := e.frame.dump.lookup(obj); ok {
			return e.frame.dump.alias(entry), nil
		}
		if _, err := e.frame.dump.register(obj, ti.name, node); err != nil {
			return nil, err
		}
	} else {
		e.frame.dump.stats.objects++
	}
	return e.body(obj, ti, node)
}

func (e *encoder) body(obj any, ti *TypeInfo, node *Node) (*Node, error) {
	if err := ti.ForSerialize(e.ctx, obj, newDumpContainer(e, node), nil); err != nil {
		return nil, err
	}
	return node, nil
}

// track returns an alias for an already anchored container, or registers
// node as its anchor.
func (e *encoder) track(ptr any, node *Node) (*Node, bool, error) {
	if entry, ok := e.frame.dump.lookup(ptr); ok {
		return e.frame.dump.alias(entry), true, nil
	}
	_, err := e.frame.dump.register(ptr, node.Type, node)
	return nil, false, err
}

func (e *encoder) list(l *List) (*Node, error) {
	if l == nil {
		return NewNil(), nil
	}
	node := &Node{Kind: KindList, Type: TypeList}
	if alias, ok, err := e.track(l, node); ok || err != nil {
		return alias, err
	}
	for _, item := range l.items {
		n, err := e.encode(reflect.ValueOf(item))
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, n)
	}
	return node, nil
}

func (e *encoder) set(s *Set) (*Node, error) {
	if s == nil {
		return NewNil(), nil
	}
	node := &Node{Kind: KindSet, Type: TypeSet}
	if alias, ok, err := e.track(s, node); ok || err != nil {
		return alias, err
	}
	for _, item := range s.items {
		n, err := e.encode(reflect.ValueOf(item))
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, n)
	}
	return node, nil
}

func (e *encoder) dict(m *Map) (*Node, error) {
	if m == nil {
		return NewNil(), nil
	}
	node := &Node{Kind: KindDict, Type: TypeMap}
	if alias, ok, err := e.track(m, node); ok || err != nil {
		return alias, err
	}
	for _, k := range m.keys {
		kn, err := e.encode(reflect.ValueOf(k))
		if err != nil {
			return nil, err
		}
		vn, err := e.encode(reflect.ValueOf(m.values[k]))
		if err != nil {
			return nil, err
		}
		node.Entries = append(node.Entries, Entry{Key: kn, Value: vn})
	}
	return node, nil
}

func (e *encoder) seq(v reflect.Value) (*Node, error) {
	node := &Node{Kind: KindSeq, Items: make([]*Node, 0, v.Len())}
	for i := 0; i < v.Len(); i++ {
		n, err := e.encode(v.Index(i))
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, n)
	}
	return node, nil
}

// nativeMap writes map entries sorted by key so output is deterministic.
func (e *encoder) nativeMap(v reflect.Value) (*Node, error) {
	keys := v.MapKeys()
	sort.SliceStable(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	node := &Node{Kind: KindMap, Entries: make([]Entry, 0, len(keys))}
	for _, k := range keys {
		kn, err := e.encode(k)
		if err != nil {
			return nil, err
		}
		vn, err := e.encode(v.MapIndex(k))
		if err != nil {
			return nil, err
		}
		node.Entries = append(node.Entries, Entry{Key: kn, Value: vn})
	}
	return node, nil
}

func keyLess(a, b reflect.Value) bool {
	for a.IsValid() && a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	for b.IsValid() && b.Kind() == reflect.Interface {
		b = b.Elem()
	}
	if !a.IsValid() || !b.IsValid() {
		return !a.IsValid() && b.IsValid()
	}
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	case reflect.String:
		return a.String() < b.String()
	case reflect.Bool:
		return !a.Bool() && b.Bool()
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}

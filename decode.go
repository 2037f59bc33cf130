package firm

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// decoder restores a value graph from a Node tree.
type decoder struct {
	ctx   context.Context
	frame *frame
	depth int
}

// fromNode loads n within a new session frame. Every type named in n is
// checked against allowed before anything is constructed.
func fromNode(ctx context.Context, n *Node, allowed map[string]struct{}) (any, stats, error) {
	if n == nil {
		return nil, stats{}, newCorruptError("", "empty document", nil)
	}
	if err := checkAllowed(n, allowed); err != nil {
		return nil, stats{}, err
	}

	f := loadFrame(allowed)
	ctx, leave := enter(ctx, f)
	defer leave()

	dec := &decoder{ctx: ctx, frame: f}
	v, err := dec.decode(n)
	if err == nil {
		err = f.load.verify()
	}
	if err != nil {
		return nil, f.load.stats, err
	}
	return v, f.load.stats, nil
}

// checkAllowed rejects documents naming a type outside allowed.
func checkAllowed(root *Node, allowed map[string]struct{}) error {
	return root.Walk(func(n *Node) error {
		switch n.Kind {
		case KindObject, KindAlias, KindList, KindDict, KindSet, KindText:
			if _, ok := allowed[n.Type]; !ok {
				return &SecurityError{TypeName: n.Type}
			}
		}
		return nil
	})
}

func (d *decoder) decode(n *Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxDepth {
		return nil, ErrDepthExceeded
	}

	switch n.Kind {
	case KindNil:
		return nil, nil
	case KindBool:
		return scalar[bool](n)
	case KindInt:
		return scalar[int64](n)
	case KindFloat:
		return scalar[float64](n)
	case KindString:
		return scalar[string](n)
	case KindID:
		return scalar[ID](n)
	case KindTime:
		return scalar[time.Time](n)
	case KindSeq:
		out := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			v, err := d.decode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case KindMap:
		return d.nativeMap(n)
	case KindList, KindDict, KindSet:
		return d.container(n)
	case KindObject:
		return d.object(n)
	case KindAlias:
		return d.alias(n)
	case KindText:
		if err := d.permit(n.Type); err != nil {
			return nil, err
		}
		return decodeText(n)
	}
	return nil, newCorruptError("", fmt.Sprintf("unknown node kind %s", n.Kind), nil)
}

func scalar[T any](n *Node) (any, error) {
	v, ok := n.Value.(T)
	if !ok {
		return nil, newCorruptError("", fmt.Sprintf("%s node holds %T", n.Kind, n.Value), nil)
	}
	return v, nil
}

// nativeMap restores a map[string]any when every key is a string and a
// map[any]any otherwise.
func (d *decoder) nativeMap(n *Node) (any, error) {
	keys := make([]any, len(n.Entries))
	allStrings := true
	for i, e := range n.Entries {
		k, err := d.decode(e.Key)
		if err != nil {
			return nil, err
		}
		if _, ok := k.(string); !ok {
			allStrings = false
		}
		if !hashable(k) {
			return nil, newCorruptError("", fmt.Sprintf("map key of type %T", k), nil)
		}
		keys[i] = k
	}
	if allStrings {
		out := make(map[string]any, len(keys))
		for i, e := range n.Entries {
			v, err := d.decode(e.Value)
			if err != nil {
				return nil, err
			}
			out[keys[i].(string)] = v
		}
		return out, nil
	}
	out := make(map[any]any, len(keys))
	for i, e := range n.Entries {
		v, err := d.decode(e.Value)
		if err != nil {
			return nil, err
		}
		out[keys[i]] = v
	}
	return out, nil
}

func containerName(k Kind) string {
	switch k {
	case KindList:
		return TypeList
	case KindDict:
		return TypeMap
	default:
		return TypeSet
	}
}

func allocContainer(typeName string) func() any {
	switch typeName {
	case TypeList:
		return func() any { return &List{} }
	case TypeMap:
		return func() any { return NewMap() }
	case TypeSet:
		return func() any { return &Set{index: make(map[any]struct{})} }
	}
	return nil
}

func (d *decoder) container(n *Node) (any, error) {
	name := containerName(n.Kind)
	if err := d.permit(name); err != nil {
		return nil, err
	}
	alloc := allocContainer(name)

	inst, err := d.instance(name, n.Anchor, alloc)
	if err != nil {
		return nil, err
	}

	switch c := inst.(type) {
	case *List:
		for _, item := range n.Items {
			v, err := d.decode(item)
			if err != nil {
				return nil, err
			}
			c.items = append(c.items, v)
		}
	case *Set:
		for _, item := range n.Items {
			v, err := d.decode(item)
			if err != nil {
				return nil, err
			}
			if _, err := c.Add(v); err != nil {
				return nil, newCorruptError("", "invalid set member", err)
			}
		}
	case *Map:
		for _, e := range n.Entries {
			k, err := d.decode(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := d.decode(e.Value)
			if err != nil {
				return nil, err
			}
			if err := c.Put(k, v); err != nil {
				return nil, newCorruptError("", "invalid map key", err)
			}
		}
	}
	return inst, nil
}

// permit checks name against the security scope of the current frame.
func (d *decoder) permit(name string) error {
	if _, ok := d.frame.allowed[name]; !ok {
		return &SecurityError{TypeName: name}
	}
	return nil
}

func (d *decoder) object(n *Node) (any, error) {
	if err := d.permit(n.Type); err != nil {
		return nil, err
	}
	ti, ok := LookupName(n.Type)
	if !ok {
		return nil, &SecurityError{TypeName: n.Type}
	}

	inst, err := d.instance(ti.name, n.Anchor, ti.Allocate)
	if err != nil {
		return nil, err
	}
	d.frame.load.stats.objects++

	c := newLoadContainer(d, n)
	built, ok, err := ti.Build(d.ctx, c)
	switch {
	case err != nil:
		return nil, err
	case ok:
		bv := reflect.ValueOf(built)
		if bv.Type() != reflect.PointerTo(ti.typ) {
			return nil, newConfigError(ti.name, "", fmt.Sprintf("factory returned %T", built))
		}
		reflect.ValueOf(inst).Elem().Set(bv.Elem())
	default:
		if err := ti.FromSerialized(d.ctx, inst, c); err != nil {
			return nil, err
		}
	}
	if err := c.drain(); err != nil {
		return nil, err
	}
	if err := ti.FinalizeFromSerialized(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// instance returns the instance an anchored node populates, or a fresh one
// for an unanchored node.
func (d *decoder) instance(typeName string, anchor int, alloc func() any) (any, error) {
	if anchor == 0 {
		return alloc(), nil
	}
	return d.frame.load.claim(typeName, anchor, alloc)
}

func (d *decoder) alias(n *Node) (any, error) {
	if n.Ref <= 0 {
		return nil, newCorruptError("", fmt.Sprintf("invalid alias %d of %s", n.Ref, n.Type), nil)
	}
	if err := d.permit(n.Type); err != nil {
		return nil, err
	}
	alloc := allocContainer(n.Type)
	if alloc == nil {
		ti, ok := LookupName(n.Type)
		if !ok {
			return nil, &SecurityError{TypeName: n.Type}
		}
		if !ti.aliases {
			return nil, newCorruptError("", fmt.Sprintf("alias to %s which is registered without aliases", n.Type), nil)
		}
		alloc = ti.Allocate
	}
	return d.frame.load.resolve(n.Type, n.Ref, alloc), nil
}

package firm

import (
	"context"
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"unicode"

	"github.com/zoobzio/sentinel"
)

func init() {
	sentinel.Tag(tagName)
}

// tagName is the struct tag declaring persisted fields: `firm:"id[,omitempty][,force]"`.
const tagName = "firm"

var errorType = reflect.TypeFor[error]()

// taggedField is a struct field carrying a firm tag.
type taggedField struct {
	id    string
	index []int
	opts  []PropertyOption
}

// scanTagged collects the firm-tagged fields of T in declaration order.
func scanTagged[T any]() []taggedField {
	meta := sentinel.Scan[T]()
	var out []taggedField
	for _, field := range meta.Fields {
		tag, ok := field.Tags[tagName]
		if !ok || tag == "" || tag == "-" || !token.IsExported(field.Name) {
			continue
		}
		parts := strings.Split(tag, ",")
		tf := taggedField{id: parts[0], index: field.Index}
		for _, opt := range parts[1:] {
			switch strings.TrimSpace(opt) {
			case "omitempty", "omitzero":
				tf.opts = append(tf.opts, OmitZero())
			case "optional":
				tf.opts = append(tf.opts, Optional(nil))
			case "force":
				tf.opts = append(tf.opts, Force())
			}
		}
		if tf.id == "" {
			tf.id = field.Name
		}
		out = append(out, tf)
	}
	return out
}

// exportedName maps a property id to the Go identifier searched for by
// convention: "tax_id" becomes "TaxId", "colour" becomes "Colour".
func exportedName(id string) string {
	var b strings.Builder
	upper := true
	for _, r := range id {
		if r == '_' || r == '-' || r == '.' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveConvention finds the accessors of property id on *typ. The getter
// is method Name() or GetName(), a variadic Name(...V) V, a field tagged
// with id, or exported field Name. The setter is method SetName(v), the
// variadic Name, or the same field. A missing getter is reported on first
// serialize; a missing setter makes restoring a no-op.
func resolveConvention(cfg *typeConfig, id string) (*Property, error) {
	name := exportedName(id)
	pt := reflect.PointerTo(cfg.typ)
	p := &Property{id: id, owner: cfg.name}

	for _, mname := range []string{name, "Get" + name} {
		m, ok := pt.MethodByName(mname)
		if !ok {
			continue
		}
		if get, t, ok := methodGetter(m); ok {
			p.get, p.valueType = get, t
			break
		}
		if mname == name {
			if get, set, t, ok := methodCombined(id, m); ok {
				p.get, p.set, p.valueType = get, set, t
				return p, nil
			}
		}
		return nil, newConfigError(cfg.name, id, fmt.Sprintf("method %s has no getter shape", mname))
	}

	if m, ok := pt.MethodByName("Set" + name); ok {
		set, ok := methodSetter(id, m)
		if !ok {
			return nil, newConfigError(cfg.name, id, fmt.Sprintf("method Set%s has no setter shape", name))
		}
		p.set = set
	} else if m, ok := pt.MethodByName(name); ok {
		if _, set, _, ok := methodCombined(id, m); ok {
			p.set = set
		}
	}

	if p.get != nil && p.set != nil {
		return p, nil
	}

	index, ok := cfg.fieldIndex(id, name)
	if !ok {
		return p, nil
	}
	ft := cfg.typ.FieldByIndex(index).Type
	if p.get == nil {
		p.get, p.valueType = fieldGetter(index), ft
	}
	if p.set == nil {
		p.set = fieldSetter(cfg.name, id, index, ft)
	}
	return p, nil
}

// resolveMethods builds accessors from explicitly named methods.
func resolveMethods(cfg *typeConfig, id, getter, setter string) (*Property, error) {
	pt := reflect.PointerTo(cfg.typ)
	p := &Property{id: id, owner: cfg.name}
	if getter != "" {
		m, ok := pt.MethodByName(getter)
		if !ok {
			return nil, newConfigError(cfg.name, id, fmt.Sprintf("no method %s", getter))
		}
		get, t, ok := methodGetter(m)
		if !ok {
			return nil, newConfigError(cfg.name, id, fmt.Sprintf("method %s has no getter shape", getter))
		}
		p.get, p.valueType = get, t
	}
	if setter != "" {
		m, ok := pt.MethodByName(setter)
		if !ok {
			return nil, newConfigError(cfg.name, id, fmt.Sprintf("no method %s", setter))
		}
		set, ok := methodSetter(id, m)
		if !ok {
			return nil, newConfigError(cfg.name, id, fmt.Sprintf("method %s has no setter shape", setter))
		}
		p.set = set
	}
	return p, nil
}

// resolveCombinedMethod builds accessors from a variadic Name(...V) V method.
func resolveCombinedMethod(cfg *typeConfig, id, method string) (*Property, error) {
	m, ok := reflect.PointerTo(cfg.typ).MethodByName(method)
	if !ok {
		return nil, newConfigError(cfg.name, id, fmt.Sprintf("no method %s", method))
	}
	get, set, t, ok := methodCombined(id, m)
	if !ok {
		return nil, newConfigError(cfg.name, id, fmt.Sprintf("method %s must have the shape func(...V) V", method))
	}
	return &Property{id: id, owner: cfg.name, get: get, set: set, valueType: t}, nil
}

// methodGetter accepts func() V and func() (V, error).
func methodGetter(m reflect.Method) (getterFunc, reflect.Type, bool) {
	mt := m.Type
	if mt.NumIn() != 1 {
		return nil, nil, false
	}
	withErr := false
	switch {
	case mt.NumOut() == 1:
	case mt.NumOut() == 2 && mt.Out(1) == errorType:
		withErr = true
	default:
		return nil, nil, false
	}
	fn := m.Func
	get := func(_ context.Context, obj any) (any, error) {
		out := fn.Call([]reflect.Value{reflect.ValueOf(obj)})
		if withErr && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
	return get, mt.Out(0), true
}

// methodSetter accepts func(V) and func(V) error.
func methodSetter(id string, m reflect.Method) (setterFunc, bool) {
	mt := m.Type
	if mt.NumIn() != 2 || mt.IsVariadic() {
		return nil, false
	}
	withErr := false
	switch {
	case mt.NumOut() == 0:
	case mt.NumOut() == 1 && mt.Out(0) == errorType:
		withErr = true
	default:
		return nil, false
	}
	fn := m.Func
	set := typedSetter(id, mt.In(1), func(_ context.Context, obj any, v reflect.Value) error {
		out := fn.Call([]reflect.Value{reflect.ValueOf(obj), v})
		if withErr && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	})
	return set, true
}

// methodCombined accepts func(...V) V: called without arguments it gets,
// with one argument it sets.
func methodCombined(id string, m reflect.Method) (getterFunc, setterFunc, reflect.Type, bool) {
	mt := m.Type
	if mt.NumIn() != 2 || !mt.IsVariadic() || mt.NumOut() != 1 {
		return nil, nil, nil, false
	}
	vt := mt.In(1).Elem()
	fn := m.Func
	get := func(_ context.Context, obj any) (any, error) {
		out := fn.CallSlice([]reflect.Value{reflect.ValueOf(obj), reflect.MakeSlice(mt.In(1), 0, 0)})
		return out[0].Interface(), nil
	}
	set := typedSetter(id, vt, func(_ context.Context, obj any, v reflect.Value) error {
		fn.Call([]reflect.Value{reflect.ValueOf(obj), v})
		return nil
	})
	return get, set, mt.Out(0), true
}

func fieldGetter(index []int) getterFunc {
	return func(_ context.Context, obj any) (any, error) {
		f, err := reflect.ValueOf(obj).Elem().FieldByIndexErr(index)
		if err != nil {
			return nil, nil
		}
		return f.Interface(), nil
	}
}

func fieldSetter(owner, id string, index []int, t reflect.Type) setterFunc {
	return typedSetter(id, t, func(_ context.Context, obj any, v reflect.Value) error {
		f, err := reflect.ValueOf(obj).Elem().FieldByIndexErr(index)
		if err != nil {
			return newCorruptError(owner+"."+id, "cannot reach field", err)
		}
		f.Set(v)
		return nil
	})
}

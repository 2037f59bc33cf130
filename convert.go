package firm

import (
	"encoding"
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// convert turns a restored value into a value of type t.
func convert(raw any, t reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(t) {
		v := reflect.New(t).Elem()
		v.Set(rv)
		return v, nil
	}
	if t.Kind() == reflect.Interface {
		return reflect.Value{}, fmt.Errorf("%T does not implement %s", raw, t)
	}

	if s, ok := raw.(string); ok && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		v := reflect.New(t)
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return v.Elem(), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			return reflect.ValueOf(b).Convert(t), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return convertInt(raw, t)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return convertUint(raw, t)
	case reflect.Float32, reflect.Float64:
		switch n := raw.(type) {
		case float64:
			return reflect.ValueOf(n).Convert(t), nil
		case int64:
			return reflect.ValueOf(float64(n)).Convert(t), nil
		}
	case reflect.Complex64, reflect.Complex128:
		switch n := raw.(type) {
		case complex128:
			return reflect.ValueOf(n).Convert(t), nil
		case float64:
			return reflect.ValueOf(complex(n, 0)).Convert(t), nil
		case int64:
			return reflect.ValueOf(complex(float64(n), 0)).Convert(t), nil
		}
	case reflect.String:
		if s, ok := raw.(string); ok {
			return reflect.ValueOf(s).Convert(t), nil
		}
	case reflect.Pointer:
		elem, err := convert(raw, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	case reflect.Slice:
		return convertSlice(raw, t)
	case reflect.Array:
		items, ok := sequence(raw)
		if !ok {
			break
		}
		if len(items) != t.Len() {
			return reflect.Value{}, fmt.Errorf("sequence of %d items for %s", len(items), t)
		}
		out := reflect.New(t).Elem()
		for i, item := range items {
			v, err := convert(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out.Index(i).Set(v)
		}
		return out, nil
	case reflect.Map:
		return convertMap(raw, t)
	case reflect.Struct:
		// A restored registered instance or text value arrives as *T.
		if rv.Kind() == reflect.Pointer && rv.Type().Elem() == t {
			if rv.IsNil() {
				return reflect.Zero(t), nil
			}
			return rv.Elem(), nil
		}
		if isMap(raw) {
			out := reflect.New(t)
			if err := mapstructure.WeakDecode(raw, out.Interface()); err != nil {
				return reflect.Value{}, err
			}
			return out.Elem(), nil
		}
	}

	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, t)
}

func convertInt(raw any, t reflect.Type) (reflect.Value, error) {
	var i int64
	switch n := raw.(type) {
	case int64:
		i = n
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return reflect.Value{}, fmt.Errorf("%v is not an integer", n)
		}
		i = int64(n)
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, t)
	}
	v := reflect.New(t).Elem()
	if v.OverflowInt(i) {
		return reflect.Value{}, fmt.Errorf("%d overflows %s", i, t)
	}
	v.SetInt(i)
	return v, nil
}

func convertUint(raw any, t reflect.Type) (reflect.Value, error) {
	var u uint64
	switch n := raw.(type) {
	case int64:
		if n < 0 {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		u = uint64(n)
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return reflect.Value{}, fmt.Errorf("%v is not an unsigned integer", n)
		}
		u = uint64(n)
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, t)
	}
	v := reflect.New(t).Elem()
	if v.OverflowUint(u) {
		return reflect.Value{}, fmt.Errorf("%d overflows %s", u, t)
	}
	v.SetUint(u)
	return v, nil
}

func convertSlice(raw any, t reflect.Type) (reflect.Value, error) {
	if s, ok := raw.(string); ok && t.Elem().Kind() == reflect.Uint8 {
		return reflect.ValueOf([]byte(s)).Convert(t), nil
	}
	items, ok := sequence(raw)
	if !ok {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, t)
	}
	out := reflect.MakeSlice(t, 0, len(items))
	for i, item := range items {
		v, err := convert(item, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		out = reflect.Append(out, v)
	}
	return out, nil
}

func convertMap(raw any, t reflect.Type) (reflect.Value, error) {
	out := reflect.MakeMap(t)
	put := func(k, v any) error {
		kv, err := convert(k, t.Key())
		if err != nil {
			return fmt.Errorf("key %v: %w", k, err)
		}
		vv, err := convert(v, t.Elem())
		if err != nil {
			return fmt.Errorf("value of %v: %w", k, err)
		}
		out.SetMapIndex(kv, vv)
		return nil
	}
	var err error
	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			if err = put(k, v); err != nil {
				break
			}
		}
	case map[any]any:
		for k, v := range m {
			if err = put(k, v); err != nil {
				break
			}
		}
	case *Map:
		m.Range(func(k, v any) bool {
			err = put(k, v)
			return err == nil
		})
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, t)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// sequence returns the items of a restored sequence, list or set.
func sequence(raw any) ([]any, bool) {
	switch s := raw.(type) {
	case []any:
		return s, true
	case *List:
		return s.items, true
	case *Set:
		return s.items, true
	}
	return nil, false
}

func isMap(raw any) bool {
	switch raw.(type) {
	case map[string]any, map[any]any:
		return true
	}
	return false
}

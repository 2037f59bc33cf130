package firm

import (
	"context"
	"reflect"
)

// getterFunc reads a property value from an instance (*T).
type getterFunc func(ctx context.Context, obj any) (any, error)

// setterFunc restores a property value on an instance (*T).
type setterFunc func(ctx context.Context, obj any, raw any) error

// Property describes one persisted attribute of a registered type.
type Property struct {
	id        string
	owner     string
	valueType reflect.Type // nil when the accessor takes untyped values
	get       getterFunc   // nil when no getter could be resolved
	set       setterFunc   // nil means restoring is a no-op

	optional bool
	def      any
	defFunc  func(obj any, id string) any
	omitZero bool
	force    bool
}

// PropertyOption configures a Property.
type PropertyOption func(*Property)

// Optional omits the property when its value equals def.
// Optional(nil) omits nil values.
func Optional(def any) PropertyOption {
	return func(p *Property) {
		p.optional = true
		p.def = def
	}
}

// OptionalFunc omits the property when its value equals the default
// computed by fn for the instance being serialized.
func OptionalFunc(fn func(obj any, id string) any) PropertyOption {
	return func(p *Property) {
		p.optional = true
		p.defFunc = fn
	}
}

// OmitZero omits the property when its value is the zero value of its type.
func OmitZero() PropertyOption {
	return func(p *Property) {
		p.omitZero = true
	}
}

// Force serializes the property even when its value has serialization disabled.
func Force() PropertyOption {
	return func(p *Property) {
		p.force = true
	}
}

// ID returns the property id.
func (p *Property) ID() string { return p.id }

// Forced reports whether the property overrides disabled serialization.
func (p *Property) Forced() bool { return p.force }

// Optional reports whether the property may be omitted.
func (p *Property) Optional() bool { return p.optional || p.omitZero }

// Get reads the property value of obj.
func (p *Property) Get(ctx context.Context, obj any) (any, error) {
	if p.get == nil {
		return nil, &AccessError{Type: p.owner, Property: p.id}
	}
	return p.get(ctx, obj)
}

// Serialize writes the property value of obj into c unless the property is
// excluded, optional and at its default, or disabled and not forced.
func (p *Property) Serialize(ctx context.Context, obj any, c Container, excludes map[string]struct{}) error {
	if _, ok := excludes[p.id]; ok {
		return nil
	}
	v, err := p.Get(ctx, obj)
	if err != nil {
		return err
	}
	if p.isDefault(obj, v) {
		return nil
	}
	if !p.force && isDisabled(v) {
		return nil
	}
	return c.Set(p.id, withoutDisabled(v))
}

// Deserialize restores the property of obj from c. Absent properties are
// left untouched and the setter is not called.
func (p *Property) Deserialize(ctx context.Context, obj any, c Container) error {
	if !c.Has(p.id) || p.set == nil {
		return nil
	}
	raw, err := c.Get(p.id)
	if err != nil {
		return err
	}
	return p.set(ctx, obj, raw)
}

func (p *Property) isDefault(obj any, v any) bool {
	if p.omitZero {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.IsZero() {
			return true
		}
	}
	if !p.optional {
		return false
	}
	def := p.def
	if p.defFunc != nil {
		def = p.defFunc(obj, p.id)
	}
	return equalValues(def, v)
}

// equalValues compares a default with a property value, converting the
// default to the value's type first so Optional(0) matches a float64 zero.
func equalValues(def, v any) bool {
	if def == nil || v == nil {
		if def == nil && v == nil {
			return true
		}
		rv := reflect.ValueOf(v)
		if def == nil {
			return nilable(rv) && rv.IsNil()
		}
		return false
	}
	rv := reflect.ValueOf(v)
	dv := reflect.ValueOf(def)
	if dv.Type() != rv.Type() {
		cv, err := convert(def, rv.Type())
		if err != nil {
			return false
		}
		dv = cv
	}
	return reflect.DeepEqual(dv.Interface(), rv.Interface())
}

func nilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// typedSetter wraps a setter taking a concrete value type, converting the
// restored value first.
func typedSetter(id string, t reflect.Type, fn func(ctx context.Context, obj any, v reflect.Value) error) setterFunc {
	return func(ctx context.Context, obj any, raw any) error {
		v, err := convert(raw, t)
		if err != nil {
			return newCorruptError(id, "cannot restore property", err)
		}
		return fn(ctx, obj, v)
	}
}

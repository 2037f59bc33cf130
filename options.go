package firm

import (
	"context"
	"fmt"
	"reflect"
)

// Option configures a type during Register.
type Option func(*typeConfig) error

// WithName sets the wire name of the type. The default is the Go type name.
func WithName(name string) Option {
	return func(cfg *typeConfig) error {
		cfg.name = name
		return nil
	}
}

// WithProperties declares properties resolved by convention.
// See WithProperty for the lookup rules.
func WithProperties(ids ...string) Option {
	return func(cfg *typeConfig) error {
		for _, id := range ids {
			if err := WithProperty(id)(cfg); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithProperty declares a single property resolved by convention: for id
// "tax_id" the getter is method TaxId() or GetTaxId(), the setter is method
// SetTaxId(v), a variadic method TaxId(...V) V serves both, and otherwise
// the field tagged `firm:"tax_id"` or exported field TaxId is used.
func WithProperty(id string, opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		if err := validPropertyID(id); err != nil {
			return newConfigError(cfg.name, id, err.Error())
		}
		p, err := resolveConvention(cfg, id)
		if err != nil {
			return err
		}
		return cfg.addProperty(p, opts)
	}
}

// WithTagged declares every field tagged `firm:"id"` as a property, in
// field order. Tag options omitempty, optional and force map to OmitZero,
// Optional(nil) and Force.
func WithTagged() Option {
	return func(cfg *typeConfig) error {
		for _, tf := range cfg.tagged {
			ft := cfg.typ.FieldByIndex(tf.index).Type
			p := &Property{
				id:        tf.id,
				owner:     cfg.name,
				valueType: ft,
				get:       fieldGetter(tf.index),
				set:       fieldSetter(cfg.name, tf.id, tf.index, ft),
			}
			if err := cfg.addProperty(p, tf.opts); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithAccessor declares a property with explicit getter and setter
// functions. A nil setter makes restoring a no-op.
func WithAccessor[T, V any](id string, get func(*T) V, set func(*T, V), opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[T](), id); err != nil {
			return err
		}
		if get == nil {
			return newConfigError(cfg.name, id, "nil getter")
		}
		vt := reflect.TypeFor[V]()
		p := &Property{
			id:        id,
			owner:     cfg.name,
			valueType: vt,
			get: func(_ context.Context, obj any) (any, error) {
				return get(obj.(*T)), nil
			},
		}
		if set != nil {
			p.set = typedSetter(id, vt, func(_ context.Context, obj any, v reflect.Value) error {
				set(obj.(*T), v.Interface().(V))
				return nil
			})
		}
		return cfg.addProperty(p, opts)
	}
}

// WithAccessorContext declares a property whose accessors receive the
// context of the running dump or load and may fail.
func WithAccessorContext[T, V any](id string, get func(context.Context, *T) (V, error), set func(context.Context, *T, V) error, opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[T](), id); err != nil {
			return err
		}
		if get == nil {
			return newConfigError(cfg.name, id, "nil getter")
		}
		vt := reflect.TypeFor[V]()
		p := &Property{
			id:        id,
			owner:     cfg.name,
			valueType: vt,
			get: func(ctx context.Context, obj any) (any, error) {
				return get(ctx, obj.(*T))
			},
		}
		if set != nil {
			p.set = typedSetter(id, vt, func(ctx context.Context, obj any, v reflect.Value) error {
				return set(ctx, obj.(*T), v.Interface().(V))
			})
		}
		return cfg.addProperty(p, opts)
	}
}

// WithMethods declares a property accessed through the named methods of *T.
// An empty setter name makes restoring a no-op.
func WithMethods(id, getter, setter string, opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		if getter == "" {
			return newConfigError(cfg.name, id, "empty getter name")
		}
		p, err := resolveMethods(cfg, id, getter, setter)
		if err != nil {
			return err
		}
		return cfg.addProperty(p, opts)
	}
}

// WithCombined declares a property accessed through one function: called
// without a value it returns the current value, called with one it sets it.
func WithCombined[T, V any](id string, fn func(*T, ...V) V, opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[T](), id); err != nil {
			return err
		}
		if fn == nil {
			return newConfigError(cfg.name, id, "nil accessor")
		}
		vt := reflect.TypeFor[V]()
		p := &Property{
			id:        id,
			owner:     cfg.name,
			valueType: vt,
			get: func(_ context.Context, obj any) (any, error) {
				return fn(obj.(*T)), nil
			},
			set: typedSetter(id, vt, func(_ context.Context, obj any, v reflect.Value) error {
				fn(obj.(*T), v.Interface().(V))
				return nil
			}),
		}
		return cfg.addProperty(p, opts)
	}
}

// WithMethod declares a property accessed through a variadic method of *T
// with the shape func(...V) V.
func WithMethod(id, method string, opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		p, err := resolveCombinedMethod(cfg, id, method)
		if err != nil {
			return err
		}
		return cfg.addProperty(p, opts)
	}
}

// Handler serves several properties of *T. Called without val it returns
// the value of property id; called with one value it restores it. Restored
// values are passed as loaded; use As to convert them.
type Handler[T any] func(ctx context.Context, obj *T, id string, val ...any) (any, error)

// WithHandler declares the properties ids, all served by fn.
func WithHandler[T any](fn Handler[T], ids []string, opts ...PropertyOption) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[T](), ""); err != nil {
			return err
		}
		if fn == nil {
			return newConfigError(cfg.name, "", "nil handler")
		}
		if len(ids) == 0 {
			return newConfigError(cfg.name, "", "handler without properties")
		}
		for _, id := range ids {
			pid := id
			p := &Property{
				id:    pid,
				owner: cfg.name,
				get: func(ctx context.Context, obj any) (any, error) {
					return fn(ctx, obj.(*T), pid)
				},
				set: func(ctx context.Context, obj any, raw any) error {
					_, err := fn(ctx, obj.(*T), pid, raw)
					return err
				},
			}
			if err := cfg.addProperty(p, opts); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithExcludes drops inherited properties from the serialized output of
// this type and its descendants.
func WithExcludes(ids ...string) Option {
	return func(cfg *typeConfig) error {
		cfg.excludes = append(cfg.excludes, ids...)
		return nil
	}
}

// WithFinalizer sets the function run once after an instance has been
// fully restored. It overrides a FinalizeFromSerialized method; a nil fn
// disables finalizing for this type, including any inherited finalizer.
func WithFinalizer[T any](fn func(*T) error) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[T](), ""); err != nil {
			return err
		}
		cfg.finalizerSet = true
		if fn == nil {
			cfg.finalizer = nil
			return nil
		}
		cfg.finalizer = func(obj any) error {
			return fn(obj.(*T))
		}
		return nil
	}
}

// WithoutAliases writes every occurrence of an instance in full instead of
// anchoring it once and referring to it by alias.
func WithoutAliases() Option {
	return func(cfg *typeConfig) error {
		cfg.noAliases = true
		return nil
	}
}

// WithFactory constructs instances directly from restored data instead of
// allocating a zero value and applying properties.
func WithFactory[T any](fn func(ctx context.Context, c Container) (*T, error)) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[T](), ""); err != nil {
			return err
		}
		if fn == nil {
			return newConfigError(cfg.name, "", "nil factory")
		}
		cfg.factory = func(ctx context.Context, c Container) (any, error) {
			obj, err := fn(ctx, c)
			if err != nil {
				return nil, err
			}
			if obj == nil {
				return nil, fmt.Errorf("factory of %s returned nil", cfg.name)
			}
			return obj, nil
		}
		return nil
	}
}

// Extends makes D a derived type of the registered type B. D serializes its
// own properties, then those of B reached through up.
func Extends[D, B any](up func(*D) *B) Option {
	return func(cfg *typeConfig) error {
		if err := cfg.checkType(reflect.TypeFor[D](), ""); err != nil {
			return err
		}
		if up == nil {
			return newConfigError(cfg.name, "", "nil base accessor")
		}
		parent, ok := Lookup(reflect.TypeFor[B]())
		if !ok {
			return newConfigError(cfg.name, "", fmt.Sprintf("base type %s is not registered", reflect.TypeFor[B]()))
		}
		cfg.parent = parent
		cfg.upcast = func(obj any) any {
			return up(obj.(*D))
		}
		return nil
	}
}

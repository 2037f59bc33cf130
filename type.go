package firm

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
)

// Finalizer is implemented by types that complete their restoration after
// all properties have been set. It is resolved once at registration.
type Finalizer interface {
	FinalizeFromSerialized() error
}

// TypeInfo holds the registered serialization behavior of one type.
// It is immutable once Register returns.
type TypeInfo struct {
	name      string
	typ       reflect.Type
	props     []*Property
	excludes  map[string]struct{}
	aliases   bool
	finalizer func(obj any) error
	factory   func(ctx context.Context, c Container) (any, error)
	parent    *TypeInfo
	upcast    func(obj any) any

	noFinalizer bool
	finalize    func(obj any) error // resolved over the chain at registration
}

// Name returns the wire name of the type.
func (ti *TypeInfo) Name() string { return ti.name }

// Type returns the registered struct type.
func (ti *TypeInfo) Type() reflect.Type { return ti.typ }

// Parent returns the registered base type, or nil.
func (ti *TypeInfo) Parent() *TypeInfo { return ti.parent }

// Properties returns the properties declared by this type, excluding
// inherited ones.
func (ti *TypeInfo) Properties() []*Property {
	return append([]*Property(nil), ti.props...)
}

// AllowsAliases reports whether instances take part in anchor/alias tracking.
func (ti *TypeInfo) AllowsAliases() bool { return ti.aliases }

// HasProperty reports whether id is declared by this type or an ancestor.
func (ti *TypeInfo) HasProperty(id string) bool {
	for t := ti; t != nil; t = t.parent {
		for _, p := range t.props {
			if p.id == id {
				return true
			}
		}
	}
	return false
}

// Excludes reports whether this type excludes the inherited property id.
func (ti *TypeInfo) Excludes(id string) bool {
	_, ok := ti.excludes[id]
	return ok
}

// ForSerialize writes the properties of obj into c: own properties first,
// then those of the parent with this type's exclusions added to excludes.
func (ti *TypeInfo) ForSerialize(ctx context.Context, obj any, c Container, excludes map[string]struct{}) error {
	for _, p := range ti.props {
		if err := p.Serialize(ctx, obj, c, excludes); err != nil {
			return err
		}
	}
	if ti.parent == nil {
		return nil
	}
	merged := excludes
	if len(ti.excludes) > 0 {
		merged = make(map[string]struct{}, len(excludes)+len(ti.excludes))
		for id := range excludes {
			merged[id] = struct{}{}
		}
		for id := range ti.excludes {
			merged[id] = struct{}{}
		}
	}
	return ti.parent.ForSerialize(ctx, ti.upcast(obj), c, merged)
}

// FromSerialized restores the properties of obj from c: own properties
// first, then those of the parent.
func (ti *TypeInfo) FromSerialized(ctx context.Context, obj any, c Container) error {
	for _, p := range ti.props {
		if err := p.Deserialize(ctx, obj, c); err != nil {
			return err
		}
	}
	if ti.parent == nil {
		return nil
	}
	return ti.parent.FromSerialized(ctx, ti.upcast(obj), c)
}

// FindFinalizer returns the finalizer of the nearest type in the chain that
// defines one, bound to obj's view of that type, or nil. A type registered
// with a nil WithFinalizer stops the search.
func (ti *TypeInfo) FindFinalizer() func(obj any) error {
	return ti.finalize
}

// resolveFinalizer binds the finalizer of ti once its parent is resolved.
func (ti *TypeInfo) resolveFinalizer() {
	switch {
	case ti.finalizer != nil:
		ti.finalize = ti.finalizer
	case ti.noFinalizer || ti.parent == nil || ti.parent.finalize == nil:
		ti.finalize = nil
	default:
		up, fin := ti.upcast, ti.parent.finalize
		ti.finalize = func(obj any) error {
			return fin(up(obj))
		}
	}
}

// FinalizeFromSerialized runs the finalizer resolved for obj, if any.
func (ti *TypeInfo) FinalizeFromSerialized(obj any) error {
	if ti.finalize != nil {
		return ti.finalize(obj)
	}
	return nil
}

// Allocate returns a new zero instance (*T).
func (ti *TypeInfo) Allocate() any {
	return reflect.New(ti.typ).Interface()
}

// Build constructs an instance from c using the registered factory.
// It reports false when the type has no factory.
func (ti *TypeInfo) Build(ctx context.Context, c Container) (any, bool, error) {
	if ti.factory == nil {
		return nil, false, nil
	}
	obj, err := ti.factory(ctx, c)
	return obj, true, err
}

// typeConfig accumulates options during Register.
type typeConfig struct {
	name      string
	typ       reflect.Type
	tagged    []taggedField
	props     []*Property
	excludes  []string
	noAliases bool
	finalizer func(obj any) error
	factory   func(ctx context.Context, c Container) (any, error)
	parent    *TypeInfo
	upcast    func(obj any) any

	finalizerSet bool
}

func (cfg *typeConfig) fieldIndex(id, name string) ([]int, bool) {
	for _, tf := range cfg.tagged {
		if tf.id == id {
			return tf.index, true
		}
	}
	f, ok := cfg.typ.FieldByName(name)
	if !ok || !f.IsExported() {
		return nil, false
	}
	return f.Index, true
}

func (cfg *typeConfig) addProperty(p *Property, opts []PropertyOption) error {
	if err := validPropertyID(p.id); err != nil {
		return newConfigError(cfg.name, p.id, err.Error())
	}
	for _, existing := range cfg.props {
		if existing.id == p.id {
			return newConfigError(cfg.name, p.id, "duplicate property id")
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	cfg.props = append(cfg.props, p)
	return nil
}

// checkType reports a ConfigError when an accessor was declared for a
// different type than the one being registered.
func (cfg *typeConfig) checkType(t reflect.Type, id string) error {
	if t != cfg.typ {
		return newConfigError(cfg.name, id, fmt.Sprintf("accessor declared for %s", t))
	}
	return nil
}

var propertyIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// validPropertyID restricts ids to names valid as map keys in every format
// and as XML element names.
func validPropertyID(id string) error {
	if id == "" {
		return fmt.Errorf("empty property id")
	}
	if !propertyIDPattern.MatchString(id) {
		return fmt.Errorf("invalid property id %q", id)
	}
	return nil
}

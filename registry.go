package firm

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	types   = make(map[reflect.Type]*TypeInfo)
	names   = make(map[string]*TypeInfo)
	typesMu sync.RWMutex
)

var reservedNames = map[string]struct{}{
	TypeList:  {},
	TypeMap:   {},
	TypeSet:   {},
	TypeID:    {},
	TypeTime:  {},
	TypeFloat: {},
	TypePairs: {},

	TypeRational: {},
	TypeBigInt:   {},
	TypeRegexp:   {},
	TypeComplex:  {},
}

// Register declares T serializable. Instances are handled as *T.
// Registering the same type or wire name twice is a configuration error.
func Register[T any](opts ...Option) (*TypeInfo, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, newConfigError(typ.String(), "", "only struct types can be registered")
	}

	cfg := &typeConfig{
		name:   typ.Name(),
		typ:    typ,
		tagged: scanTagged[T](),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := validTypeName(cfg.name); err != nil {
		return nil, newConfigError(typ.String(), "", err.Error())
	}

	ti := &TypeInfo{
		name:      cfg.name,
		typ:       typ,
		props:     cfg.props,
		excludes:  make(map[string]struct{}, len(cfg.excludes)),
		aliases:   !cfg.noAliases,
		finalizer: cfg.finalizer,
		factory:   cfg.factory,
		parent:    cfg.parent,
		upcast:    cfg.upcast,
	}
	for _, id := range cfg.excludes {
		ti.excludes[id] = struct{}{}
	}
	for _, p := range ti.props {
		p.owner = ti.name
		if ti.parent != nil && ti.parent.HasProperty(p.id) {
			return nil, newConfigError(ti.name, p.id, "property already declared by base type")
		}
	}
	if ti.parent != nil && !ti.parent.aliases {
		ti.aliases = false
	}
	if cfg.finalizerSet {
		ti.noFinalizer = cfg.finalizer == nil
	} else if _, ok := reflect.New(typ).Interface().(Finalizer); ok {
		ti.finalizer = func(obj any) error {
			return obj.(Finalizer).FinalizeFromSerialized()
		}
	}
	ti.resolveFinalizer()

	typesMu.Lock()
	defer typesMu.Unlock()

	if _, ok := types[typ]; ok {
		return nil, newConfigError(ti.name, "", "type already registered")
	}
	if existing, ok := names[ti.name]; ok {
		return nil, newConfigError(ti.name, "", fmt.Sprintf("name already used by %s", existing.typ))
	}
	if _, ok := texts[ti.name]; ok {
		return nil, newConfigError(ti.name, "", "name already used by a text type")
	}
	types[typ] = ti
	names[ti.name] = ti

	emitTypeRegistered(context.Background(), ti.name, len(ti.props))
	return ti, nil
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](opts ...Option) *TypeInfo {
	ti, err := Register[T](opts...)
	if err != nil {
		panic(err)
	}
	return ti
}

// Lookup returns the registration of struct type t.
func Lookup(t reflect.Type) (*TypeInfo, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	ti, ok := types[t]
	return ti, ok
}

// LookupName returns the registration with the given wire name.
func LookupName(name string) (*TypeInfo, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	ti, ok := names[name]
	return ti, ok
}

// TypeOf returns the registration of T.
func TypeOf[T any]() (*TypeInfo, bool) {
	return Lookup(reflect.TypeFor[T]())
}

// Registered returns the wire names of all registered types, sorted.
func Registered() []string {
	typesMu.RLock()
	defer typesMu.RUnlock()
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Unregister removes the registration of T and reports whether it existed.
// Types derived from T keep their reference to its registration.
func Unregister[T any]() bool {
	typ := reflect.TypeFor[T]()
	typesMu.Lock()
	defer typesMu.Unlock()
	ti, ok := types[typ]
	if !ok {
		return false
	}
	delete(types, typ)
	delete(names, ti.name)
	return true
}

// Reset clears the type registry and the text values added by RegisterText.
// This is primarily useful for test isolation.
func Reset() {
	typesMu.Lock()
	defer typesMu.Unlock()
	types = make(map[reflect.Type]*TypeInfo)
	names = make(map[string]*TypeInfo)
	for name, tt := range texts {
		if _, ok := reservedNames[name]; !ok {
			delete(texts, name)
			delete(textTypes, tt.typ)
		}
	}
}

func validTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("empty type name")
	}
	if _, ok := reservedNames[name]; ok {
		return fmt.Errorf("type name %q is reserved", name)
	}
	if !propertyIDPattern.MatchString(name) {
		return fmt.Errorf("invalid type name %q", name)
	}
	return nil
}

// allowedNames returns the set of type names a load may construct.
func allowedNames(extra []string) map[string]struct{} {
	typesMu.RLock()
	defer typesMu.RUnlock()
	out := make(map[string]struct{}, len(names)+len(texts)+len(reservedNames)+len(extra))
	for name := range names {
		out[name] = struct{}{}
	}
	for name := range texts {
		out[name] = struct{}{}
	}
	for name := range reservedNames {
		out[name] = struct{}{}
	}
	for _, name := range extra {
		out[name] = struct{}{}
	}
	return out
}

package firm

import (
	"encoding"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Built-in text value names.
const (
	TypeRational = "Rational"
	TypeBigInt   = "BigInt"
	TypeRegexp   = "Regexp"
	TypeComplex  = "Complex"
)

var textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

// textType is a value type written as a named string. Text values carry no
// identity and are never anchored.
type textType struct {
	name   string
	typ    reflect.Type
	format func(v reflect.Value) (string, error)
	parse  func(s string) (reflect.Value, error)
}

var (
	texts     = make(map[string]*textType)
	textTypes = make(map[reflect.Type]*textType)
)

func init() {
	for _, tt := range []*textType{
		marshalerText(TypeRational, reflect.TypeFor[*big.Rat](), parseRational),
		marshalerText(TypeBigInt, reflect.TypeFor[*big.Int](), nil),
		marshalerText(TypeRegexp, reflect.TypeFor[*regexp.Regexp](), nil),
		{
			name: TypeComplex,
			typ:  reflect.TypeFor[complex128](),
			format: func(v reflect.Value) (string, error) {
				return strconv.FormatComplex(v.Complex(), 'g', -1, 128), nil
			},
			parse: func(s string) (reflect.Value, error) {
				c, err := strconv.ParseComplex(s, 128)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(c), nil
			},
		},
	} {
		texts[tt.name] = tt
		textTypes[tt.typ] = tt
	}
}

// RegisterText makes T a text value named name: it is written as the string
// its MarshalText returns and restored through UnmarshalText. T is used as
// given, so register *big.Float to restore pointers. Text values are
// accepted on load like registered types, including by AllowOnly.
func RegisterText[T any](name string) error {
	typ := reflect.TypeFor[T]()
	if err := validTypeName(name); err != nil {
		return newConfigError(typ.String(), "", err.Error())
	}
	if !typ.Implements(textMarshalerType) {
		return newConfigError(name, "", fmt.Sprintf("%s does not implement encoding.TextMarshaler", typ))
	}
	if !typ.Implements(textUnmarshalerType) && !reflect.PointerTo(typ).Implements(textUnmarshalerType) {
		return newConfigError(name, "", fmt.Sprintf("%s does not implement encoding.TextUnmarshaler", typ))
	}
	tt := marshalerText(name, typ, nil)

	typesMu.Lock()
	defer typesMu.Unlock()
	if _, ok := textTypes[typ]; ok {
		return newConfigError(name, "", "text type already registered")
	}
	if _, ok := texts[name]; ok {
		return newConfigError(name, "", "name already used by a text type")
	}
	if existing, ok := names[name]; ok {
		return newConfigError(name, "", fmt.Sprintf("name already used by %s", existing.typ))
	}
	texts[name] = tt
	textTypes[typ] = tt
	return nil
}

// MustRegisterText is like RegisterText but panics on error.
func MustRegisterText[T any](name string) {
	if err := RegisterText[T](name); err != nil {
		panic(err)
	}
}

// UnregisterText removes a text value registered with RegisterText.
// Built-in text values cannot be removed.
func UnregisterText(name string) {
	if _, ok := reservedNames[name]; ok {
		return
	}
	typesMu.Lock()
	defer typesMu.Unlock()
	if tt, ok := texts[name]; ok {
		delete(texts, name)
		delete(textTypes, tt.typ)
	}
}

func lookupText(t reflect.Type) (*textType, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	tt, ok := textTypes[t]
	return tt, ok
}

func lookupTextName(name string) (*textType, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	tt, ok := texts[name]
	return tt, ok
}

// marshalerText builds a text type over the encoding.Text interfaces of typ.
// parse overrides UnmarshalText when set.
func marshalerText(name string, typ reflect.Type, parse func(string) (reflect.Value, error)) *textType {
	tt := &textType{
		name: name,
		typ:  typ,
		format: func(v reflect.Value) (string, error) {
			b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
			return string(b), err
		},
		parse: parse,
	}
	if tt.parse == nil {
		tt.parse = func(s string) (reflect.Value, error) {
			return unmarshalText(typ, s)
		}
	}
	return tt
}

func unmarshalText(typ reflect.Type, s string) (reflect.Value, error) {
	if typ.Kind() == reflect.Pointer && typ.Implements(textUnmarshalerType) {
		p := reflect.New(typ.Elem())
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return p, nil
	}
	p := reflect.New(typ)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

// parseRational accepts the a/b and integer forms MarshalText writes.
// Exponents are refused since big.Rat expands them in full.
func parseRational(s string) (reflect.Value, error) {
	if strings.ContainsAny(s, "eEpP.") {
		return reflect.Value{}, fmt.Errorf("rational %q is not of the form a/b", s)
	}
	return unmarshalText(reflect.TypeFor[*big.Rat](), s)
}

// encodeText writes v as a text node when its type is a text value.
func encodeText(v reflect.Value) (*Node, bool, error) {
	var tt *textType
	switch v.Kind() {
	case reflect.Complex64, reflect.Complex128:
		tt = texts[TypeComplex]
	default:
		var ok bool
		if tt, ok = lookupText(v.Type()); !ok {
			return nil, false, nil
		}
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return NewNil(), true, nil
	}
	s, err := tt.format(v)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrUnsupportedType, v.Type(), err)
	}
	return NewText(tt.name, s), true, nil
}

// decodeText restores a text node.
func decodeText(n *Node) (any, error) {
	tt, ok := lookupTextName(n.Type)
	if !ok {
		return nil, newCorruptError("", fmt.Sprintf("%s is not a text value", n.Type), nil)
	}
	s, ok := n.Value.(string)
	if !ok {
		return nil, newCorruptError("", fmt.Sprintf("text node holds %T", n.Value), nil)
	}
	v, err := tt.parse(s)
	if err != nil {
		return nil, newCorruptError("", fmt.Sprintf("invalid %s", tt.name), err)
	}
	return v.Interface(), nil
}

// Package firm provides object-graph serialization with preserved identity.
//
// Application types declare which of their attributes persist. Whole graphs
// of such objects, including shared references and cycles, round-trip
// through interchangeable wire formats via one shared core.
//
// # Registration
//
// Types are registered once, usually from init:
//
//	type Point struct{ X, Y int }
//
//	func init() {
//	    firm.MustRegister[Point](firm.WithProperties("x", "y"))
//	}
//
// Properties are resolved by convention (methods X()/GetX() and SetX(v), a
// variadic X(...V) V, a `firm:"x"` tagged field or exported field X) or
// declared explicitly:
//
//	firm.WithAccessor("name", func(p *Person) string { return p.name },
//	    func(p *Person, v string) { p.name = v })
//	firm.WithCombined("colour", (*Shape).colour)
//	firm.WithHandler(handler, []string{"a", "b"})
//
// Property options tune output: Optional(def), OptionalFunc(fn), OmitZero()
// and Force().
//
// # Inheritance
//
// A derived type embeds its base and names it with Extends. It serializes
// its own properties first, then those of the base, minus WithExcludes:
//
//	firm.MustRegister[Circle](
//	    firm.Extends(func(c *Circle) *Shape { return &c.Shape }),
//	    firm.WithProperties("radius"),
//	    firm.WithExcludes("corners"),
//	)
//
// # Identity
//
// An instance of a registered type referenced more than once is written
// once, as an anchor, and every further reference becomes an alias. On load
// each anchor is constructed exactly once and every alias resolves to that
// instance, so cycles and shared references survive a round trip. Native
// slices and maps are values; use List, Map and Set for containers with
// identity. ID values are plain tokens and never tracked.
//
// # Security
//
// Load only constructs registered types and the built-in containers. A
// document naming anything else fails with ErrSecurity before any object
// is built. AllowOnly narrows the accepted set further.
//
// # Formats
//
// Engines register themselves when their package is imported:
//
//   - json - JSON (application/json), the default format
//   - xml - XML (application/xml)
//   - yaml - YAML with native anchors (application/yaml)
//   - msgpack - MessagePack (application/msgpack)
//   - bson - BSON (application/bson)
//   - cbor - CBOR with deterministic encoding (application/cbor)
//
// Usage:
//
//	import _ "github.com/zoobzio/firm/json"
//
//	data, _ := firm.Serialize(ctx, rect, firm.Pretty())
//	v, _ := firm.Deserialize(ctx, data)
//	r, _ := firm.DeserializeAs[*Rect](ctx, data)
package firm

import (
	"bytes"
	"context"
	"io"
)

// CallOption configures a single Serialize or Deserialize call.
type CallOption func(*callConfig)

type callConfig struct {
	format string
	pretty bool
	only   []string
}

func newCallConfig(opts []CallOption) *callConfig {
	cfg := &callConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// engine returns the requested engine, or the default one.
func (cfg *callConfig) engine() (Engine, error) {
	if cfg.format == "" {
		return Format(DefaultFormat())
	}
	return Format(cfg.format)
}

// allowed returns the type names a load may construct.
func (cfg *callConfig) allowed(e Engine) map[string]struct{} {
	var extra []string
	if bt, ok := e.(BuiltinTyper); ok {
		extra = bt.BuiltinTypes()
	}
	all := allowedNames(extra)
	if cfg.only == nil {
		return all
	}
	narrowed := make(map[string]struct{}, len(cfg.only)+len(reservedNames))
	for name := range reservedNames {
		narrowed[name] = struct{}{}
	}
	for _, name := range extra {
		narrowed[name] = struct{}{}
	}
	for _, name := range cfg.only {
		if _, ok := all[name]; ok {
			narrowed[name] = struct{}{}
		}
	}
	return narrowed
}

// WithFormat selects the engine by format name.
func WithFormat(name string) CallOption {
	return func(cfg *callConfig) {
		cfg.format = name
	}
}

// Pretty requests human-oriented output where the format supports it.
func Pretty() CallOption {
	return func(cfg *callConfig) {
		cfg.pretty = true
	}
}

// AllowOnly restricts a load to the named registered types plus the
// built-in containers.
func AllowOnly(names ...string) CallOption {
	return func(cfg *callConfig) {
		cfg.only = append([]string{}, names...)
	}
}

// Serialize encodes the graph rooted at v.
func Serialize(ctx context.Context, v any, opts ...CallOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := SerializeTo(ctx, &buf, v, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeTo encodes the graph rooted at v to w.
func SerializeTo(ctx context.Context, w io.Writer, v any, opts ...CallOption) error {
	e, err := newCallConfig(opts).engine()
	if err != nil {
		return err
	}
	return DumpTo(ctx, e, w, v, opts...)
}

// Deserialize decodes data into a new object graph.
func Deserialize(ctx context.Context, data []byte, opts ...CallOption) (any, error) {
	e, err := newCallConfig(opts).engine()
	if err != nil {
		return nil, err
	}
	return Load(ctx, e, data, opts...)
}

// DeserializeFrom decodes the content of r into a new object graph.
func DeserializeFrom(ctx context.Context, r io.Reader, opts ...CallOption) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Deserialize(ctx, data, opts...)
}

// DeserializeAs decodes data and converts the root to T.
func DeserializeAs[T any](ctx context.Context, data []byte, opts ...CallOption) (T, error) {
	var zero T
	v, err := Deserialize(ctx, data, opts...)
	if err != nil {
		return zero, err
	}
	out, err := As[T](v)
	if err != nil {
		return zero, newCorruptError("", "unexpected root", err)
	}
	return out, nil
}

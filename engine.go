package firm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Engine renders Node trees in one wire format and parses them back.
// Engines only translate syntax; anchors, aliases and type checks are
// handled by Dump and Load.
type Engine interface {
	// Name returns the format name the engine registers under.
	Name() string
	// ContentType returns the MIME type of the format.
	ContentType() string
	// Encode writes root to w. pretty requests human-oriented layout where
	// the format has one.
	Encode(w io.Writer, root *Node, pretty bool) error
	// Decode parses data into a Node tree.
	Decode(data []byte) (*Node, error)
}

// BuiltinTyper is implemented by engines that emit extra type names of
// their own which must be accepted on load.
type BuiltinTyper interface {
	BuiltinTypes() []string
}

var (
	formats       = make(map[string]Engine)
	defaultFormat = "json"
	formatsMu     sync.RWMutex
)

// RegisterFormat makes e available under its name. Names are case-insensitive.
func RegisterFormat(e Engine) error {
	name := strings.ToLower(e.Name())
	formatsMu.Lock()
	defer formatsMu.Unlock()
	if _, ok := formats[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFormat, name)
	}
	formats[name] = e
	emitFormatRegistered(context.Background(), name, e.ContentType())
	return nil
}

// MustRegisterFormat is like RegisterFormat but panics on error.
func MustRegisterFormat(e Engine) {
	if err := RegisterFormat(e); err != nil {
		panic(err)
	}
}

// Format returns the engine registered under name.
func Format(name string) (Engine, error) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	e, ok := formats[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return e, nil
}

// Formats returns the registered format names, sorted.
func Formats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	out := make([]string, 0, len(formats))
	for name := range formats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefaultFormat returns the format used when none is requested.
func DefaultFormat() string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	return defaultFormat
}

// SetDefaultFormat changes the format used when none is requested.
// The format must be registered.
func SetDefaultFormat(name string) error {
	name = strings.ToLower(name)
	formatsMu.Lock()
	defer formatsMu.Unlock()
	if _, ok := formats[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	defaultFormat = name
	return nil
}

// Dump serializes the graph rooted at v with engine e.
func Dump(ctx context.Context, e Engine, v any, opts ...CallOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := DumpTo(ctx, e, &buf, v, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DumpTo serializes the graph rooted at v with engine e, writing to w.
func DumpTo(ctx context.Context, e Engine, w io.Writer, v any, opts ...CallOption) error {
	cfg := newCallConfig(opts)
	typeName := typeNameOf(v)
	emitDumpStart(ctx, e.Name(), typeName)
	start := time.Now()

	root, st, err := toNode(ctx, v)
	cw := &countingWriter{w: w}
	if err == nil {
		if encErr := e.Encode(cw, root, cfg.pretty); encErr != nil {
			err = newCodecError(ErrMarshal, e.Name(), encErr)
		}
	}

	emitDumpComplete(ctx, e.Name(), typeName, cw.n, time.Since(start), st, err)
	return err
}

// Load deserializes data with engine e. Only registered types, built-in
// containers and names accepted by the engine can be constructed.
func Load(ctx context.Context, e Engine, data []byte, opts ...CallOption) (any, error) {
	cfg := newCallConfig(opts)
	emitLoadStart(ctx, e.Name(), len(data))
	start := time.Now()

	var (
		v   any
		st  stats
		err error
	)
	root, decErr := e.Decode(data)
	if decErr != nil {
		err = decErr
		if !isFirmError(decErr) {
			err = newCodecError(ErrUnmarshal, e.Name(), decErr)
		}
	} else {
		v, st, err = fromNode(ctx, root, cfg.allowed(e))
	}

	emitLoadComplete(ctx, e.Name(), typeNameOf(v), time.Since(start), st, err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// isFirmError reports whether an engine already returned a categorized error.
func isFirmError(err error) bool {
	switch err.(type) {
	case *CorruptDataError, *SecurityError, *CodecError:
		return true
	}
	return errors.Is(err, ErrDepthExceeded)
}

func typeNameOf(v any) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		if ti, ok := Lookup(t.Elem()); ok {
			return ti.name
		}
	}
	return t.String()
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

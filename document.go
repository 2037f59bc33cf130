package firm

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Document scheme keys. Objects, tracked containers and typed scalars are
// written as maps carrying DocType; anchored nodes add DocAnchor, aliases
// carry DocAlias instead of a body, and the body goes under DocData.
const (
	DocType   = "@type"
	DocAnchor = "@anchor"
	DocAlias  = "@alias"
	DocData   = "data"
)

// MaxDocumentDepth bounds the nesting of a document value. A node takes at
// most three levels: a Map is a tagged map holding a list of [key, value]
// pairs.
const MaxDocumentDepth = 3 * MaxDepth

// Document is an ordered string-keyed map. Together with nil, bool, int64,
// float64, string and []any it forms the value model shared by the
// JSON-like engines.
type Document []Pair

// Pair is one entry of a Document.
type Pair struct {
	Key   string
	Value any
}

// Get returns the value stored under key.
func (d Document) Get(key string) (any, bool) {
	for _, p := range d {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// ToDocument converts a Node tree to the document value model.
func ToDocument(n *Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case KindNil:
		return nil, nil
	case KindBool:
		return n.Bool(), nil
	case KindInt:
		return n.Int(), nil
	case KindFloat:
		f := n.Float()
		switch {
		case math.IsNaN(f):
			return tagged(TypeFloat, 0, "NaN"), nil
		case math.IsInf(f, 1):
			return tagged(TypeFloat, 0, "+Inf"), nil
		case math.IsInf(f, -1):
			return tagged(TypeFloat, 0, "-Inf"), nil
		}
		return f, nil
	case KindString:
		return n.Str(), nil
	case KindID:
		return tagged(TypeID, 0, n.ID().String()), nil
	case KindTime:
		return tagged(TypeTime, 0, n.Time().Format(time.RFC3339Nano)), nil
	case KindSeq:
		return toDocItems(n.Items)
	case KindMap:
		if plainKeys(n.Entries) {
			doc := make(Document, 0, len(n.Entries))
			for _, e := range n.Entries {
				v, err := ToDocument(e.Value)
				if err != nil {
					return nil, err
				}
				doc = append(doc, Pair{Key: e.Key.Str(), Value: v})
			}
			return doc, nil
		}
		pairs, err := toDocPairs(n.Entries)
		if err != nil {
			return nil, err
		}
		return tagged(TypePairs, 0, pairs), nil
	case KindList, KindSet:
		items, err := toDocItems(n.Items)
		if err != nil {
			return nil, err
		}
		return tagged(n.Type, n.Anchor, items), nil
	case KindDict:
		pairs, err := toDocPairs(n.Entries)
		if err != nil {
			return nil, err
		}
		return tagged(TypeMap, n.Anchor, pairs), nil
	case KindObject:
		doc := Document{{Key: DocType, Value: n.Type}}
		if n.Anchor != 0 {
			doc = append(doc, Pair{Key: DocAnchor, Value: int64(n.Anchor)})
		}
		if len(n.Fields) > 0 {
			data := make(Document, 0, len(n.Fields))
			for _, f := range n.Fields {
				v, err := ToDocument(f.Value)
				if err != nil {
					return nil, err
				}
				data = append(data, Pair{Key: f.Name, Value: v})
			}
			doc = append(doc, Pair{Key: DocData, Value: data})
		}
		return doc, nil
	case KindAlias:
		return Document{{Key: DocType, Value: n.Type}, {Key: DocAlias, Value: int64(n.Ref)}}, nil
	case KindText:
		return tagged(n.Type, 0, n.Str()), nil
	}
	return nil, fmt.Errorf("%w: node kind %s", ErrUnsupportedType, n.Kind)
}

func tagged(typeName string, anchor int, data any) Document {
	doc := Document{{Key: DocType, Value: typeName}}
	if anchor != 0 {
		doc = append(doc, Pair{Key: DocAnchor, Value: int64(anchor)})
	}
	return append(doc, Pair{Key: DocData, Value: data})
}

// plainKeys reports whether a native map can be written as a document:
// every key is a string that cannot be mistaken for a scheme key.
func plainKeys(entries []Entry) bool {
	for _, e := range entries {
		if e.Key.Kind != KindString || strings.HasPrefix(e.Key.Str(), "@") {
			return false
		}
	}
	return true
}

func toDocItems(items []*Node) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := ToDocument(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func toDocPairs(entries []Entry) ([]any, error) {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		k, err := ToDocument(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := ToDocument(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, []any{k, v})
	}
	return out, nil
}

// FromDocument converts a document value back to a Node tree. Besides the
// canonical value model it accepts any Go integer or float type, []byte,
// other slice types, and unordered map[string]any (keys are sorted).
// Values nested deeper than MaxDocumentDepth fail with ErrDepthExceeded.
func FromDocument(v any) (*Node, error) {
	r := &docReader{}
	return r.value(v)
}

// docReader tracks the nesting of the document being read.
type docReader struct {
	depth int
}

func (r *docReader) value(v any) (*Node, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > MaxDocumentDepth {
		return nil, ErrDepthExceeded
	}
	switch x := v.(type) {
	case nil:
		return NewNil(), nil
	case bool:
		return NewBool(x), nil
	case string:
		return NewString(x), nil
	case []byte:
		return NewString(string(x)), nil
	case int64:
		return NewInt(x), nil
	case float64:
		return NewFloat(x), nil
	case []any:
		return r.seq(x)
	case Document:
		return r.mapping(x)
	case map[string]any:
		return r.mapping(sortedDocument(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, newCorruptError("", fmt.Sprintf("integer %d out of range", u), nil)
		}
		return NewInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return NewFloat(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return r.seq(items)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return r.mapping(sortedDocument(m))
		}
	}
	return nil, newCorruptError("", fmt.Sprintf("unexpected value of type %T", v), nil)
}

func sortedDocument(m map[string]any) Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := make(Document, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, Pair{Key: k, Value: m[k]})
	}
	return doc
}

func (r *docReader) seq(items []any) (*Node, error) {
	n := &Node{Kind: KindSeq, Items: make([]*Node, 0, len(items))}
	for _, item := range items {
		child, err := r.value(item)
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, child)
	}
	return n, nil
}

func (r *docReader) mapping(doc Document) (*Node, error) {
	rawType, ok := doc.Get(DocType)
	if !ok {
		n := &Node{Kind: KindMap, Entries: make([]Entry, 0, len(doc))}
		for _, p := range doc {
			if strings.HasPrefix(p.Key, "@") {
				return nil, newCorruptError(p.Key, "scheme key without "+DocType, nil)
			}
			v, err := r.value(p.Value)
			if err != nil {
				return nil, err
			}
			n.Entries = append(n.Entries, Entry{Key: NewString(p.Key), Value: v})
		}
		return n, nil
	}

	typeName, ok := rawType.(string)
	if !ok || typeName == "" {
		return nil, newCorruptError(DocType, fmt.Sprintf("invalid type name %v", rawType), nil)
	}
	if raw, ok := doc.Get(DocAlias); ok {
		ref, err := docInt(raw)
		if err != nil {
			return nil, newCorruptError(DocAlias, "invalid alias", err)
		}
		return NewAlias(typeName, ref), nil
	}
	anchor := 0
	if raw, ok := doc.Get(DocAnchor); ok {
		var err error
		if anchor, err = docInt(raw); err != nil {
			return nil, newCorruptError(DocAnchor, "invalid anchor", err)
		}
	}
	data, hasData := doc.Get(DocData)

	switch typeName {
	case TypeID:
		s, ok := data.(string)
		if !ok {
			return nil, newCorruptError(typeName, "expected string data", nil)
		}
		id, err := ParseID(s)
		if err != nil {
			return nil, newCorruptError(typeName, "invalid id", err)
		}
		return NewIDNode(id), nil
	case TypeTime:
		s, ok := data.(string)
		if !ok {
			return nil, newCorruptError(typeName, "expected string data", nil)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, newCorruptError(typeName, "invalid time", err)
		}
		return NewTime(t), nil
	case TypeFloat:
		s, ok := data.(string)
		if !ok {
			return nil, newCorruptError(typeName, "expected string data", nil)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, newCorruptError(typeName, "invalid float", err)
		}
		return NewFloat(f), nil
	case TypePairs:
		entries, err := r.pairs(data)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindMap, Entries: entries}, nil
	case TypeList, TypeSet:
		seq, err := r.value(data)
		if err != nil {
			return nil, err
		}
		if hasData && seq.Kind != KindSeq {
			return nil, newCorruptError(typeName, "expected sequence data", nil)
		}
		n, _ := NewContainer(typeName)
		n.Anchor = anchor
		n.Items = seq.Items
		return n, nil
	case TypeMap:
		entries, err := r.pairs(data)
		if err != nil {
			return nil, err
		}
		n, _ := NewContainer(TypeMap)
		n.Anchor = anchor
		n.Entries = entries
		return n, nil
	}

	n := NewObject(typeName)
	n.Anchor = anchor
	if !hasData || data == nil {
		return n, nil
	}
	var fields Document
	switch d := data.(type) {
	case string:
		// Text values are the only typed scalars outside the built-ins.
		if anchor != 0 {
			return nil, newCorruptError(typeName, "text value with anchor", nil)
		}
		return NewText(typeName, d), nil
	case Document:
		fields = d
	case map[string]any:
		fields = sortedDocument(d)
	default:
		body, err := r.value(data)
		if err != nil {
			return nil, err
		}
		if body.Kind != KindMap {
			return nil, newCorruptError(typeName, "expected property map", nil)
		}
		for _, e := range body.Entries {
			n.Fields = append(n.Fields, Field{Name: e.Key.Str(), Value: e.Value})
		}
		return n, nil
	}
	for _, p := range fields {
		v, err := r.value(p.Value)
		if err != nil {
			return nil, err
		}
		n.Fields = append(n.Fields, Field{Name: p.Key, Value: v})
	}
	return n, nil
}

func (r *docReader) pairs(data any) ([]Entry, error) {
	if data == nil {
		return nil, nil
	}
	seq, err := r.value(data)
	if err != nil {
		return nil, err
	}
	if seq.Kind != KindSeq {
		return nil, newCorruptError(DocData, "expected pair sequence", nil)
	}
	entries := make([]Entry, 0, len(seq.Items))
	for _, item := range seq.Items {
		if item.Kind != KindSeq || len(item.Items) != 2 {
			return nil, newCorruptError(DocData, "expected [key, value] pair", nil)
		}
		entries = append(entries, Entry{Key: item.Items[0], Value: item.Items[1]})
	}
	return entries, nil
}

func docInt(v any) (int, error) {
	n, err := FromDocument(v)
	if err != nil {
		return 0, err
	}
	switch n.Kind {
	case KindInt:
		if n.Int() <= 0 || n.Int() > math.MaxInt32 {
			return 0, fmt.Errorf("id %d out of range", n.Int())
		}
		return int(n.Int()), nil
	case KindFloat:
		f := n.Float()
		if f != math.Trunc(f) || f <= 0 || f > math.MaxInt32 {
			return 0, fmt.Errorf("id %v out of range", f)
		}
		return int(f), nil
	}
	return 0, fmt.Errorf("id of kind %s", n.Kind)
}

// Package bson provides the BSON engine. Importing it registers the "bson"
// format.
//
// BSON requires a document at the top level, so the root value is stored
// under the "root" key.
package bson

import (
	"fmt"
	"io"

	"github.com/zoobzio/firm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

const rootKey = "root"

func init() {
	firm.MustRegisterFormat(New())
}

// bsonEngine implements firm.Engine for BSON.
type bsonEngine struct{}

// New returns a BSON engine.
func New() firm.Engine {
	return &bsonEngine{}
}

// Name returns the format name.
func (e *bsonEngine) Name() string {
	return "bson"
}

// ContentType returns the MIME type for BSON.
func (e *bsonEngine) ContentType() string {
	return "application/bson"
}

// Encode writes root as BSON. pretty has no effect.
func (e *bsonEngine) Encode(w io.Writer, root *firm.Node, _ bool) error {
	doc, err := firm.ToDocument(root)
	if err != nil {
		return err
	}
	v, err := toBSON(doc)
	if err != nil {
		return err
	}
	data, err := bson.Marshal(bson.D{{Key: rootKey, Value: v}})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode parses BSON into a node tree.
func (e *bsonEngine) Decode(data []byte) (*firm.Node, error) {
	if err := checkDepth(data); err != nil {
		return nil, err
	}
	var top bson.D
	if err := bson.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	if len(top) != 1 || top[0].Key != rootKey {
		return nil, firm.NewCorruptError("missing root element", nil)
	}
	v, err := fromBSON(top[0].Value)
	if err != nil {
		return nil, err
	}
	return firm.FromDocument(v)
}

func toBSON(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x, nil
	case []any:
		out := make(bson.A, 0, len(x))
		for _, item := range x {
			bv, err := toBSON(item)
			if err != nil {
				return nil, err
			}
			out = append(out, bv)
		}
		return out, nil
	case firm.Document:
		out := make(bson.D, 0, len(x))
		for _, p := range x {
			bv, err := toBSON(p.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: p.Key, Value: bv})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected document value %T", v)
}

func fromBSON(v any) (any, error) {
	switch x := v.(type) {
	case bson.D:
		doc := make(firm.Document, 0, len(x))
		for _, e := range x {
			dv, err := fromBSON(e.Value)
			if err != nil {
				return nil, err
			}
			doc = append(doc, firm.Pair{Key: e.Key, Value: dv})
		}
		return doc, nil
	case bson.M:
		m := make(map[string]any, len(x))
		for k, item := range x {
			dv, err := fromBSON(item)
			if err != nil {
				return nil, err
			}
			m[k] = dv
		}
		return m, nil
	case bson.A:
		return fromBSONArray(x)
	case []any:
		return fromBSONArray(x)
	}
	return v, nil
}

func fromBSONArray(items []any) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		dv, err := fromBSON(item)
		if err != nil {
			return nil, err
		}
		out = append(out, dv)
	}
	return out, nil
}

// checkDepth walks the raw document without recursion and rejects nesting
// deeper than any dump produces. The root wrapper adds one level.
func checkDepth(data []byte) error {
	type level struct {
		doc   bsoncore.Document
		depth int
	}
	stack := []level{{doc: bsoncore.Document(data), depth: 1}}
	for len(stack) > 0 {
		l := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if l.depth > firm.MaxDocumentDepth+1 {
			return firm.ErrDepthExceeded
		}
		elems, err := l.doc.Elements()
		if err != nil {
			return err
		}
		for _, el := range elems {
			v := el.Value()
			if d, ok := v.DocumentOK(); ok {
				stack = append(stack, level{doc: d, depth: l.depth + 1})
			} else if a, ok := v.ArrayOK(); ok {
				stack = append(stack, level{doc: bsoncore.Document(a), depth: l.depth + 1})
			}
		}
	}
	return nil
}

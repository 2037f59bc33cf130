// Package cbor provides the CBOR engine. Importing it registers the "cbor"
// format.
//
// Output uses Core Deterministic Encoding (RFC 8949 section 4.2), so the
// same graph always produces the same bytes. Map keys are sorted, which
// means property order is not preserved.
package cbor

import (
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/zoobzio/firm"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels:  firm.MaxDocumentDepth,
		MaxArrayElements: math.MaxInt32,
		MaxMapPairs:      math.MaxInt32,
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
	firm.MustRegisterFormat(New())
}

// cborEngine implements firm.Engine for CBOR.
type cborEngine struct{}

// New returns a CBOR engine.
func New() firm.Engine {
	return &cborEngine{}
}

// Name returns the format name.
func (e *cborEngine) Name() string {
	return "cbor"
}

// ContentType returns the MIME type for CBOR.
func (e *cborEngine) ContentType() string {
	return "application/cbor"
}

// Encode writes root as CBOR. pretty has no effect.
func (e *cborEngine) Encode(w io.Writer, root *firm.Node, _ bool) error {
	doc, err := firm.ToDocument(root)
	if err != nil {
		return err
	}
	v, err := toCBOR(doc)
	if err != nil {
		return err
	}
	data, err := encMode.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode parses CBOR into a node tree. The nesting limit matches the
// deepest document a dump can produce.
func (e *cborEngine) Decode(data []byte) (*firm.Node, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return firm.FromDocument(v)
}

func toCBOR(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x, nil
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			cv, err := toCBOR(item)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	case firm.Document:
		out := make(map[string]any, len(x))
		for _, p := range x {
			cv, err := toCBOR(p.Value)
			if err != nil {
				return nil, err
			}
			out[p.Key] = cv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected document value %T", v)
}

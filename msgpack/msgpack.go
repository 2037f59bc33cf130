// Package msgpack provides the MessagePack engine. Importing it registers
// the "msgpack" format.
package msgpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"github.com/zoobzio/firm"
)

func init() {
	firm.MustRegisterFormat(New())
}

// msgpackEngine implements firm.Engine for MessagePack.
type msgpackEngine struct{}

// New returns a MessagePack engine.
func New() firm.Engine {
	return &msgpackEngine{}
}

// Name returns the format name.
func (e *msgpackEngine) Name() string {
	return "msgpack"
}

// ContentType returns the MIME type for MessagePack.
func (e *msgpackEngine) ContentType() string {
	return "application/msgpack"
}

// Encode writes root as MessagePack. pretty has no effect.
func (e *msgpackEngine) Encode(w io.Writer, root *firm.Node, _ bool) error {
	doc, err := firm.ToDocument(root)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := write(enc, doc); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Decode parses MessagePack into a node tree. Maps keep their key order.
func (e *msgpackEngine) Decode(data []byte) (*firm.Node, error) {
	r := &reader{src: bytes.NewReader(data)}
	r.dec = msgpack.NewDecoder(r.src)
	v, err := r.value(1)
	if err != nil {
		return nil, err
	}
	if r.src.Len() != 0 {
		return nil, errors.New("unexpected data after top-level value")
	}
	return firm.FromDocument(v)
}

func write(enc *msgpack.Encoder, v any) error {
	switch x := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(x)
	case int64:
		return enc.EncodeInt(x)
	case float64:
		return enc.EncodeFloat64(x)
	case string:
		return enc.EncodeString(x)
	case []any:
		if err := enc.EncodeArrayLen(len(x)); err != nil {
			return err
		}
		for _, item := range x {
			if err := write(enc, item); err != nil {
				return err
			}
		}
		return nil
	case firm.Document:
		if err := enc.EncodeMapLen(len(x)); err != nil {
			return err
		}
		for _, p := range x {
			if err := enc.EncodeString(p.Key); err != nil {
				return err
			}
			if err := write(enc, p.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unexpected document value %T", v)
}

// reader walks arrays and maps itself so nesting stays bounded; scalars are
// left to the library decoder.
type reader struct {
	src *bytes.Reader
	dec *msgpack.Decoder
}

func (r *reader) value(depth int) (any, error) {
	if depth > firm.MaxDocumentDepth {
		return nil, firm.ErrDepthExceeded
	}
	c, err := r.dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		return r.array(depth)
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		return r.mapping(depth)
	}
	return r.dec.DecodeInterface()
}

func (r *reader) array(depth int) (any, error) {
	n, err := r.dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	items := make([]any, 0, r.capacity(n))
	for i := 0; i < n; i++ {
		v, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (r *reader) mapping(depth int) (any, error) {
	n, err := r.dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	doc := make(firm.Document, 0, r.capacity(n))
	for i := 0; i < n; i++ {
		key, err := r.dec.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}
		doc = append(doc, firm.Pair{Key: key, Value: v})
	}
	return doc, nil
}

// capacity bounds a declared length by the bytes left, since every element
// takes at least one byte.
func (r *reader) capacity(n int) int {
	return min(n, r.src.Len())
}

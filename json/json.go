// Package json provides the JSON engine. Importing it registers the "json"
// format.
//
// Objects are written as {"@type": T, "@anchor": n, "data": {...}} with
// properties in declaration order, aliases as {"@type": T, "@alias": n}.
// Comments and trailing commas are accepted on input.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/zoobzio/firm"
)

func init() {
	firm.MustRegisterFormat(New())
}

// jsonEngine implements firm.Engine for JSON.
type jsonEngine struct{}

// New returns a JSON engine.
func New() firm.Engine {
	return &jsonEngine{}
}

// Name returns the format name.
func (e *jsonEngine) Name() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *jsonEngine) ContentType() string {
	return "application/json"
}

// Encode writes root as JSON.
func (e *jsonEngine) Encode(w io.Writer, root *firm.Node, pretty bool) error {
	doc, err := firm.ToDocument(root)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := write(&buf, doc); err != nil {
		return err
	}
	if pretty {
		var out bytes.Buffer
		if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
			return err
		}
		out.WriteByte('\n')
		buf = out
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Decode parses JSON into a node tree.
func (e *jsonEngine) Decode(data []byte) (*firm.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	v, err := readValue(dec, 1)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return firm.FromDocument(v)
}

func write(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		buf.WriteString(formatFloat(x))
	case string:
		return writeString(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case firm.Document:
		buf.WriteByte('{')
		for i, p := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, p.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := write(buf, p.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unexpected document value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// formatFloat keeps a fraction or exponent so floats read back as floats.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func readValue(dec *json.Decoder, depth int) (any, error) {
	if depth > firm.MaxDocumentDepth {
		return nil, firm.ErrDepthExceeded
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := firm.Document{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := readValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				doc = append(doc, firm.Pair{Key: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			items := []any{}
			for dec.More() {
				v, err := readValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return number(t)
	}
	return tok, nil
}

func number(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return n.Float64()
}

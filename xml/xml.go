// Package xml provides the XML engine. Importing it registers the "xml"
// format.
//
// Every value is an element named after its kind:
//
//	<Object class="Point" anchor="1">
//	  <x><Integer>10</Integer></x>
//	  <y><Integer>20</Integer></y>
//	</Object>
//	<Object class="Point" alias="1"/>
//
// Scalars are <nil/>, <true/>, <false/>, <Integer>, <Float>, <String>,
// <ID> and <Time>. Text values are <Text class="Rational">5/3</Text>.
// Native sequences are <Array> and native maps are
// <Hash> holding <P> key/value pairs. The tracked containers are <List>,
// <Map> and <Set> and accept anchor and alias attributes like <Object>.
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/firm"
)

// Element names.
const (
	elemNil     = "nil"
	elemTrue    = "true"
	elemFalse   = "false"
	elemInteger = "Integer"
	elemFloat   = "Float"
	elemString  = "String"
	elemID      = "ID"
	elemTime    = "Time"
	elemArray   = "Array"
	elemHash    = "Hash"
	elemPair    = "P"
	elemList    = "List"
	elemMap     = "Map"
	elemSet     = "Set"
	elemObject  = "Object"
	elemText    = "Text"
)

const (
	attrClass  = "class"
	attrAnchor = "anchor"
	attrAlias  = "alias"
)

func init() {
	firm.MustRegisterFormat(New())
}

// xmlEngine implements firm.Engine for XML.
type xmlEngine struct{}

// New returns an XML engine.
func New() firm.Engine {
	return &xmlEngine{}
}

// Name returns the format name.
func (e *xmlEngine) Name() string {
	return "xml"
}

// ContentType returns the MIME type for XML.
func (e *xmlEngine) ContentType() string {
	return "application/xml"
}

// Encode writes root as an XML document.
func (e *xmlEngine) Encode(w io.Writer, root *firm.Node, pretty bool) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if pretty {
		enc.Indent("", "  ")
	}
	if err := writeNode(enc, root); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	if pretty {
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode parses an XML document into a node tree.
func (e *xmlEngine) Decode(data []byte) (*firm.Node, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	return root.node(0)
}

func start(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func anchorAttrs(n *firm.Node) []xml.Attr {
	if n.Anchor == 0 {
		return nil
	}
	return []xml.Attr{attr(attrAnchor, strconv.Itoa(n.Anchor))}
}

func writeEmpty(enc *xml.Encoder, el xml.StartElement) error {
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func writeText(enc *xml.Encoder, name, text string, attrs ...xml.Attr) error {
	el := start(name, attrs...)
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func writeNode(enc *xml.Encoder, n *firm.Node) error {
	switch n.Kind {
	case firm.KindNil:
		return writeEmpty(enc, start(elemNil))
	case firm.KindBool:
		if n.Bool() {
			return writeEmpty(enc, start(elemTrue))
		}
		return writeEmpty(enc, start(elemFalse))
	case firm.KindInt:
		return writeText(enc, elemInteger, strconv.FormatInt(n.Int(), 10))
	case firm.KindFloat:
		return writeText(enc, elemFloat, formatFloat(n.Float()))
	case firm.KindString:
		return writeText(enc, elemString, n.Str())
	case firm.KindID:
		return writeText(enc, elemID, n.ID().String())
	case firm.KindTime:
		return writeText(enc, elemTime, n.Time().Format(time.RFC3339Nano))
	case firm.KindSeq:
		return writeItems(enc, start(elemArray), n.Items)
	case firm.KindList, firm.KindSet:
		return writeItems(enc, start(n.Type, anchorAttrs(n)...), n.Items)
	case firm.KindMap:
		return writePairs(enc, start(elemHash), n.Entries)
	case firm.KindDict:
		return writePairs(enc, start(elemMap, anchorAttrs(n)...), n.Entries)
	case firm.KindObject:
		el := start(elemObject, append([]xml.Attr{attr(attrClass, n.Type)}, anchorAttrs(n)...)...)
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		for _, f := range n.Fields {
			prop := start(f.Name)
			if err := enc.EncodeToken(prop); err != nil {
				return err
			}
			if err := writeNode(enc, f.Value); err != nil {
				return err
			}
			if err := enc.EncodeToken(prop.End()); err != nil {
				return err
			}
		}
		return enc.EncodeToken(el.End())
	case firm.KindAlias:
		ref := attr(attrAlias, strconv.Itoa(n.Ref))
		switch n.Type {
		case firm.TypeList, firm.TypeMap, firm.TypeSet:
			return writeEmpty(enc, start(n.Type, ref))
		}
		return writeEmpty(enc, start(elemObject, attr(attrClass, n.Type), ref))
	case firm.KindText:
		return writeText(enc, elemText, n.Str(), attr(attrClass, n.Type))
	}
	return fmt.Errorf("unexpected node kind %s", n.Kind)
}

func writeItems(enc *xml.Encoder, el xml.StartElement, items []*firm.Node) error {
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	for _, item := range items {
		if err := writeNode(enc, item); err != nil {
			return err
		}
	}
	return enc.EncodeToken(el.End())
}

func writePairs(enc *xml.Encoder, el xml.StartElement, entries []firm.Entry) error {
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	for _, e := range entries {
		p := start(elemPair)
		if err := enc.EncodeToken(p); err != nil {
			return err
		}
		if err := writeNode(enc, e.Key); err != nil {
			return err
		}
		if err := writeNode(enc, e.Value); err != nil {
			return err
		}
		if err := enc.EncodeToken(p.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(el.End())
}

// formatFloat uses strconv spelling for non-finite values (NaN, +Inf, -Inf),
// which ParseFloat reads back.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// element is a parsed XML element. Only elements and character data are kept.
type element struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*element
}

func parse(data []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		stack []*element
		root  *element
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root != nil {
				return nil, errors.New("multiple root elements")
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("empty document")
	}
	return root, nil
}

func (el *element) corrupt(format string, args ...any) error {
	return firm.NewCorruptError(fmt.Sprintf("<%s>: ", el.name)+fmt.Sprintf(format, args...), nil)
}

func (el *element) id(name string) (int, bool, error) {
	raw, ok := el.attrs[name]
	if !ok {
		return 0, false, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false, el.corrupt("invalid %s %q", name, raw)
	}
	return id, true, nil
}

func (el *element) node(depth int) (*firm.Node, error) {
	if depth > firm.MaxDepth {
		return nil, firm.ErrDepthExceeded
	}
	text := el.text.String()
	switch el.name {
	case elemNil:
		return firm.NewNil(), nil
	case elemTrue:
		return firm.NewBool(true), nil
	case elemFalse:
		return firm.NewBool(false), nil
	case elemInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, firm.NewCorruptError("<Integer>: invalid value", err)
		}
		return firm.NewInt(i), nil
	case elemFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, firm.NewCorruptError("<Float>: invalid value", err)
		}
		return firm.NewFloat(f), nil
	case elemString:
		return firm.NewString(text), nil
	case elemID:
		id, err := firm.ParseID(strings.TrimSpace(text))
		if err != nil {
			return nil, firm.NewCorruptError("<ID>: invalid value", err)
		}
		return firm.NewIDNode(id), nil
	case elemTime:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
		if err != nil {
			return nil, firm.NewCorruptError("<Time>: invalid value", err)
		}
		return firm.NewTime(t), nil
	case elemArray:
		items, err := el.items(depth)
		if err != nil {
			return nil, err
		}
		return firm.NewSeq(items...), nil
	case elemHash:
		entries, err := el.pairs(depth)
		if err != nil {
			return nil, err
		}
		return firm.NewMapNode(entries...), nil
	case elemList, elemSet, elemMap:
		return el.tracked(el.name, depth)
	case elemObject:
		class := el.attrs[attrClass]
		if class == "" {
			return nil, el.corrupt("missing %s attribute", attrClass)
		}
		return el.tracked(class, depth)
	case elemText:
		class := el.attrs[attrClass]
		if class == "" {
			return nil, el.corrupt("missing %s attribute", attrClass)
		}
		return firm.NewText(class, text), nil
	}
	return nil, el.corrupt("unexpected element")
}

// tracked decodes an object or container element, which may be an alias.
func (el *element) tracked(typeName string, depth int) (*firm.Node, error) {
	ref, isAlias, err := el.id(attrAlias)
	if err != nil {
		return nil, err
	}
	if isAlias {
		return firm.NewAlias(typeName, ref), nil
	}
	anchor, _, err := el.id(attrAnchor)
	if err != nil {
		return nil, err
	}

	var out *firm.Node
	switch el.name {
	case elemList, elemSet:
		out, _ = firm.NewContainer(typeName)
		if out.Items, err = el.items(depth); err != nil {
			return nil, err
		}
	case elemMap:
		out, _ = firm.NewContainer(typeName)
		if out.Entries, err = el.pairs(depth); err != nil {
			return nil, err
		}
	default:
		out = firm.NewObject(typeName)
		for _, prop := range el.children {
			if len(prop.children) != 1 {
				return nil, prop.corrupt("property must hold exactly one value")
			}
			v, err := prop.children[0].node(depth + 1)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, firm.Field{Name: prop.name, Value: v})
		}
	}
	out.Anchor = anchor
	return out, nil
}

func (el *element) items(depth int) ([]*firm.Node, error) {
	items := make([]*firm.Node, 0, len(el.children))
	for _, c := range el.children {
		item, err := c.node(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (el *element) pairs(depth int) ([]firm.Entry, error) {
	entries := make([]firm.Entry, 0, len(el.children))
	for _, p := range el.children {
		if p.name != elemPair || len(p.children) != 2 {
			return nil, p.corrupt("expected <%s> with a key and a value", elemPair)
		}
		k, err := p.children[0].node(depth + 1)
		if err != nil {
			return nil, err
		}
		v, err := p.children[1].node(depth + 1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, firm.Entry{Key: k, Value: v})
	}
	return entries, nil
}

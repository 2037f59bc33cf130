// Package yaml provides the YAML engine. Importing it registers the "yaml"
// format.
//
// Shared references use native YAML anchors (&a1) and aliases (*a1).
// Registered types and the tracked containers are dispatched through local
// tags (!Point, !List, !Map, !Set) and ID and time values carry !ID and
// !Time. Untagged documents load as plain values.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/firm"
	"gopkg.in/yaml.v3"
)

const (
	tagID   = "!" + firm.TypeID
	tagTime = "!" + firm.TypeTime
)

func init() {
	firm.MustRegisterFormat(New())
}

// yamlEngine implements firm.Engine for YAML.
type yamlEngine struct{}

// New returns a YAML engine.
func New() firm.Engine {
	return &yamlEngine{}
}

// Name returns the format name.
func (e *yamlEngine) Name() string {
	return "yaml"
}

// ContentType returns the MIME type for YAML.
func (e *yamlEngine) ContentType() string {
	return "application/yaml"
}

// Encode writes root as a YAML document. pretty has no effect.
func (e *yamlEngine) Encode(w io.Writer, root *firm.Node, _ bool) error {
	enc := &encoder{anchors: make(map[int]*yaml.Node)}
	n, err := enc.node(root)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	ye := yaml.NewEncoder(&buf)
	ye.SetIndent(2)
	if err := ye.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{n}}); err != nil {
		return err
	}
	if err := ye.Close(); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Decode parses a YAML document into a node tree.
func (e *yamlEngine) Decode(data []byte) (*firm.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	dec := &decoder{
		anchors:   make(map[*yaml.Node]anchor),
		expanding: make(map[*yaml.Node]bool),
	}
	return dec.node(doc.Content[0], 0)
}

type encoder struct {
	anchors map[int]*yaml.Node
}

func anchorName(id int) string {
	return "a" + strconv.Itoa(id)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func (e *encoder) node(n *firm.Node) (*yaml.Node, error) {
	switch n.Kind {
	case firm.KindNil:
		return scalar("!!null", "null"), nil
	case firm.KindBool:
		return scalar("!!bool", strconv.FormatBool(n.Bool())), nil
	case firm.KindInt:
		return scalar("!!int", strconv.FormatInt(n.Int(), 10)), nil
	case firm.KindFloat:
		return scalar("!!float", formatFloat(n.Float())), nil
	case firm.KindString:
		return scalar("!!str", n.Str()), nil
	case firm.KindID:
		return scalar(tagID, n.ID().String()), nil
	case firm.KindTime:
		return scalar(tagTime, n.Time().Format(time.RFC3339Nano)), nil
	case firm.KindSeq:
		return e.sequence("!!seq", n, 0)
	case firm.KindList, firm.KindSet:
		return e.sequence("!"+n.Type, n, n.Anchor)
	case firm.KindMap:
		return e.mapping("!!map", n.Entries, 0)
	case firm.KindDict:
		return e.mapping("!"+firm.TypeMap, n.Entries, n.Anchor)
	case firm.KindObject:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!" + n.Type}
		e.anchor(out, n.Anchor)
		for _, f := range n.Fields {
			v, err := e.node(f.Value)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, scalar("!!str", f.Name), v)
		}
		return out, nil
	case firm.KindText:
		return scalar("!"+n.Type, n.Str()), nil
	case firm.KindAlias:
		target, ok := e.anchors[n.Ref]
		if !ok {
			return nil, fmt.Errorf("alias to unknown anchor %d", n.Ref)
		}
		return &yaml.Node{Kind: yaml.AliasNode, Value: target.Anchor, Alias: target}, nil
	}
	return nil, fmt.Errorf("unexpected node kind %s", n.Kind)
}

func (e *encoder) anchor(out *yaml.Node, id int) {
	if id == 0 {
		return
	}
	out.Anchor = anchorName(id)
	e.anchors[id] = out
}

// sequence registers the anchor before the items so a container that holds
// itself resolves its own alias.
func (e *encoder) sequence(tag string, n *firm.Node, id int) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.SequenceNode, Tag: tag}
	e.anchor(out, id)
	for _, item := range n.Items {
		v, err := e.node(item)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, v)
	}
	return out, nil
}

func (e *encoder) mapping(tag string, entries []firm.Entry, id int) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: tag}
	e.anchor(out, id)
	for _, entry := range entries {
		k, err := e.node(entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := e.node(entry.Value)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, k, v)
	}
	return out, nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// anchor is a tracked node seen during decoding.
type anchor struct {
	id       int
	typeName string
}

type decoder struct {
	anchors   map[*yaml.Node]anchor
	next      int
	expanding map[*yaml.Node]bool
}

func (d *decoder) node(n *yaml.Node, depth int) (*firm.Node, error) {
	if depth > firm.MaxDepth {
		return nil, firm.ErrDepthExceeded
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return firm.NewNil(), nil
		}
		return d.node(n.Content[0], depth)
	case yaml.AliasNode:
		return d.alias(n, depth)
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.SequenceNode:
		return d.sequence(n, depth)
	case yaml.MappingNode:
		return d.mapping(n, depth)
	}
	return nil, fmt.Errorf("line %d: unexpected yaml node kind %d", n.Line, n.Kind)
}

// alias refers to a tracked anchor, or expands an anchored plain value in
// place since plain values have no identity.
func (d *decoder) alias(n *yaml.Node, depth int) (*firm.Node, error) {
	if n.Alias == nil {
		return nil, fmt.Errorf("line %d: unresolved alias %q", n.Line, n.Value)
	}
	if a, ok := d.anchors[n.Alias]; ok {
		return firm.NewAlias(a.typeName, a.id), nil
	}
	if d.expanding[n.Alias] {
		return nil, firm.NewCorruptError(fmt.Sprintf("line %d: recursive alias %q to an untracked value", n.Line, n.Value), nil)
	}
	d.expanding[n.Alias] = true
	defer delete(d.expanding, n.Alias)
	return d.node(n.Alias, depth+1)
}

// track assigns an anchor id to a tracked node carrying a YAML anchor.
func (d *decoder) track(n *yaml.Node, out *firm.Node) {
	if n.Anchor == "" {
		return
	}
	d.next++
	out.Anchor = d.next
	d.anchors[n] = anchor{id: d.next, typeName: out.Type}
}

func (d *decoder) scalar(n *yaml.Node) (*firm.Node, error) {
	switch tag := n.ShortTag(); tag {
	case "!!null":
		return firm.NewNil(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return firm.NewBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return firm.NewInt(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return firm.NewFloat(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return firm.NewFloat(f), nil
	case "!!str":
		return firm.NewString(n.Value), nil
	case "!!binary":
		var b []byte
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return firm.NewString(string(b)), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, err
		}
		return firm.NewTime(t), nil
	case tagID:
		id, err := firm.ParseID(n.Value)
		if err != nil {
			return nil, firm.NewCorruptError(fmt.Sprintf("line %d: invalid id", n.Line), err)
		}
		return firm.NewIDNode(id), nil
	case tagTime:
		t, err := time.Parse(time.RFC3339Nano, n.Value)
		if err != nil {
			return nil, firm.NewCorruptError(fmt.Sprintf("line %d: invalid time", n.Line), err)
		}
		return firm.NewTime(t), nil
	default:
		// A local tag names a text value.
		if name, ok := strings.CutPrefix(tag, "!"); ok && name != "" && !strings.HasPrefix(name, "!") {
			return firm.NewText(name, n.Value), nil
		}
		return nil, firm.NewCorruptError(fmt.Sprintf("line %d: unexpected scalar tag %s", n.Line, tag), nil)
	}
}

func (d *decoder) sequence(n *yaml.Node, depth int) (*firm.Node, error) {
	var out *firm.Node
	switch tag := n.ShortTag(); tag {
	case "!!seq":
		out = firm.NewSeq()
	case "!" + firm.TypeList, "!" + firm.TypeSet:
		out, _ = firm.NewContainer(strings.TrimPrefix(tag, "!"))
		d.track(n, out)
	default:
		return nil, firm.NewCorruptError(fmt.Sprintf("line %d: unexpected sequence tag %s", n.Line, tag), nil)
	}
	for _, c := range n.Content {
		item, err := d.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (d *decoder) mapping(n *yaml.Node, depth int) (*firm.Node, error) {
	tag := n.ShortTag()
	if tag != "!!map" && tag != "!"+firm.TypeMap {
		return d.object(n, strings.TrimPrefix(tag, "!"), depth)
	}
	var out *firm.Node
	if tag == "!!map" {
		out = firm.NewMapNode()
	} else {
		out, _ = firm.NewContainer(firm.TypeMap)
		d.track(n, out)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, err := d.node(n.Content[i], depth+1)
		if err != nil {
			return nil, err
		}
		v, err := d.node(n.Content[i+1], depth+1)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, firm.Entry{Key: k, Value: v})
	}
	return out, nil
}

func (d *decoder) object(n *yaml.Node, typeName string, depth int) (*firm.Node, error) {
	if typeName == "" || strings.HasPrefix(typeName, "!") {
		return nil, firm.NewCorruptError(fmt.Sprintf("line %d: unexpected mapping tag %s", n.Line, n.ShortTag()), nil)
	}
	out := firm.NewObject(typeName)
	d.track(n, out)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, firm.NewCorruptError(fmt.Sprintf("line %d: property name must be a scalar", key.Line), nil)
		}
		v, err := d.node(n.Content[i+1], depth+1)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, firm.Field{Name: key.Value, Value: v})
	}
	return out, nil
}

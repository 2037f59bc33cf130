package firm

import (
	"fmt"
	"time"
)

// Kind identifies the shape of a Node.
type Kind uint8

// Node kinds.
const (
	KindNil    Kind = iota
	KindBool        // Value is bool
	KindInt         // Value is int64
	KindFloat       // Value is float64
	KindString      // Value is string
	KindID          // Value is ID
	KindTime        // Value is time.Time
	KindSeq         // native sequence, Items
	KindMap         // native map, Entries
	KindList        // tracked *List, Items
	KindDict        // tracked *Map, Entries
	KindSet         // tracked *Set, Items
	KindObject      // registered type, Fields
	KindAlias       // reference to an anchored node, Type and Ref
	KindText        // text value, Type names it and Value is string
)

var kindNames = [...]string{
	KindNil:    "nil",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindID:     "id",
	KindTime:   "time",
	KindSeq:    "seq",
	KindMap:    "map",
	KindList:   "list",
	KindDict:   "dict",
	KindSet:    "set",
	KindObject: "object",
	KindAlias:  "alias",
	KindText:   "text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Tracked reports whether nodes of this kind take part in anchor/alias tracking.
func (k Kind) Tracked() bool {
	switch k {
	case KindList, KindDict, KindSet, KindObject:
		return true
	}
	return false
}

// Built-in type names. These are always constructible on load and may not be
// used as names of registered types.
const (
	TypeList  = "List"
	TypeMap   = "Map"
	TypeSet   = "Set"
	TypeID    = "ID"
	TypeTime  = "Time"
	TypeFloat = "Float"
	TypePairs = "Pairs"
)

// Node is the format-neutral tree produced by a dump and consumed by a load.
// Engines render a Node tree to bytes and parse bytes back into one.
type Node struct {
	Kind    Kind
	Type    string  // type name of objects, tracked containers and aliases
	Anchor  int     // anchor id, set only when an alias refers to this node
	Ref     int     // anchor id an alias refers to
	Value   any     // scalar payload
	Items   []*Node // KindSeq, KindList, KindSet
	Entries []Entry // KindMap, KindDict
	Fields  []Field // KindObject
}

// Entry is a key/value pair of a map node.
type Entry struct {
	Key   *Node
	Value *Node
}

// Field is a named property value of an object node.
type Field struct {
	Name  string
	Value *Node
}

// NewNil returns a nil node.
func NewNil() *Node { return &Node{Kind: KindNil} }

// NewBool returns a bool node.
func NewBool(b bool) *Node { return &Node{Kind: KindBool, Value: b} }

// NewInt returns an integer node.
func NewInt(i int64) *Node { return &Node{Kind: KindInt, Value: i} }

// NewFloat returns a float node.
func NewFloat(f float64) *Node { return &Node{Kind: KindFloat, Value: f} }

// NewString returns a string node.
func NewString(s string) *Node { return &Node{Kind: KindString, Value: s} }

// NewIDNode returns an ID node.
func NewIDNode(id ID) *Node { return &Node{Kind: KindID, Type: TypeID, Value: id} }

// NewTime returns a time node.
func NewTime(t time.Time) *Node { return &Node{Kind: KindTime, Type: TypeTime, Value: t} }

// NewSeq returns a native sequence node.
func NewSeq(items ...*Node) *Node { return &Node{Kind: KindSeq, Items: items} }

// NewMapNode returns a native map node.
func NewMapNode(entries ...Entry) *Node { return &Node{Kind: KindMap, Entries: entries} }

// NewObject returns an object node of the named type.
func NewObject(typeName string, fields ...Field) *Node {
	return &Node{Kind: KindObject, Type: typeName, Fields: fields}
}

// NewText returns a text value node of the named text type.
func NewText(typeName, s string) *Node {
	return &Node{Kind: KindText, Type: typeName, Value: s}
}

// NewAlias returns an alias referring to anchor id of the named type.
func NewAlias(typeName string, ref int) *Node {
	return &Node{Kind: KindAlias, Type: typeName, Ref: ref}
}

// NewContainer returns a tracked container node of the given built-in type
// name (TypeList, TypeMap or TypeSet).
func NewContainer(typeName string) (*Node, error) {
	switch typeName {
	case TypeList:
		return &Node{Kind: KindList, Type: TypeList}, nil
	case TypeMap:
		return &Node{Kind: KindDict, Type: TypeMap}, nil
	case TypeSet:
		return &Node{Kind: KindSet, Type: TypeSet}, nil
	}
	return nil, newCorruptError("", fmt.Sprintf("%q is not a container type", typeName), nil)
}

// Bool returns the payload of a bool node.
func (n *Node) Bool() bool {
	b, _ := n.Value.(bool)
	return b
}

// Int returns the payload of an integer node.
func (n *Node) Int() int64 {
	i, _ := n.Value.(int64)
	return i
}

// Float returns the payload of a float node.
func (n *Node) Float() float64 {
	f, _ := n.Value.(float64)
	return f
}

// Str returns the payload of a string or text node.
func (n *Node) Str() string {
	s, _ := n.Value.(string)
	return s
}

// ID returns the payload of an ID node.
func (n *Node) ID() ID {
	id, _ := n.Value.(ID)
	return id
}

// Time returns the payload of a time node.
func (n *Node) Time() time.Time {
	t, _ := n.Value.(time.Time)
	return t
}

// Field returns the value of the named field of an object node.
func (n *Node) Field(name string) (*Node, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Walk calls fn for n and every node below it in document order.
// Walking stops at the first error.
func (n *Node) Walk(fn func(*Node) error) error {
	if n == nil {
		return nil
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, item := range n.Items {
		if err := item.Walk(fn); err != nil {
			return err
		}
	}
	for _, e := range n.Entries {
		if err := e.Key.Walk(fn); err != nil {
			return err
		}
		if err := e.Value.Walk(fn); err != nil {
			return err
		}
	}
	for _, f := range n.Fields {
		if err := f.Value.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

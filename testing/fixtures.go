// Package testing provides fixtures and a conformance suite for firm engines.
//
// Importing the package registers the fixture types and the JSON engine,
// which nested serialization fixtures use.
package testing

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/netip"
	"reflect"
	"regexp"

	"github.com/zoobzio/firm"
	_ "github.com/zoobzio/firm/json"
)

// Point is registered by convention over its exported fields.
type Point struct {
	firm.Toggle
	X, Y int
}

// NewPoint returns a point.
func NewPoint(x, y int) *Point { return &Point{X: x, Y: y} }

// Rect has read-only accessors and is rebuilt by a factory.
type Rect struct {
	firm.Toggle
	x, y, width, height int
}

// NewRect returns a rectangle.
func NewRect(x, y, w, h int) *Rect { return &Rect{x: x, y: y, width: w, height: h} }

func (r *Rect) X() int      { return r.x }
func (r *Rect) Y() int      { return r.y }
func (r *Rect) Width() int  { return r.width }
func (r *Rect) Height() int { return r.height }

// Equal reports whether both rectangles have the same geometry.
func (r *Rect) Equal(o *Rect) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.x == o.x && r.y == o.y && r.width == o.width && r.height == o.height
}

func newRectFromContainer(_ context.Context, c firm.Container) (*Rect, error) {
	var dims [4]int
	for i, id := range []string{"x", "y", "width", "height"} {
		v, err := firm.Value[int](c, id)
		if err != nil {
			return nil, err
		}
		dims[i] = v
	}
	return NewRect(dims[0], dims[1], dims[2], dims[3]), nil
}

// Colour exposes its channels through a single combined accessor.
type Colour struct {
	red, green, blue, alpha int
}

// NewColour returns an opaque colour.
func NewColour(r, g, b int) *Colour { return &Colour{red: r, green: g, blue: b, alpha: 255} }

// RGBA returns the channels.
func (c *Colour) RGBA() (int, int, int, int) { return c.red, c.green, c.blue, c.alpha }

func (c *Colour) channels(v ...[]int) []int {
	if len(v) > 0 && len(v[0]) == 4 {
		c.red, c.green, c.blue, c.alpha = v[0][0], v[0][1], v[0][2], v[0][3]
	}
	return []int{c.red, c.green, c.blue, c.alpha}
}

// PropTest declares one property through each kind of accessor.
type PropTest struct {
	PropA string
	propB int64
	propC string
	propD float64
	propE []int
	propF map[string]int
	propG [2]int
}

// NewPropTest returns a PropTest with every property set.
func NewPropTest() *PropTest {
	return &PropTest{
		PropA: "string",
		propB: 123,
		propC: "symbol",
		propD: 100.123,
		propE: []int{1, 2, 3},
		propF: map[string]int{"_1": 1, "_2": 2, "_3": 3},
		propG: [2]int{1, 10},
	}
}

// Equal compares all properties.
func (p *PropTest) Equal(o *PropTest) bool {
	return p.PropA == o.PropA && p.propB == o.propB && p.propC == o.propC &&
		p.propD == o.propD && reflect.DeepEqual(p.propE, o.propE) &&
		reflect.DeepEqual(p.propF, o.propF) && p.propG == o.propG
}

// SerializePropC gets prop_c without arguments and sets it with one.
func (p *PropTest) SerializePropC(v ...string) string {
	if len(v) > 0 {
		p.propC = v[0]
	}
	return p.propC
}

// Range returns prop_g.
func (p *PropTest) Range() [2]int { return p.propG }

// SetRange sets prop_g.
func (p *PropTest) SetRange(r [2]int) { p.propG = r }

func propHandler(_ context.Context, p *PropTest, id string, val ...any) (any, error) {
	switch id {
	case "prop_d":
		if len(val) == 0 {
			return p.propD, nil
		}
		f, err := firm.As[float64](val[0])
		p.propD = f
		return nil, err
	case "prop_e":
		if len(val) == 0 {
			return p.propE, nil
		}
		e, err := firm.As[[]int](val[0])
		p.propE = e
		return nil, err
	}
	return nil, fmt.Errorf("unknown property %s", id)
}

// SerializedBase has three plain properties.
type SerializedBase struct {
	A int
	B string
	C any
}

// SerializedDerived excludes the inherited c and always holds "FIXED" there.
type SerializedDerived struct {
	SerializedBase
	D float64
}

// NewSerializedDerived returns a derived instance.
func NewSerializedDerived(a int, b string, d float64) *SerializedDerived {
	return &SerializedDerived{SerializedBase: SerializedBase{A: a, B: b, C: "FIXED"}, D: d}
}

// Bag holds items restored in front of any it already holds.
type Bag struct {
	Items []any
}

// SetItems prepends restored items.
func (b *Bag) SetItems(items []any) {
	b.Items = append(items, b.Items...)
}

// FixedBag always ends with a disabled fixed point that is never written.
type FixedBag struct {
	Bag
}

// NewFixedBag returns a bag holding items and the fixed point.
func NewFixedBag(items ...any) *FixedBag {
	b := &FixedBag{Bag: Bag{Items: items}}
	b.addFixed()
	return b
}

func (b *FixedBag) addFixed() {
	fixed := NewPoint(30, 30)
	fixed.DisableSerialize()
	b.Items = append(b.Items, fixed)
}

// ExtraBag keeps a disabled extra item in its list and writes it through
// a forced property instead.
type ExtraBag struct {
	Bag
	Extra *Rect
}

// NewExtraBag returns a bag holding items and extra.
func NewExtraBag(extra *Rect, items ...any) *ExtraBag {
	b := &ExtraBag{Bag: Bag{Items: items}}
	b.setExtra(extra)
	return b
}

func (b *ExtraBag) setExtra(extra *Rect) {
	b.Extra = extra
	if extra != nil {
		extra.DisableSerialize()
		b.Items = append(b.Items, extra)
	}
}

// Identifiable carries a unique id.
type Identifiable struct {
	ID  firm.ID `firm:"id"`
	Sym string
}

// NewIdentifiable returns an instance with a fresh id.
func NewIdentifiable(sym string) *Identifiable {
	return &Identifiable{ID: firm.NewID(), Sym: sym}
}

// Catalog maps arbitrary keys to values.
type Catalog struct {
	Entries map[any]any
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog { return &Catalog{Entries: make(map[any]any)} }

// RefUser refers to identifiables by id only.
type RefUser struct {
	Ref1, Ref2, Ref3 firm.ID
}

// Aliasable is a plain tracked type.
type Aliasable struct {
	Name        string
	Description string
}

// DerivedAliasable extends Aliasable.
type DerivedAliasable struct {
	Aliasable
	Extra string
}

// Shape is placed on a Grid.
type Shape struct {
	Kind string
}

// ShapeOwner owns shapes.
type ShapeOwner struct {
	Shapes []*Shape
}

// Dimensions is a value type written in full at every occurrence.
type Dimensions struct {
	Rows, Columns int
}

// Grid places the shapes it owns in cells.
type Grid struct {
	ShapeOwner
	Dimensions Dimensions
	Cells      []*Shape
}

// NewGrid returns an empty grid.
func NewGrid(rows, columns int) *Grid {
	return &Grid{Dimensions: Dimensions{rows, columns}, Cells: make([]*Shape, rows*columns)}
}

// PlaceAt adds s to the grid.
func (g *Grid) PlaceAt(row, col int, s *Shape) *Grid {
	g.Shapes = append(g.Shapes, s)
	g.Cells[row*g.Dimensions.Columns+col] = s
	return g
}

// At returns the shape in a cell.
func (g *Grid) At(row, col int) *Shape {
	return g.Cells[row*g.Dimensions.Columns+col]
}

// House and Person reference each other.
type House struct {
	Address string
	City    string
	Owners  []*Person
}

// AddOwner links p and h both ways.
func (h *House) AddOwner(p *Person) {
	h.Owners = append(h.Owners, p)
	p.Houses = append(p.Houses, h)
}

// Person owns houses.
type Person struct {
	Name   string
	TaxID  int64 `firm:"tax_id"`
	Houses []*House
}

// Cyclic holds a list that may contain itself.
type Cyclic struct {
	List []any
}

// Nested serializes its value into an embedded JSON document.
type Nested struct {
	Value any
	// Depths records the session depth seen by the accessors.
	Depths []int
}

func nestedGet(ctx context.Context, n *Nested) (string, error) {
	n.Depths = append(n.Depths, firm.SessionFrom(ctx).Depth())
	data, err := firm.Serialize(ctx, n.Value, firm.WithFormat("json"))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

func nestedSet(ctx context.Context, n *Nested, s string) error {
	n.Depths = append(n.Depths, firm.SessionFrom(ctx).Depth())
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	n.Value, err = firm.Deserialize(ctx, data, firm.WithFormat("json"))
	return err
}

func symbolOf(v int) string {
	switch v {
	case 1:
		return "one"
	case 2:
		return "two"
	case 3:
		return "three"
	}
	return "none"
}

// MethodFinalizer completes itself through FinalizeFromSerialized.
type MethodFinalizer struct {
	Value  int
	symbol string
}

// NewMethodFinalizer returns a finalized instance.
func NewMethodFinalizer(v int) *MethodFinalizer {
	return &MethodFinalizer{Value: v, symbol: symbolOf(v)}
}

// Symbol returns the derived state.
func (m *MethodFinalizer) Symbol() string { return m.symbol }

// FinalizeFromSerialized derives the symbol.
func (m *MethodFinalizer) FinalizeFromSerialized() error {
	m.symbol = symbolOf(m.Value)
	return nil
}

// FuncFinalizer is completed by a registered finalizer function.
type FuncFinalizer struct {
	Value  int
	Symbol string
}

// NewFuncFinalizer returns a finalized instance.
func NewFuncFinalizer(v int) *FuncFinalizer {
	return &FuncFinalizer{Value: v, Symbol: symbolOf(v)}
}

// Optionals exercises optional and omitted properties.
type Optionals struct {
	Name  string
	Level int
	Note  string
	Tags  []string
}

// Tagged declares its properties through struct tags.
type Tagged struct {
	Title   string   `firm:"title"`
	Count   int      `firm:"count,omitempty"`
	Labels  []string `firm:"labels,optional"`
	Ignored string
}

// Ledger holds values written as text.
type Ledger struct {
	Rate    *big.Rat
	Total   *big.Int
	Pattern *regexp.Regexp
	Phase   complex128
	Drift   complex64
	Host    netip.Addr
}

// Link is a singly linked chain.
type Link struct {
	Name string
	Next *Link
}

// NewChain returns a chain of n links named 0 to n-1.
func NewChain(n int) *Link {
	var head *Link
	for i := n - 1; i >= 0; i-- {
		head = &Link{Name: fmt.Sprint(i), Next: head}
	}
	return head
}

// Len returns the number of links from l.
func (l *Link) Len() int {
	n := 0
	for ; l != nil; l = l.Next {
		n++
	}
	return n
}

func init() {
	firm.MustRegisterText[netip.Addr]("Addr")

	firm.MustRegister[Point](firm.WithProperties("x", "y"))
	firm.MustRegister[Rect](
		firm.WithProperties("x", "y", "width", "height"),
		firm.WithFactory(newRectFromContainer),
	)
	firm.MustRegister[Colour](firm.WithCombined("colour", (*Colour).channels))
	firm.MustRegister[PropTest](
		firm.WithProperty("prop_a"),
		firm.WithAccessor("prop_b",
			func(p *PropTest) int64 { return p.propB },
			func(p *PropTest, v int64) { p.propB = v }),
		firm.WithMethod("prop_c", "SerializePropC"),
		firm.WithHandler(propHandler, []string{"prop_d", "prop_e"}),
		firm.WithAccessorContext("prop_f",
			func(_ context.Context, p *PropTest) (map[string]int, error) { return p.propF, nil },
			func(_ context.Context, p *PropTest, v map[string]int) error { p.propF = v; return nil }),
		firm.WithMethods("prop_g", "Range", "SetRange"),
	)

	firm.MustRegister[SerializedBase](firm.WithProperties("a", "b", "c"))
	firm.MustRegister[SerializedDerived](
		firm.Extends(func(d *SerializedDerived) *SerializedBase { return &d.SerializedBase }),
		firm.WithProperties("d"),
		firm.WithExcludes("c"),
		firm.WithFinalizer(func(d *SerializedDerived) error {
			d.C = "FIXED"
			return nil
		}),
	)

	firm.MustRegister[Bag](firm.WithProperties("items"))
	firm.MustRegister[FixedBag](
		firm.Extends(func(b *FixedBag) *Bag { return &b.Bag }),
		firm.WithFinalizer(func(b *FixedBag) error {
			b.addFixed()
			return nil
		}),
	)
	firm.MustRegister[ExtraBag](
		firm.Extends(func(b *ExtraBag) *Bag { return &b.Bag }),
		firm.WithAccessor("extra",
			func(b *ExtraBag) *Rect { return b.Extra },
			(*ExtraBag).setExtra,
			firm.Force()),
	)

	firm.MustRegister[Identifiable](firm.WithProperties("id", "sym"))
	firm.MustRegister[Catalog](firm.WithProperties("entries"))
	firm.MustRegister[RefUser](firm.WithProperties("ref1", "ref2", "ref3"))
	firm.MustRegister[Aliasable](firm.WithProperties("name", "description"))
	firm.MustRegister[DerivedAliasable](
		firm.Extends(func(d *DerivedAliasable) *Aliasable { return &d.Aliasable }),
		firm.WithProperties("extra"),
	)

	firm.MustRegister[Shape](firm.WithProperties("kind"))
	firm.MustRegister[ShapeOwner](firm.WithProperties("shapes"))
	firm.MustRegister[Dimensions](firm.WithProperties("rows", "columns"), firm.WithoutAliases())
	firm.MustRegister[Grid](
		firm.Extends(func(g *Grid) *ShapeOwner { return &g.ShapeOwner }),
		firm.WithProperties("dimensions", "cells"),
	)

	firm.MustRegister[House](firm.WithProperties("address", "city", "owners"))
	firm.MustRegister[Person](firm.WithProperties("name", "tax_id", "houses"))
	firm.MustRegister[Cyclic](firm.WithProperties("list"))
	firm.MustRegister[Nested](firm.WithAccessorContext("nested", nestedGet, nestedSet))

	firm.MustRegister[MethodFinalizer](firm.WithProperties("value"))
	firm.MustRegister[FuncFinalizer](
		firm.WithProperties("value"),
		firm.WithFinalizer(func(f *FuncFinalizer) error {
			f.Symbol = symbolOf(f.Value)
			return nil
		}),
	)

	firm.MustRegister[Optionals](
		firm.WithProperty("name"),
		firm.WithProperty("level", firm.Optional(1)),
		firm.WithProperty("note", firm.OptionalFunc(func(obj any, _ string) any {
			return obj.(*Optionals).Name + "!"
		})),
		firm.WithProperty("tags", firm.Optional(nil)),
	)
	firm.MustRegister[Tagged](firm.WithName("TaggedRecord"), firm.WithTagged())
	firm.MustRegister[Ledger](firm.WithProperties("rate", "total", "pattern", "phase", "drift", "host"))
	firm.MustRegister[Link](firm.WithProperties("name", "next"))
}

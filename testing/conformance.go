package testing

import (
	"context"
	"errors"
	"math"
	"math/big"
	"net/netip"
	"reflect"
	"regexp"
	gotesting "testing"
	"time"

	"github.com/zoobzio/firm"
)

// RoundTrip dumps v with e and loads the result.
func RoundTrip(t gotesting.TB, e firm.Engine, v any, opts ...firm.CallOption) any {
	t.Helper()
	ctx := context.Background()
	data, err := firm.Dump(ctx, e, v, opts...)
	if err != nil {
		t.Fatalf("Dump(%T) error: %v", v, err)
	}
	out, err := firm.Load(ctx, e, data, opts...)
	if err != nil {
		t.Fatalf("Load(%T) error: %v\n%s", v, err, data)
	}
	return out
}

// RoundTripAs is RoundTrip with the result converted to T.
func RoundTripAs[T any](t gotesting.TB, e firm.Engine, v any, opts ...firm.CallOption) T {
	t.Helper()
	out := RoundTrip(t, e, v, opts...)
	got, err := firm.As[T](out)
	if err != nil {
		t.Fatalf("result %T is not %T: %v", out, *new(T), err)
	}
	return got
}

// RunConformance checks that e round-trips every feature of the core:
// scalars, text values, collections, all accessor kinds, inheritance, disabled values,
// shared references, cycles, finalizers and the load allowlist.
func RunConformance(t *gotesting.T, e firm.Engine) {
	t.Run("Scalars", func(t *gotesting.T) { testScalars(t, e) })
	t.Run("SpecialFloats", func(t *gotesting.T) { testSpecialFloats(t, e) })
	t.Run("Collections", func(t *gotesting.T) { testCollections(t, e) })
	t.Run("Properties", func(t *gotesting.T) { testProperties(t, e) })
	t.Run("Data", func(t *gotesting.T) { testData(t, e) })
	t.Run("Composition", func(t *gotesting.T) { testComposition(t, e) })
	t.Run("Exclusion", func(t *gotesting.T) { testExclusion(t, e) })
	t.Run("Disable", func(t *gotesting.T) { testDisable(t, e) })
	t.Run("IDs", func(t *gotesting.T) { testIDs(t, e) })
	t.Run("Aliases", func(t *gotesting.T) { testAliases(t, e) })
	t.Run("InheritedAliases", func(t *gotesting.T) { testInheritedAliases(t, e) })
	t.Run("CyclicReferences", func(t *gotesting.T) { testCyclicReferences(t, e) })
	t.Run("CyclicStruct", func(t *gotesting.T) { testCyclicStruct(t, e) })
	t.Run("CyclicContainers", func(t *gotesting.T) { testCyclicContainers(t, e) })
	t.Run("ComplexKeys", func(t *gotesting.T) { testComplexKeys(t, e) })
	t.Run("Nested", func(t *gotesting.T) { testNested(t, e) })
	t.Run("DeepChain", func(t *gotesting.T) { testDeepChain(t, e) })
	t.Run("TextValues", func(t *gotesting.T) { testTextValues(t, e) })
	t.Run("Finalizers", func(t *gotesting.T) { testFinalizers(t, e) })
	t.Run("Optional", func(t *gotesting.T) { testOptional(t, e) })
	t.Run("Tagged", func(t *gotesting.T) { testTagged(t, e) })
	t.Run("Pretty", func(t *gotesting.T) { testPretty(t, e) })
	t.Run("Deterministic", func(t *gotesting.T) { testDeterministic(t, e) })
	t.Run("Security", func(t *gotesting.T) { testSecurity(t, e) })
}

func testScalars(t *gotesting.T, e firm.Engine) {
	id := firm.NewID()
	stamp := time.Date(2024, 3, 9, 17, 45, 12, 123456789, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"true", true, true},
		{"false", false, false},
		{"int", 42, int64(42)},
		{"negative", int64(-7), int64(-7)},
		{"max int64", int64(math.MaxInt64), int64(math.MaxInt64)},
		{"min int64", int64(math.MinInt64), int64(math.MinInt64)},
		{"uint", uint16(9), int64(9)},
		{"float", 100.123, 100.123},
		{"integral float", 2.0, 2.0},
		{"negative float", -0.5, -0.5},
		{"string", "hello", "hello"},
		{"empty string", "", ""},
		{"numeric string", "123", "123"},
		{"bool string", "true", "true"},
		{"markup string", `a <b> & "c" 'd'`, `a <b> & "c" 'd'`},
		{"multiline string", "line\nbreak", "line\nbreak"},
		{"unicode string", "grüße ✓", "grüße ✓"},
		{"scheme-like string", "@type", "@type"},
		{"id", id, id},
		{"zero id", firm.NilID, firm.NilID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *gotesting.T) {
			got := RoundTrip(t, e, tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v (%T), want %#v (%T)", got, got, tt.want, tt.want)
			}
		})
	}

	t.Run("time", func(t *gotesting.T) {
		got := RoundTripAs[time.Time](t, e, stamp)
		if !got.Equal(stamp) {
			t.Errorf("got %v, want %v", got, stamp)
		}
	})
}

func testSpecialFloats(t *gotesting.T, e firm.Engine) {
	got := RoundTripAs[[]float64](t, e, []float64{math.Inf(1), math.Inf(-1), math.NaN(), 0.25})
	if len(got) != 4 {
		t.Fatalf("got %d floats, want 4", len(got))
	}
	if !math.IsInf(got[0], 1) || !math.IsInf(got[1], -1) || !math.IsNaN(got[2]) || got[3] != 0.25 {
		t.Errorf("got %v", got)
	}
}

func testCollections(t *gotesting.T, e firm.Engine) {
	seq := RoundTrip(t, e, []any{1, nil, 2})
	if want := []any{int64(1), nil, int64(2)}; !reflect.DeepEqual(seq, want) {
		t.Errorf("sequence = %#v, want %#v", seq, want)
	}

	m := RoundTrip(t, e, map[string]any{"b": 2, "a": []any{"x"}, "@c": true, "empty": map[string]any{}})
	want := map[string]any{"b": int64(2), "a": []any{"x"}, "@c": true, "empty": map[string]any{}}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("map = %#v, want %#v", m, want)
	}

	keyed := RoundTrip(t, e, map[int]string{1: "one", 2: "two"})
	if want := map[any]any{int64(1): "one", int64(2): "two"}; !reflect.DeepEqual(keyed, want) {
		t.Errorf("int keyed map = %#v, want %#v", keyed, want)
	}

	typed := RoundTripAs[map[string][]int](t, e, map[string][]int{"a": {1, 2}, "b": nil})
	if !reflect.DeepEqual(typed, map[string][]int{"a": {1, 2}, "b": nil}) {
		t.Errorf("typed map = %#v", typed)
	}

	set, err := firm.NewSet("one", "two", "three")
	if err != nil {
		t.Fatalf("NewSet error: %v", err)
	}
	gotSet := RoundTripAs[*firm.Set](t, e, set)
	if gotSet.Len() != 3 || !gotSet.Has("one") || !gotSet.Has("two") || !gotSet.Has("three") {
		t.Errorf("set = %v", gotSet.Items())
	}

	dict := firm.NewMap()
	_ = dict.Put("z", 1)
	_ = dict.Put(int64(5), "five")
	gotDict := RoundTripAs[*firm.Map](t, e, dict)
	if !reflect.DeepEqual(gotDict.Keys(), []any{"z", int64(5)}) {
		t.Errorf("map keys = %v, want insertion order", gotDict.Keys())
	}
	if v, _ := gotDict.Get(int64(5)); v != "five" {
		t.Errorf("map[5] = %v", v)
	}

	list := RoundTripAs[*firm.List](t, e, firm.NewList("a", 1, nil))
	if !reflect.DeepEqual(list.Items(), []any{"a", int64(1), nil}) {
		t.Errorf("list = %#v", list.Items())
	}
}

func testProperties(t *gotesting.T, e firm.Engine) {
	in := NewPropTest()
	got := RoundTripAs[*PropTest](t, e, in)
	if !in.Equal(got) {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func testData(t *gotesting.T, e firm.Engine) {
	p := RoundTripAs[*Point](t, e, NewPoint(10, 90))
	if p.X != 10 || p.Y != 90 {
		t.Errorf("point = %+v", p)
	}

	r := RoundTripAs[*Rect](t, e, NewRect(10, 20, 100, 900))
	if !r.Equal(NewRect(10, 20, 100, 900)) {
		t.Errorf("rect = %+v", r)
	}

	c := RoundTripAs[*Colour](t, e, NewColour(255, 10, 0))
	if r, g, b, a := c.RGBA(); r != 255 || g != 10 || b != 0 || a != 255 {
		t.Errorf("colour = %d %d %d %d", r, g, b, a)
	}
}

func testComposition(t *gotesting.T, e firm.Engine) {
	points := RoundTripAs[[]*Point](t, e, []*Point{NewPoint(10, 90), NewPoint(20, 80)})
	if len(points) != 2 || points[0].X != 10 || points[1].Y != 80 {
		t.Errorf("points = %+v", points)
	}

	byName := RoundTripAs[map[string]*Point](t, e, map[string]*Point{"1": NewPoint(1, 2), "2": NewPoint(3, 4)})
	if len(byName) != 2 || byName["2"].X != 3 {
		t.Errorf("map = %+v", byName)
	}

	// A registered struct held by value has no identity and is restored as a copy.
	values := RoundTripAs[[]Point](t, e, []Point{{X: 1, Y: 1}, {X: 2, Y: 2}})
	if len(values) != 2 || values[1].X != 2 {
		t.Errorf("values = %+v", values)
	}
}

func testExclusion(t *gotesting.T, e firm.Engine) {
	base := RoundTripAs[*SerializedBase](t, e, &SerializedBase{A: 1, B: "hello", C: "World"})
	if base.A != 1 || base.B != "hello" || base.C != "World" {
		t.Errorf("base = %+v", base)
	}

	d := RoundTripAs[*SerializedDerived](t, e, NewSerializedDerived(2, "derived", 103.5))
	if d.A != 2 || d.B != "derived" || d.D != 103.5 || d.C != "FIXED" {
		t.Errorf("derived = %+v", d)
	}

	data, err := firm.Dump(context.Background(), e, NewSerializedDerived(2, "derived", 103.5))
	if err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	root, err := e.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, ok := root.Field("c"); ok {
		t.Error("excluded property c was written")
	}
}

func pointsOf(t *gotesting.T, items []any) [][2]int {
	t.Helper()
	var out [][2]int
	for _, item := range items {
		switch v := item.(type) {
		case *Point:
			out = append(out, [2]int{v.X, v.Y})
		case *Rect:
			out = append(out, [2]int{v.Width(), v.Height()})
		default:
			t.Fatalf("unexpected item %T", item)
		}
	}
	return out
}

func testDisable(t *gotesting.T, e firm.Engine) {
	items := func() []any { return []any{NewPoint(1, 1), NewPoint(2, 2), NewPoint(3, 3)} }

	bag := &Bag{Items: items()}
	got := RoundTripAs[*Bag](t, e, bag)
	if !reflect.DeepEqual(pointsOf(t, got.Items), pointsOf(t, bag.Items)) {
		t.Errorf("bag = %v", pointsOf(t, got.Items))
	}

	fixed := NewFixedBag(items()...)
	gotFixed := RoundTripAs[*FixedBag](t, e, fixed)
	if !reflect.DeepEqual(pointsOf(t, gotFixed.Items), pointsOf(t, fixed.Items)) {
		t.Errorf("fixed bag = %v, want %v", pointsOf(t, gotFixed.Items), pointsOf(t, fixed.Items))
	}

	extra := NewExtraBag(NewRect(1, 1, 40, 40), items()...)
	gotExtra := RoundTripAs[*ExtraBag](t, e, extra)
	if !reflect.DeepEqual(pointsOf(t, gotExtra.Items), pointsOf(t, extra.Items)) {
		t.Errorf("extra bag = %v, want %v", pointsOf(t, gotExtra.Items), pointsOf(t, extra.Items))
	}
	if !gotExtra.Extra.Equal(extra.Extra) {
		t.Errorf("forced extra = %+v", gotExtra.Extra)
	}
	if gotExtra.Items[len(gotExtra.Items)-1] != any(gotExtra.Extra) {
		t.Error("restored extra is not the item held in the list")
	}
}

func testIDs(t *gotesting.T, e firm.Engine) {
	cat := NewCatalog()
	var ids []firm.ID
	for _, sym := range []string{"one", "two", "three"} {
		obj := NewIdentifiable(sym)
		cat.Entries[obj.ID] = obj
		ids = append(ids, obj.ID)
	}
	ref := &RefUser{Ref1: ids[0], Ref2: ids[1], Ref3: ids[2]}

	got := RoundTripAs[[]any](t, e, []any{cat, ref})
	gotCat, ok := got[0].(*Catalog)
	if !ok {
		t.Fatalf("first = %T, want *Catalog", got[0])
	}
	gotRef, ok := got[1].(*RefUser)
	if !ok {
		t.Fatalf("last = %T, want *RefUser", got[1])
	}
	for i, want := range []struct {
		id  firm.ID
		sym string
	}{{gotRef.Ref1, "one"}, {gotRef.Ref2, "two"}, {gotRef.Ref3, "three"}} {
		obj, ok := gotCat.Entries[want.id].(*Identifiable)
		if !ok {
			t.Fatalf("ref%d %v not found in catalog", i+1, want.id)
		}
		if obj.Sym != want.sym || obj.ID != want.id {
			t.Errorf("ref%d = %+v, want sym %s", i+1, obj, want.sym)
		}
	}
}

func testAliases(t *gotesting.T, e firm.Engine) {
	cat := NewCatalog()
	one := &Aliasable{Name: "one", Description: "First aliasable"}
	two := &Aliasable{Name: "two", Description: "Second aliasable"}
	five := &DerivedAliasable{Aliasable: Aliasable{Name: "three", Description: "Third aliasable"}, Extra: "Derived aliasable"}
	cat.Entries["one"], cat.Entries["three"] = one, one
	cat.Entries["two"], cat.Entries["four"] = two, two
	cat.Entries["five"], cat.Entries["six"] = five, five

	got := RoundTripAs[*Catalog](t, e, cat)
	if len(got.Entries) != 6 {
		t.Fatalf("got %d entries, want 6", len(got.Entries))
	}
	a1, ok := got.Entries["one"].(*Aliasable)
	if !ok {
		t.Fatalf("one = %T", got.Entries["one"])
	}
	if got.Entries["three"] != any(a1) {
		t.Error("one and three are not the same instance")
	}
	if got.Entries["two"] != got.Entries["four"] {
		t.Error("two and four are not the same instance")
	}
	if got.Entries["one"] == got.Entries["two"] {
		t.Error("one and two are the same instance")
	}
	d, ok := got.Entries["five"].(*DerivedAliasable)
	if !ok {
		t.Fatalf("five = %T", got.Entries["five"])
	}
	if got.Entries["six"] != any(d) {
		t.Error("five and six are not the same instance")
	}
	if d.Name != "three" || d.Extra != "Derived aliasable" {
		t.Errorf("derived = %+v", d)
	}
}

func testInheritedAliases(t *gotesting.T, e firm.Engine) {
	grid := NewGrid(2, 2).
		PlaceAt(0, 0, &Shape{Kind: "circle"}).
		PlaceAt(0, 1, &Shape{Kind: "rect"}).
		PlaceAt(1, 0, &Shape{Kind: "cross"}).
		PlaceAt(1, 1, &Shape{Kind: "diamond"})

	got := RoundTripAs[*Grid](t, e, grid)
	if got.Dimensions != (Dimensions{2, 2}) {
		t.Errorf("dimensions = %+v", got.Dimensions)
	}
	if len(got.Shapes) != 4 {
		t.Fatalf("got %d shapes, want 4", len(got.Shapes))
	}
	kinds := map[[2]int]string{{0, 0}: "circle", {0, 1}: "rect", {1, 0}: "cross", {1, 1}: "diamond"}
	for pos, kind := range kinds {
		s := got.At(pos[0], pos[1])
		if s == nil || s.Kind != kind {
			t.Errorf("cell %v = %+v, want %s", pos, s, kind)
			continue
		}
		found := false
		for _, owned := range got.Shapes {
			found = found || owned == s
		}
		if !found {
			t.Errorf("cell %v is not one of the owned shapes", pos)
		}
	}
}

func testCyclicReferences(t *gotesting.T, e firm.Engine) {
	a := &Person{Name: "Max A", TaxID: 123456}
	b := &Person{Name: "Joe B", TaxID: 234567}
	h1 := &House{Address: "The street 1", City: "Nowhere"}
	h1.AddOwner(a)
	h2 := &House{Address: "The lane 2", City: "Somewhere"}
	h2.AddOwner(b)
	h3 := &House{Address: "The promenade 3", City: "ThisPlace"}
	h3.AddOwner(a)
	h3.AddOwner(b)

	got := RoundTripAs[[]*House](t, e, []*House{h1, h2, h3})
	if len(got) != 3 {
		t.Fatalf("got %d houses", len(got))
	}
	n1, n2, n3 := got[0], got[1], got[2]
	if n1.Address != h1.Address || n2.City != h2.City || n3.Address != h3.Address {
		t.Errorf("houses = %+v %+v %+v", n1, n2, n3)
	}
	if n1.Owners[0] != n3.Owners[0] || n2.Owners[0] != n3.Owners[1] {
		t.Fatal("shared owners were not restored as the same instances")
	}
	pa, pb := n3.Owners[0], n3.Owners[1]
	if pa.TaxID != 123456 || pb.Name != "Joe B" {
		t.Errorf("owners = %+v %+v", pa, pb)
	}
	if pa.Houses[0] != n1 || pb.Houses[0] != n2 || pa.Houses[1] != n3 || pb.Houses[1] != n3 {
		t.Error("back references do not point at the restored houses")
	}
}

func testCyclicStruct(t *gotesting.T, e firm.Engine) {
	c := &Cyclic{}
	c.List = []any{c}
	got := RoundTripAs[*Cyclic](t, e, c)
	if len(got.List) != 1 || got.List[0] != any(got) {
		t.Errorf("list = %#v, want the instance itself", got.List)
	}
}

func testCyclicContainers(t *gotesting.T, e firm.Engine) {
	list := firm.NewList(int64(1), int64(2), int64(3))
	list.Append(list)
	gotList := RoundTripAs[*firm.List](t, e, list)
	if gotList.Len() != 4 || gotList.At(3) != any(gotList) {
		t.Errorf("list = %v, want itself as last item", gotList.Items())
	}

	dict := firm.NewMap()
	_ = dict.Put("one", int64(1))
	_ = dict.Put("two", int64(2))
	_ = dict.Put("self", dict)
	gotDict := RoundTripAs[*firm.Map](t, e, dict)
	if self, _ := gotDict.Get("self"); self != any(gotDict) || gotDict.Len() != 3 {
		t.Errorf("map self = %v", self)
	}

	set, _ := firm.NewSet(NewPoint(1, 2), "x")
	_, _ = set.Add(set)
	gotSet := RoundTripAs[*firm.Set](t, e, set)
	if gotSet.Len() != 3 || !gotSet.Has(gotSet) || !gotSet.Has("x") {
		t.Errorf("set = %v, want itself as member", gotSet.Items())
	}
}

func testComplexKeys(t *gotesting.T, e firm.Engine) {
	one := NewIdentifiable("one")
	two := NewIdentifiable("two")
	in := map[*Identifiable]string{one: "one", two: "two"}
	got := RoundTripAs[map[*Identifiable]string](t, e, in)
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	for k, v := range got {
		if k.Sym != v {
			t.Errorf("key %+v maps to %q", k, v)
		}
	}

	byID := firm.NewMap()
	_ = byID.Put(one.ID, one)
	_ = byID.Put(two.ID, two)
	gotMap := RoundTripAs[*firm.Map](t, e, byID)
	v, ok := gotMap.Get(one.ID)
	if !ok || v.(*Identifiable).Sym != "one" {
		t.Errorf("map[%v] = %v", one.ID, v)
	}
}

func testNested(t *gotesting.T, e firm.Engine) {
	cat := NewCatalog()
	shared := &Aliasable{Name: "one", Description: "shared"}
	cat.Entries["a"], cat.Entries["b"] = shared, shared
	n := &Nested{Value: cat}

	got := RoundTrip(t, e, []any{n, shared})
	items := got.([]any)
	gotNested, ok := items[0].(*Nested)
	if !ok {
		t.Fatalf("first = %T", items[0])
	}
	inner, ok := gotNested.Value.(*Catalog)
	if !ok {
		t.Fatalf("nested = %T", gotNested.Value)
	}
	if inner.Entries["a"] != inner.Entries["b"] {
		t.Error("aliases inside the nested document were not resolved")
	}
	if inner.Entries["a"] == items[1] {
		t.Error("nested document shares identity with the outer document")
	}
	if !reflect.DeepEqual(n.Depths, []int{1}) || !reflect.DeepEqual(gotNested.Depths, []int{1}) {
		t.Errorf("session depths = %v / %v, want [1]", n.Depths, gotNested.Depths)
	}
}

func testDeepChain(t *gotesting.T, e firm.Engine) {
	const n = 200
	got := RoundTripAs[*Link](t, e, NewChain(n))
	if got.Len() != n {
		t.Fatalf("got %d links, want %d", got.Len(), n)
	}
	last := got
	for last.Next != nil {
		last = last.Next
	}
	if last.Name != "199" {
		t.Errorf("last link = %q, want %q", last.Name, "199")
	}
}

func testTextValues(t *gotesting.T, e firm.Engine) {
	in := &Ledger{
		Rate:    big.NewRat(5, 3),
		Total:   new(big.Int).Lsh(big.NewInt(1), 100),
		Pattern: regexp.MustCompile(`^a+b*$`),
		Phase:   complex(0.5, -0.75),
		Drift:   complex(1, 2),
		Host:    netip.MustParseAddr("2001:db8::1"),
	}
	got := RoundTripAs[*Ledger](t, e, in)
	if got.Rate == nil || got.Rate.Cmp(in.Rate) != 0 {
		t.Errorf("rate = %v, want %v", got.Rate, in.Rate)
	}
	if got.Total == nil || got.Total.Cmp(in.Total) != 0 {
		t.Errorf("total = %v, want %v", got.Total, in.Total)
	}
	if got.Pattern == nil || got.Pattern.String() != in.Pattern.String() {
		t.Errorf("pattern = %v, want %v", got.Pattern, in.Pattern)
	}
	if got.Phase != in.Phase || got.Drift != in.Drift {
		t.Errorf("phase, drift = %v, %v", got.Phase, got.Drift)
	}
	if got.Host != in.Host {
		t.Errorf("host = %v, want %v", got.Host, in.Host)
	}

	values := RoundTripAs[[]any](t, e, []any{big.NewRat(-1, 4), complex(2, 0), (*big.Rat)(nil)})
	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	if r, ok := values[0].(*big.Rat); !ok || r.Cmp(big.NewRat(-1, 4)) != 0 {
		t.Errorf("values[0] = %#v, want -1/4", values[0])
	}
	if c, ok := values[1].(complex128); !ok || c != complex(2, 0) {
		t.Errorf("values[1] = %#v, want (2+0i)", values[1])
	}
	if values[2] != nil {
		t.Errorf("values[2] = %#v, want nil", values[2])
	}

	ctx := context.Background()
	data, err := firm.Dump(ctx, e, in)
	if err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	if _, err := firm.Load(ctx, e, data, firm.AllowOnly("Ledger")); !errors.Is(err, firm.ErrSecurity) {
		t.Errorf("Load without Addr allowed error = %v, want ErrSecurity", err)
	}
	if _, err := firm.Load(ctx, e, data, firm.AllowOnly("Ledger", "Addr")); err != nil {
		t.Errorf("Load with Addr allowed error: %v", err)
	}
}

func testFinalizers(t *gotesting.T, e firm.Engine) {
	m := RoundTripAs[*MethodFinalizer](t, e, NewMethodFinalizer(2))
	if m.Value != 2 || m.Symbol() != "two" {
		t.Errorf("method finalizer = %+v", m)
	}
	f := RoundTripAs[*FuncFinalizer](t, e, NewFuncFinalizer(3))
	if f.Value != 3 || f.Symbol != "three" {
		t.Errorf("func finalizer = %+v", f)
	}
}

func testOptional(t *gotesting.T, e firm.Engine) {
	ctx := context.Background()
	in := &Optionals{Name: "x", Level: 1, Note: "x!"}
	data, err := firm.Dump(ctx, e, in)
	if err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	root, err := e.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(root.Fields) != 1 || root.Fields[0].Name != "name" {
		t.Errorf("fields = %+v, want only name", root.Fields)
	}

	full := &Optionals{Name: "x", Level: 3, Note: "note", Tags: []string{}}
	got := RoundTripAs[*Optionals](t, e, full)
	if got.Level != 3 || got.Note != "note" || got.Tags == nil {
		t.Errorf("got %+v", got)
	}
}

func testTagged(t *gotesting.T, e firm.Engine) {
	in := &Tagged{Title: "t", Labels: []string{"a"}, Ignored: "x"}
	got := RoundTripAs[*Tagged](t, e, in)
	if got.Title != "t" || got.Count != 0 || !reflect.DeepEqual(got.Labels, []string{"a"}) || got.Ignored != "" {
		t.Errorf("got %+v", got)
	}
}

func testPretty(t *gotesting.T, e firm.Engine) {
	got := RoundTripAs[*SerializedDerived](t, e, NewSerializedDerived(1, "b", 2.5), firm.Pretty())
	if got.A != 1 || got.D != 2.5 {
		t.Errorf("got %+v", got)
	}
}

func testDeterministic(t *gotesting.T, e firm.Engine) {
	build := func() any {
		return NewGrid(1, 2).PlaceAt(0, 0, &Shape{Kind: "a"}).PlaceAt(0, 1, &Shape{Kind: "b"})
	}
	ctx := context.Background()
	first, err := firm.Dump(ctx, e, build())
	if err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	second, err := firm.Dump(ctx, e, build())
	if err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	if string(first) != string(second) {
		t.Error("equal graphs produced different output")
	}
}

func testSecurity(t *gotesting.T, e firm.Engine) {
	ctx := context.Background()
	data, err := firm.Dump(ctx, e, []any{NewMethodFinalizer(1), NewPoint(1, 2)})
	if err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	_, err = firm.Load(ctx, e, data, firm.AllowOnly("Point"))
	if !errors.Is(err, firm.ErrSecurity) {
		t.Fatalf("Load error = %v, want ErrSecurity", err)
	}
	var se *firm.SecurityError
	if !errors.As(err, &se) || se.TypeName != "MethodFinalizer" {
		t.Errorf("error = %#v", err)
	}
	if _, err := firm.Load(ctx, e, data, firm.AllowOnly("Point", "MethodFinalizer")); err != nil {
		t.Errorf("Load with both types allowed error: %v", err)
	}
}

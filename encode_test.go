package firm

import (
	"context"
	"errors"
	"math"
	"net/netip"
	"testing"
)

func TestToNode_SharedObject(t *testing.T) {
	v := &vertex{Label: "shared"}
	root, st, err := toNode(context.Background(), []any{v, v})
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	if root.Kind != KindSeq || len(root.Items) != 2 {
		t.Fatalf("root = %+v", root)
	}
	first, second := root.Items[0], root.Items[1]
	if first.Kind != KindObject || first.Anchor != 1 {
		t.Errorf("first = %+v, want anchored object", first)
	}
	if second.Kind != KindAlias || second.Ref != 1 || second.Type != "test.Vertex" {
		t.Errorf("second = %+v, want alias to 1", second)
	}
	if st.objects != 1 || st.anchors != 1 || st.aliases != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestToNode_UnsharedObjectHasNoAnchor(t *testing.T) {
	root, _, err := toNode(context.Background(), []any{&vertex{}, &vertex{}})
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	for i, item := range root.Items {
		if item.Kind != KindObject || item.Anchor != 0 {
			t.Errorf("item %d = %+v", i, item)
		}
	}
}

func TestToNode_SelfReference(t *testing.T) {
	v := &vertex{Label: "loop"}
	v.Next = v
	root, _, err := toNode(context.Background(), v)
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	if root.Anchor != 1 {
		t.Errorf("Anchor = %d, want 1", root.Anchor)
	}
	next, ok := root.Field("next")
	if !ok || next.Kind != KindAlias || next.Ref != 1 {
		t.Errorf("next = %+v, want alias to root", next)
	}
}

func TestToNode_FieldOrder(t *testing.T) {
	root, _, err := toNode(context.Background(), &vertex{Label: "x"})
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	var got []string
	for _, f := range root.Fields {
		got = append(got, f.Name)
	}
	want := []string{"label", "next", "edges"}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields = %v, want %v", got, want)
			break
		}
	}
}

func TestToNode_WithoutAliases(t *testing.T) {
	s := &span{From: 1, To: 2}
	root, st, err := toNode(context.Background(), []any{s, s})
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	for i, item := range root.Items {
		if item.Kind != KindObject || item.Anchor != 0 {
			t.Errorf("item %d = %+v, want full object", i, item)
		}
	}
	if st.objects != 2 || st.aliases != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestToNode_StructValue(t *testing.T) {
	root, _, err := toNode(context.Background(), span{From: 3, To: 4})
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	if root.Kind != KindObject || root.Type != "test.Span" {
		t.Fatalf("root = %+v", root)
	}
	if from, _ := root.Field("from"); from.Int() != 3 {
		t.Errorf("from = %+v", from)
	}
}

func TestToNode_NativeMapSortsKeys(t *testing.T) {
	root, _, err := toNode(context.Background(), map[string]int{"b": 2, "c": 3, "a": 1})
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	var keys string
	for _, e := range root.Entries {
		keys += e.Key.Str()
	}
	if keys != "abc" {
		t.Errorf("keys = %q, want %q", keys, "abc")
	}
}

func TestToNode_Scalars(t *testing.T) {
	var nilPtr *vertex
	tests := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, KindNil},
		{"nil pointer", nilPtr, KindNil},
		{"nil slice", []int(nil), KindNil},
		{"bool", true, KindBool},
		{"int8", int8(-3), KindInt},
		{"uint16", uint16(7), KindInt},
		{"float32", float32(1.5), KindFloat},
		{"string", "s", KindString},
		{"id", NewID(), KindID},
		{"array", [2]int{1, 2}, KindSeq},
		{"list", NewList(), KindList},
		{"map", NewMap(), KindDict},
		{"complex", complex(1, 1), KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, err := toNode(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("toNode() error: %v", err)
			}
			if n.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", n.Kind, tt.kind)
			}
		})
	}
}

func TestToNode_Errors(t *testing.T) {
	type unregistered struct{ A int }
	selfRef := make([]any, 1)
	selfRef[0] = selfRef

	tests := []struct {
		name string
		in   any
		want error
	}{
		{"unregistered struct", unregistered{}, ErrUnsupportedType},
		{"channel", make(chan int), ErrUnsupportedType},
		{"unregistered text marshaler", netip.MustParsePrefix("10.0.0.0/8"), ErrUnsupportedType},
		{"uint overflow", uint64(math.MaxUint64), ErrUnsupportedType},
		{"missing getter", &sealed{}, ErrMissingAccessor},
		{"untracked cycle", selfRef, ErrDepthExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := toNode(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("toNode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestToNode_Disabled(t *testing.T) {
	off := &lamp{Watts: 40}
	off.DisableSerialize()
	on := &lamp{Watts: 60}
	h := &holder{Lamp: off, Lamps: []*lamp{off, on}, Forced: off}

	root, _, err := toNode(context.Background(), h)
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	if _, ok := root.Field("lamp"); ok {
		t.Error("disabled property value was written")
	}
	lamps, _ := root.Field("lamps")
	if lamps == nil || len(lamps.Items) != 1 {
		t.Fatalf("lamps = %+v, want one enabled item", lamps)
	}
	if forced, ok := root.Field("forced"); !ok || forced.Kind == KindNil {
		t.Error("forced property was not written")
	}
	if len(h.Lamps) != 2 {
		t.Error("dump mutated the source slice")
	}
}

package firm

import (
	"reflect"
	"testing"
)

type colourName string

type plainConfig struct {
	Name  string
	Count int
}

func TestAs(t *testing.T) {
	list := NewList("a", "b")
	dict := NewMap()
	_ = dict.Put("k", int64(2))
	id := NewID()
	three := 3

	tests := []struct {
		name string
		conv func() (any, error)
		want any
	}{
		{"int64 to int8", func() (any, error) { return As[int8](int64(-5)) }, int8(-5)},
		{"whole float to int", func() (any, error) { return As[int](2.0) }, 2},
		{"int to float32", func() (any, error) { return As[float32](int64(4)) }, float32(4)},
		{"int to uint", func() (any, error) { return As[uint16](int64(9)) }, uint16(9)},
		{"string to bytes", func() (any, error) { return As[[]byte]("abc") }, []byte("abc")},
		{"named string", func() (any, error) { return As[colourName]("red") }, colourName("red")},
		{"text unmarshaler", func() (any, error) { return As[ID](id.String()) }, id},
		{"seq to typed slice", func() (any, error) { return As[[]int]([]any{int64(1), int64(2)}) }, []int{1, 2}},
		{"seq to array", func() (any, error) { return As[[2]string]([]any{"x", "y"}) }, [2]string{"x", "y"}},
		{"list to slice", func() (any, error) { return As[[]string](list) }, []string{"a", "b"}},
		{"map to typed map", func() (any, error) { return As[map[string]int](map[string]any{"a": int64(1)}) }, map[string]int{"a": 1}},
		{"tracked map to typed map", func() (any, error) { return As[map[string]int](dict) }, map[string]int{"k": 2}},
		{"value to pointer", func() (any, error) { return As[*int](int64(3)) }, &three},
		{"nil to zero", func() (any, error) { return As[int](nil) }, 0},
		{"map to plain struct", func() (any, error) {
			return As[plainConfig](map[string]any{"name": "n", "count": "7"})
		}, plainConfig{Name: "n", Count: 7}},
		{"registered pointer to value", func() (any, error) { return As[span](&span{From: 1, To: 2}) }, span{From: 1, To: 2}},
		{"interface target", func() (any, error) { return As[any](int64(1)) }, int64(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conv()
			if err != nil {
				t.Fatalf("As() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("As() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestAs_Errors(t *testing.T) {
	tests := []struct {
		name string
		conv func() error
	}{
		{"int overflow", func() error { _, err := As[int8](int64(300)); return err }},
		{"fractional float", func() error { _, err := As[int](2.5); return err }},
		{"negative to uint", func() error { _, err := As[uint](int64(-1)); return err }},
		{"array length", func() error { _, err := As[[3]int]([]any{int64(1)}); return err }},
		{"string to int", func() error { _, err := As[int]("7"); return err }},
		{"int to string", func() error { _, err := As[string](int64(7)); return err }},
		{"bad text", func() error { _, err := As[ID]("not-an-id"); return err }},
		{"missing interface", func() error { _, err := As[Disabler](int64(1)); return err }},
		{"bad element", func() error { _, err := As[[]int]([]any{"x"}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.conv(); err == nil {
				t.Error("As() error = nil, want conversion error")
			}
		})
	}
}

func TestValue(t *testing.T) {
	c := &loadContainer{values: map[string]any{"n": int64(4), "s": "x"}, node: NewObject("test.Vertex")}

	n, err := Value[int](c, "n")
	if err != nil || n != 4 {
		t.Errorf("Value(n) = %d, %v", n, err)
	}
	if _, err := Value[int](c, "s"); err == nil {
		t.Error("Value(s) as int should fail")
	}
	missing, err := Value[string](c, "absent")
	if err != nil || missing != "" {
		t.Errorf("Value(absent) = %q, %v", missing, err)
	}
}

package json_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zoobzio/firm"
	"github.com/zoobzio/firm/json"
	firmtest "github.com/zoobzio/firm/testing"
)

func TestNew(t *testing.T) {
	e := json.New()
	if e == nil {
		t.Fatal("New() should return non-nil engine")
	}
	if e.Name() != "json" {
		t.Errorf("Name() = %q, want %q", e.Name(), "json")
	}
	if e.ContentType() != "application/json" {
		t.Errorf("ContentType() = %q, want %q", e.ContentType(), "application/json")
	}
}

func TestRegistered(t *testing.T) {
	e, err := firm.Format("JSON")
	if err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	if e.Name() != "json" {
		t.Errorf("Format(JSON).Name() = %q", e.Name())
	}
}

func TestConformance(t *testing.T) {
	firmtest.RunConformance(t, json.New())
}

func TestEncode_Wire(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"object", firmtest.NewPoint(10, 20), `{"@type":"Point","data":{"x":10,"y":20}}`},
		{"float", []any{2.0, 0.5, 1e21}, `[2.0,0.5,1e+21]`},
		{"nil", nil, `null`},
		{"native map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"pairs", map[int]bool{1: true}, `{"@type":"Pairs","data":[[1,true]]}`},
		{"list", firm.NewList("a"), `{"@type":"List","data":["a"]}`},
		{"nil property", &firmtest.FixedBag{}, `{"@type":"FixedBag","data":{"items":null}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := firm.Dump(ctx, json.New(), tt.in)
			if err != nil {
				t.Fatalf("Dump() error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Dump() = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestEncode_Anchors(t *testing.T) {
	p := firmtest.NewPoint(1, 2)
	data, err := firm.Dump(context.Background(), json.New(), []any{p, p})
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	want := `[{"@type":"Point","@anchor":1,"data":{"x":1,"y":2}},{"@type":"Point","@alias":1}]`
	if string(data) != want {
		t.Errorf("Dump() = %s, want %s", data, want)
	}
}

func TestEncode_Pretty(t *testing.T) {
	data, err := firm.Dump(context.Background(), json.New(), firmtest.NewPoint(1, 2), firm.Pretty())
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	want := "{\n  \"@type\": \"Point\",\n  \"data\": {\n    \"x\": 1,\n    \"y\": 2\n  }\n}\n"
	if string(data) != want {
		t.Errorf("Dump() = %q, want %q", data, want)
	}
}

func TestDecode_Comments(t *testing.T) {
	data := []byte(`{
		// a point
		"@type": "Point",
		"data": {"x": 3, "y": 4,},
	}`)
	v, err := firm.Load(context.Background(), json.New(), data)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	p, ok := v.(*firmtest.Point)
	if !ok || p.X != 3 || p.Y != 4 {
		t.Errorf("Load() = %#v", v)
	}
}

func TestDecode_ForwardAlias(t *testing.T) {
	data := []byte(`[{"@type":"Point","@alias":1},{"@type":"Point","@anchor":1,"data":{"x":5}}]`)
	v, err := firm.Load(context.Background(), json.New(), data)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	items := v.([]any)
	if items[0] != items[1] {
		t.Fatal("alias before its anchor was not resolved to the same instance")
	}
	if items[0].(*firmtest.Point).X != 5 {
		t.Errorf("Point = %+v", items[0])
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"invalid json", `{invalid`, firm.ErrUnmarshal},
		{"trailing data", `1 2`, firm.ErrUnmarshal},
		{"empty", ``, firm.ErrUnmarshal},
		{"unknown anchor", `{"@type":"Point","@alias":9}`, firm.ErrCorruptData},
		{"duplicate anchor", `[{"@type":"Point","@anchor":1},{"@type":"Point","@anchor":1}]`, firm.ErrCorruptData},
		{"bad alias", `{"@type":"Point","@alias":"x"}`, firm.ErrCorruptData},
		{"scheme key", `{"@anchor":1}`, firm.ErrCorruptData},
		{"bad id", `{"@type":"ID","data":"nope"}`, firm.ErrCorruptData},
		{"unregistered", `{"@type":"os.File","data":{}}`, firm.ErrSecurity},
		{"unregistered alias", `{"@type":"Evil","@alias":1}`, firm.ErrSecurity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := firm.Load(context.Background(), json.New(), []byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_Numbers(t *testing.T) {
	v, err := firm.Load(context.Background(), json.New(), []byte(`[1, 1.0, 1e2, -0, 18446744073709551615]`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	items := v.([]any)
	if _, ok := items[0].(int64); !ok {
		t.Errorf("1 decoded as %T, want int64", items[0])
	}
	for i := 1; i < len(items); i++ {
		if i == 3 {
			continue
		}
		if _, ok := items[i].(float64); !ok {
			t.Errorf("item %d decoded as %T, want float64", i, items[i])
		}
	}
	if !strings.Contains(string(mustDump(t, items[2])), "100.0") {
		t.Error("float 1e2 lost its fraction on output")
	}
}

func mustDump(t *testing.T, v any) []byte {
	t.Helper()
	data, err := firm.Dump(context.Background(), json.New(), v)
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	return data
}

func TestDecode_DeepNesting(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"arrays", strings.Repeat("[", 1_000_000)},
		{"objects", strings.Repeat(`{"a":`, 1_000_000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := firm.Load(context.Background(), json.New(), []byte(tt.data))
			if !errors.Is(err, firm.ErrDepthExceeded) {
				t.Errorf("Load() error = %v, want ErrDepthExceeded", err)
			}
		})
	}
}

package yaml_test

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/firm"
	firmtest "github.com/zoobzio/firm/testing"
	"github.com/zoobzio/firm/yaml"
)

func TestNew(t *testing.T) {
	e := yaml.New()
	if e == nil {
		t.Fatal("New() should return non-nil engine")
	}
	if e.Name() != "yaml" {
		t.Errorf("Name() = %q, want %q", e.Name(), "yaml")
	}
	if e.ContentType() != "application/yaml" {
		t.Errorf("ContentType() = %q, want %q", e.ContentType(), "application/yaml")
	}
}

func TestConformance(t *testing.T) {
	firmtest.RunConformance(t, yaml.New())
}

func TestEncode_NativeAnchors(t *testing.T) {
	p := firmtest.NewPoint(1, 2)
	data, err := firm.Dump(context.Background(), yaml.New(), []any{p, p})
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	out := string(data)
	for _, want := range []string{"&a1", "!Point", "*a1", "x: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() = %s, missing %q", out, want)
		}
	}
}

func TestEncode_QuotesAmbiguousStrings(t *testing.T) {
	data, err := firm.Dump(context.Background(), yaml.New(), []any{"123", "true", "null", ""})
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	v, err := firm.Load(context.Background(), yaml.New(), data)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if want := []any{"123", "true", "null", ""}; !reflect.DeepEqual(v, want) {
		t.Errorf("Load() = %#v, want %#v\n%s", v, want, data)
	}
}

func TestDecode_HandWritten(t *testing.T) {
	data := []byte(`
shapes:
  - &c !Shape {kind: circle}
  - *c
defaults: &d {size: 3}
copy: *d
when: 2024-01-02T03:04:05Z
`)
	v, err := firm.Load(context.Background(), yaml.New(), data)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Load() = %T, want map[string]any", v)
	}
	shapes := m["shapes"].([]any)
	if shapes[0] != shapes[1] {
		t.Error("alias of a tagged object did not resolve to the same instance")
	}
	if s := shapes[0].(*firmtest.Shape); s.Kind != "circle" {
		t.Errorf("shape = %+v", s)
	}
	if !reflect.DeepEqual(m["defaults"], m["copy"]) {
		t.Errorf("copy = %#v, want %#v", m["copy"], m["defaults"])
	}
	if when, ok := m["when"].(time.Time); !ok || when.Year() != 2024 {
		t.Errorf("when = %#v", m["when"])
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed", "a: [1, 2", firm.ErrUnmarshal},
		{"empty", "", firm.ErrUnmarshal},
		{"unknown text tag", "!Widget x", firm.ErrSecurity},
		{"bad rational", "!Rational 1e9", firm.ErrCorruptData},
		{"unknown sequence tag", "!Widget [1]", firm.ErrCorruptData},
		{"bad id", "!ID nope", firm.ErrCorruptData},
		{"recursive plain alias", "&a [*a]", firm.ErrCorruptData},
		{"unregistered", "!Evil {a: 1}", firm.ErrSecurity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := firm.Load(context.Background(), yaml.New(), []byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncode_SelfContainingContainers(t *testing.T) {
	ctx := context.Background()
	list := firm.NewList(int64(1), int64(2), int64(3))
	list.Append(list)

	data, err := firm.Dump(ctx, yaml.New(), list)
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	out := string(data)
	for _, want := range []string{"&a1", "!List", "*a1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() = %s, missing %q", out, want)
		}
	}

	dict := firm.NewMap()
	_ = dict.Put("self", dict)
	data, err = firm.Dump(ctx, yaml.New(), dict)
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	v, err := firm.Load(ctx, yaml.New(), data)
	if err != nil {
		t.Fatalf("Load() error: %v\n%s", err, data)
	}
	got, ok := v.(*firm.Map)
	if !ok {
		t.Fatalf("Load() = %T, want *firm.Map", v)
	}
	if self, _ := got.Get("self"); self != any(got) {
		t.Errorf("self = %v, want the map itself", self)
	}
}

func TestDecode_DeepNesting(t *testing.T) {
	_, err := firm.Load(context.Background(), yaml.New(), []byte(strings.Repeat("[", 1_000_000)))
	if err == nil {
		t.Fatal("Load() should fail on runaway nesting")
	}
}

func TestEncode_TextTags(t *testing.T) {
	data, err := firm.Dump(context.Background(), yaml.New(), complex(1, -1))
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	if !strings.Contains(string(data), "!Complex") {
		t.Errorf("Dump() = %s, want a !Complex tag", data)
	}
	v, err := firm.Load(context.Background(), yaml.New(), []byte("!Rational 7/2\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if r, ok := v.(*big.Rat); !ok || r.Cmp(big.NewRat(7, 2)) != 0 {
		t.Errorf("Load() = %#v, want 7/2", v)
	}
}

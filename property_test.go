package firm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/firm"
	firmtest "github.com/zoobzio/firm/testing"
)

// mapContainer is a Container backed by a plain map.
type mapContainer map[string]any

func (c mapContainer) Has(id string) bool {
	_, ok := c[id]
	return ok
}

func (c mapContainer) Get(id string) (any, error) { return c[id], nil }

func (c mapContainer) Set(id string, v any) error {
	c[id] = v
	return nil
}

func property(t *testing.T, ti *firm.TypeInfo, id string) *firm.Property {
	t.Helper()
	for _, p := range ti.Properties() {
		if p.ID() == id {
			return p
		}
	}
	t.Fatalf("%s has no property %s", ti.Name(), id)
	return nil
}

func TestProperty_Optional(t *testing.T) {
	ti, _ := firm.TypeOf[firmtest.Optionals]()
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		obj     *firmtest.Optionals
		written bool
	}{
		{"required zero", "name", &firmtest.Optionals{}, true},
		{"at default", "level", &firmtest.Optionals{Level: 1}, false},
		{"off default", "level", &firmtest.Optionals{Level: 0}, true},
		{"computed default", "note", &firmtest.Optionals{Name: "a", Note: "a!"}, false},
		{"off computed default", "note", &firmtest.Optionals{Name: "a", Note: "b"}, true},
		{"nil default", "tags", &firmtest.Optionals{}, false},
		{"empty is not nil", "tags", &firmtest.Optionals{Tags: []string{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := property(t, ti, tt.id)
			c := mapContainer{}
			if err := p.Serialize(ctx, tt.obj, c, nil); err != nil {
				t.Fatalf("Serialize() error: %v", err)
			}
			if c.Has(tt.id) != tt.written {
				t.Errorf("written = %v, want %v", c.Has(tt.id), tt.written)
			}
		})
	}
}

func TestProperty_Excluded(t *testing.T) {
	ti, _ := firm.TypeOf[firmtest.SerializedBase]()
	c := mapContainer{}
	obj := &firmtest.SerializedBase{A: 1}
	if err := property(t, ti, "a").Serialize(context.Background(), obj, c, map[string]struct{}{"a": {}}); err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if c.Has("a") {
		t.Error("excluded property was written")
	}
}

func TestProperty_Deserialize(t *testing.T) {
	ti, _ := firm.TypeOf[firmtest.Optionals]()
	ctx := context.Background()
	level := property(t, ti, "level")

	obj := &firmtest.Optionals{Level: 9}
	if err := level.Deserialize(ctx, obj, mapContainer{}); err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if obj.Level != 9 {
		t.Errorf("absent property changed Level to %d", obj.Level)
	}

	if err := level.Deserialize(ctx, obj, mapContainer{"level": int64(4)}); err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if obj.Level != 4 {
		t.Errorf("Level = %d, want 4", obj.Level)
	}

	err := level.Deserialize(ctx, obj, mapContainer{"level": "four"})
	if !errors.Is(err, firm.ErrCorruptData) {
		t.Errorf("Deserialize() error = %v, want ErrCorruptData", err)
	}
}

func TestProperty_Metadata(t *testing.T) {
	extra, _ := firm.TypeOf[firmtest.ExtraBag]()
	p := property(t, extra, "extra")
	if !p.Forced() {
		t.Error("extra should be forced")
	}
	if p.Optional() {
		t.Error("extra should not be optional")
	}

	opt, _ := firm.TypeOf[firmtest.Optionals]()
	if !property(t, opt, "level").Optional() {
		t.Error("level should be optional")
	}

	v, err := property(t, opt, "name").Get(context.Background(), &firmtest.Optionals{Name: "n"})
	if err != nil || v != "n" {
		t.Errorf("Get() = %v, %v", v, err)
	}
}

func TestProperty_Handler(t *testing.T) {
	ti, _ := firm.TypeOf[firmtest.PropTest]()
	ctx := context.Background()
	src := firmtest.NewPropTest()
	c := mapContainer{}
	if err := ti.ForSerialize(ctx, src, c, nil); err != nil {
		t.Fatalf("ForSerialize() error: %v", err)
	}
	for _, id := range []string{"prop_a", "prop_b", "prop_c", "prop_d", "prop_e", "prop_f", "prop_g"} {
		if !c.Has(id) {
			t.Errorf("property %s not written", id)
		}
	}

	dst := &firmtest.PropTest{}
	if err := ti.FromSerialized(ctx, dst, c); err != nil {
		t.Fatalf("FromSerialized() error: %v", err)
	}
	if !dst.Equal(src) {
		t.Errorf("restored %+v, want %+v", dst, src)
	}
}

package integration

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/firm"
	_ "github.com/zoobzio/firm/bson"
	_ "github.com/zoobzio/firm/cbor"
	_ "github.com/zoobzio/firm/json"
	_ "github.com/zoobzio/firm/msgpack"
	firmtest "github.com/zoobzio/firm/testing"
	_ "github.com/zoobzio/firm/xml"
	_ "github.com/zoobzio/firm/yaml"
)

func neighbourhood() []*firmtest.House {
	a := &firmtest.Person{Name: "Max A", TaxID: 123456}
	b := &firmtest.Person{Name: "Joe B", TaxID: 234567}
	h1 := &firmtest.House{Address: "The street 1", City: "Nowhere"}
	h1.AddOwner(a)
	h2 := &firmtest.House{Address: "The promenade 3", City: "ThisPlace"}
	h2.AddOwner(a)
	h2.AddOwner(b)
	return []*firmtest.House{h1, h2}
}

func checkNeighbourhood(t *testing.T, houses []*firmtest.House) {
	t.Helper()
	if len(houses) != 2 {
		t.Fatalf("got %d houses, want 2", len(houses))
	}
	h1, h2 := houses[0], houses[1]
	if h1.City != "Nowhere" || h2.Address != "The promenade 3" {
		t.Errorf("houses = %+v %+v", h1, h2)
	}
	if len(h2.Owners) != 2 || h1.Owners[0] != h2.Owners[0] {
		t.Fatal("shared owner was not restored as one instance")
	}
	a := h2.Owners[0]
	if a.TaxID != 123456 || len(a.Houses) != 2 || a.Houses[0] != h1 || a.Houses[1] != h2 {
		t.Errorf("owner = %+v", a)
	}
}

func TestFormats_AllRegistered(t *testing.T) {
	want := map[string]bool{"bson": true, "cbor": true, "json": true, "msgpack": true, "xml": true, "yaml": true}
	got := firm.Formats()
	if len(got) != len(want) {
		t.Fatalf("Formats() = %v", got)
	}
	for _, name := range got {
		if !want[name] {
			t.Errorf("unexpected format %q", name)
		}
	}
}

func TestRoundTrip_EveryFormat(t *testing.T) {
	ctx := context.Background()
	for _, name := range firm.Formats() {
		t.Run(name, func(t *testing.T) {
			data, err := firm.Serialize(ctx, neighbourhood(), firm.WithFormat(name))
			if err != nil {
				t.Fatalf("Serialize() error: %v", err)
			}
			got, err := firm.DeserializeAs[[]*firmtest.House](ctx, data, firm.WithFormat(name))
			if err != nil {
				t.Fatalf("DeserializeAs() error: %v", err)
			}
			checkNeighbourhood(t, got)
		})
	}
}

// A graph loaded from one format is dumped again in every other format.
func TestRoundTrip_AcrossFormats(t *testing.T) {
	ctx := context.Background()
	for _, from := range firm.Formats() {
		for _, to := range firm.Formats() {
			if from == to {
				continue
			}
			t.Run(from+"_to_"+to, func(t *testing.T) {
				data, err := firm.Serialize(ctx, neighbourhood(), firm.WithFormat(from))
				if err != nil {
					t.Fatalf("Serialize(%s) error: %v", from, err)
				}
				loaded, err := firm.Deserialize(ctx, data, firm.WithFormat(from))
				if err != nil {
					t.Fatalf("Deserialize(%s) error: %v", from, err)
				}
				again, err := firm.Serialize(ctx, loaded, firm.WithFormat(to))
				if err != nil {
					t.Fatalf("Serialize(%s) error: %v", to, err)
				}
				got, err := firm.DeserializeAs[[]*firmtest.House](ctx, again, firm.WithFormat(to))
				if err != nil {
					t.Fatalf("DeserializeAs(%s) error: %v", to, err)
				}
				checkNeighbourhood(t, got)
			})
		}
	}
}

func TestRoundTrip_Streams(t *testing.T) {
	ctx := context.Background()
	for _, name := range firm.Formats() {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := firm.SerializeTo(ctx, &buf, firmtest.NewRect(1, 2, 3, 4), firm.WithFormat(name)); err != nil {
				t.Fatalf("SerializeTo() error: %v", err)
			}
			v, err := firm.DeserializeFrom(ctx, &buf, firm.WithFormat(name))
			if err != nil {
				t.Fatalf("DeserializeFrom() error: %v", err)
			}
			r, ok := v.(*firmtest.Rect)
			if !ok || !r.Equal(firmtest.NewRect(1, 2, 3, 4)) {
				t.Errorf("DeserializeFrom() = %#v", v)
			}
		})
	}
}

func TestRoundTrip_MatchesClone(t *testing.T) {
	ctx := context.Background()
	cloned, err := firm.Clone(ctx, neighbourhood())
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	checkNeighbourhood(t, cloned)

	for _, name := range firm.Formats() {
		a, err := firm.Fingerprint(ctx, cloned, firm.SHA256Hasher(), firm.WithFormat(name))
		if err != nil {
			t.Fatalf("Fingerprint(%s) error: %v", name, err)
		}
		b, err := firm.Fingerprint(ctx, neighbourhood(), firm.SHA256Hasher(), firm.WithFormat(name))
		if err != nil {
			t.Fatalf("Fingerprint(%s) error: %v", name, err)
		}
		if a != b {
			t.Errorf("%s: clone fingerprint %s differs from original %s", name, a, b)
		}
	}
}

func TestRoundTrip_SecurityEveryFormat(t *testing.T) {
	ctx := context.Background()
	for _, name := range firm.Formats() {
		t.Run(name, func(t *testing.T) {
			data, err := firm.Serialize(ctx, neighbourhood(), firm.WithFormat(name))
			if err != nil {
				t.Fatalf("Serialize() error: %v", err)
			}
			_, err = firm.Deserialize(ctx, data, firm.WithFormat(name), firm.AllowOnly("House"))
			var sec *firm.SecurityError
			if !errors.As(err, &sec) {
				t.Fatalf("Deserialize() error = %v, want SecurityError", err)
			}
			if sec.TypeName != "Person" {
				t.Errorf("TypeName = %q, want %q", sec.TypeName, "Person")
			}
		})
	}
}

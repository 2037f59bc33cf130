package msgpack_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	vmsgpack "github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/firm"
	"github.com/zoobzio/firm/msgpack"
	firmtest "github.com/zoobzio/firm/testing"
)

func TestNew(t *testing.T) {
	e := msgpack.New()
	if e == nil {
		t.Fatal("New() should return non-nil engine")
	}
	if e.Name() != "msgpack" {
		t.Errorf("Name() = %q, want %q", e.Name(), "msgpack")
	}
	if e.ContentType() != "application/msgpack" {
		t.Errorf("ContentType() = %q, want %q", e.ContentType(), "application/msgpack")
	}
}

func TestConformance(t *testing.T) {
	firmtest.RunConformance(t, msgpack.New())
}

func TestDecode_Foreign(t *testing.T) {
	data, err := vmsgpack.Marshal(map[string]any{
		"@type": "Point",
		"data":  map[string]any{"x": uint8(4), "y": int32(-2)},
	})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	v, err := firm.Load(context.Background(), msgpack.New(), data)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	p, ok := v.(*firmtest.Point)
	if !ok || p.X != 4 || p.Y != -2 {
		t.Errorf("Load() = %#v", v)
	}
}

func TestDecode_KeepsKeyOrder(t *testing.T) {
	root, err := msgpack.New().Decode(mustDump(t, &firmtest.Aliasable{Name: "n", Description: "d"}))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var names []string
	for _, f := range root.Fields {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"name", "description"}) {
		t.Errorf("fields = %v, want declaration order", names)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated", []byte{0x92, 0x01}, firm.ErrUnmarshal},
		{"trailing data", []byte{0x01, 0x02}, firm.ErrUnmarshal},
		{"non-string key", []byte{0x81, 0x01, 0x02}, firm.ErrUnmarshal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := firm.Load(context.Background(), msgpack.New(), tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func mustDump(t *testing.T, v any) []byte {
	t.Helper()
	data, err := firm.Dump(context.Background(), msgpack.New(), v)
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	return data
}

func TestDecode_DeepNesting(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"arrays", bytes.Repeat([]byte{0x91}, 1_000_000)},
		{"maps", bytes.Repeat([]byte{0x81, 0xa1, 'a'}, 1_000_000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := firm.Load(context.Background(), msgpack.New(), tt.data)
			if !errors.Is(err, firm.ErrDepthExceeded) {
				t.Errorf("Load() error = %v, want ErrDepthExceeded", err)
			}
		})
	}
}

func TestDecode_HugeLengthPrefix(t *testing.T) {
	// array32 claiming 2^32-1 items with nothing behind it
	data := []byte{0xdd, 0xff, 0xff, 0xff, 0xff}
	if _, err := firm.Load(context.Background(), msgpack.New(), data); !errors.Is(err, firm.ErrUnmarshal) {
		t.Errorf("Load() error = %v, want ErrUnmarshal", err)
	}
}

package bson_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/zoobzio/firm"
	"github.com/zoobzio/firm/bson"
	firmtest "github.com/zoobzio/firm/testing"
	mbson "go.mongodb.org/mongo-driver/bson"
)

func TestNew(t *testing.T) {
	e := bson.New()
	if e == nil {
		t.Fatal("New() should return non-nil engine")
	}
	if e.Name() != "bson" {
		t.Errorf("Name() = %q, want %q", e.Name(), "bson")
	}
	if e.ContentType() != "application/bson" {
		t.Errorf("ContentType() = %q, want %q", e.ContentType(), "application/bson")
	}
}

func TestConformance(t *testing.T) {
	firmtest.RunConformance(t, bson.New())
}

func TestEncode_RootDocument(t *testing.T) {
	data, err := firm.Dump(context.Background(), bson.New(), firmtest.NewPoint(1, 2))
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	var doc mbson.M
	if err := mbson.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	root, ok := doc["root"].(mbson.M)
	if !ok {
		t.Fatalf("root = %T, want document", doc["root"])
	}
	if root["@type"] != "Point" {
		t.Errorf("@type = %v", root["@type"])
	}
}

func TestDecode_Errors(t *testing.T) {
	missing, err := mbson.Marshal(mbson.D{{Key: "other", Value: 1}})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"missing root", missing, firm.ErrCorruptData},
		{"malformed", []byte{0x05, 0x00}, firm.ErrUnmarshal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := firm.Load(context.Background(), bson.New(), tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// nestedDocument returns a BSON document holding levels nested
// subdocuments under the key "a".
func nestedDocument(levels int) []byte {
	var buf []byte
	size := 5 + 8*levels
	for i := 0; i < levels; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
		buf = append(buf, 0x03, 'a', 0x00)
		size -= 8
	}
	buf = append(buf, 0x05, 0x00, 0x00, 0x00, 0x00)
	return append(buf, make([]byte, levels)...)
}

func TestDecode_DeepNesting(t *testing.T) {
	_, err := firm.Load(context.Background(), bson.New(), nestedDocument(firm.MaxDocumentDepth+2))
	if !errors.Is(err, firm.ErrDepthExceeded) {
		t.Errorf("Load() error = %v, want ErrDepthExceeded", err)
	}
}

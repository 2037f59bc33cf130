package benchmarks

import (
	"context"
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

func shapes(n int) []any {
	out := make([]any, 0, n*2)
	shared := firmtest.NewColour(10, 20, 30)
	for i := 0; i < n; i++ {
		out = append(out, firmtest.NewRect(i, i, i*2, i*3), shared)
	}
	return out
}

func BenchmarkSerialize(b *testing.B) {
	ctx := context.Background()
	graph := shapes(100)
	for _, name := range firm.Formats() {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = firm.Serialize(ctx, graph, firm.WithFormat(name))
			}
		})
	}
}

func BenchmarkDeserialize(b *testing.B) {
	ctx := context.Background()
	graph := shapes(100)
	for _, name := range firm.Formats() {
		data, err := firm.Serialize(ctx, graph, firm.WithFormat(name))
		if err != nil {
			b.Fatalf("Serialize(%s) error: %v", name, err)
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = firm.Deserialize(ctx, data, firm.WithFormat(name))
			}
		})
	}
}

func BenchmarkClone(b *testing.B) {
	ctx := context.Background()
	graph := shapes(100)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = firm.Clone(ctx, graph)
	}
}

func BenchmarkFingerprint(b *testing.B) {
	ctx := context.Background()
	graph := shapes(100)
	hashers := map[string]firm.Hasher{
		"sha256":  firm.SHA256Hasher(),
		"sha512":  firm.SHA512Hasher(),
		"blake2b": firm.Blake2bHasher(),
	}
	for name, h := range hashers {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = firm.Fingerprint(ctx, graph, h)
			}
		})
	}
}

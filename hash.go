package firm

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hasher performs one-way hashing.
type Hasher interface {
	// Hash returns the hex-encoded digest of data.
	Hash(data []byte) (string, error)
}

// sha256Hasher implements SHA-256 hashing.
type sha256Hasher struct{}

// SHA256Hasher returns a SHA-256 hasher.
// The result is a hex-encoded 64-character string.
func SHA256Hasher() Hasher {
	return &sha256Hasher{}
}

func (h *sha256Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// sha512Hasher implements SHA-512 hashing.
type sha512Hasher struct{}

// SHA512Hasher returns a SHA-512 hasher.
// The result is a hex-encoded 128-character string.
func SHA512Hasher() Hasher {
	return &sha512Hasher{}
}

func (h *sha512Hasher) Hash(data []byte) (string, error) {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:]), nil
}

// blake2bHasher implements BLAKE2b-256 hashing.
type blake2bHasher struct{}

// Blake2bHasher returns a BLAKE2b-256 hasher.
// The result is a hex-encoded 64-character string.
func Blake2bHasher() Hasher {
	return &blake2bHasher{}
}

func (h *blake2bHasher) Hash(data []byte) (string, error) {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint hashes the compact serialized form of v. Map entries are
// sorted and anchor ids are assigned in traversal order, so equal graphs
// yield equal fingerprints for a given format.
func Fingerprint(ctx context.Context, v any, h Hasher, opts ...CallOption) (string, error) {
	opts = append(opts[:len(opts):len(opts)], func(cfg *callConfig) { cfg.pretty = false })
	data, err := Serialize(ctx, v, opts...)
	if err != nil {
		return "", err
	}
	return h.Hash(data)
}

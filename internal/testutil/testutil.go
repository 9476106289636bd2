package testutil

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes. The result does not compress.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	r.rand.Read(b)
	return b
}

// Fill returns a payload of n copies of a single random byte value.
// Locks only once per call.
func (r *RNG) Fill(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Repeat([]byte{byte(r.rand.Intn(256))}, n)
}

// Name returns one of the first n lowercase letters as an element name.
func (r *RNG) Name(n int) string {
	return string(rune('a' + r.Intn(n)))
}

// Compressible returns n bytes of repeated text.
func Compressible(n int) []byte {
	pattern := []byte("asro payload block ")
	return bytes.Repeat(pattern, n/len(pattern)+1)[:n]
}

// TempPath returns a path named name inside a per-test temporary directory.
// The file itself is not created.
func TempPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

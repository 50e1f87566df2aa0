package testutil

import (
	"sync"
	"sync/atomic"

	"fim-go/internal/fim"
)

// CountingHasher wraps a Hasher and records every call.
// Individual paths can be made to fail. Safe for concurrent use.
type CountingHasher struct {
	inner fim.Hasher
	calls atomic.Int64

	mu     sync.Mutex
	paths  []string
	fail   map[string]error
	before func(path string)
}

var _ fim.Hasher = (*CountingHasher)(nil)

// NewCountingHasher wraps inner.
func NewCountingHasher(inner fim.Hasher) *CountingHasher {
	return &CountingHasher{inner: inner, fail: make(map[string]error)}
}

func (h *CountingHasher) Hash(path string, algo fim.Algorithm) (string, error) {
	h.calls.Add(1)

	h.mu.Lock()
	h.paths = append(h.paths, path)
	err := h.fail[path]
	before := h.before
	h.mu.Unlock()

	if before != nil {
		before(path)
	}
	if err != nil {
		return "", &fim.FileError{Path: path, Op: "hash", Err: err}
	}
	return h.inner.Hash(path, algo)
}

// Calls returns the number of Hash calls so far.
func (h *CountingHasher) Calls() int {
	return int(h.calls.Load())
}

// Paths returns the full paths passed to Hash, in call order.
func (h *CountingHasher) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

// Reset clears the call count and recorded paths.
func (h *CountingHasher) Reset() {
	h.calls.Store(0)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = nil
}

// FailOn makes Hash fail for fullPath with err.
func (h *CountingHasher) FailOn(fullPath string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail[fullPath] = err
}

// BeforeHash registers fn to run at the start of every Hash call.
// Tests use it to modify a file while it is being hashed.
func (h *CountingHasher) BeforeHash(fn func(path string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = fn
}

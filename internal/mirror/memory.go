package mirror

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"fim-go/internal/fim"
)

// MemoryMirror is an in-memory implementation of the Mirror interface.
// This implementation is safe for concurrent use.
type MemoryMirror struct {
	mu       sync.RWMutex
	objects  map[string][]byte // "hostID/name" -> data
	versions map[string]int64  // "hostID/name" -> version
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{
		objects:  make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func objectKey(hostID, name string) string {
	return hostID + "/" + name
}

// Put stores a named object for a host.
func (m *MemoryMirror) Put(hostID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := objectKey(hostID, name)
	m.objects[key] = data
	m.versions[key] = version
	return nil
}

// Get writes the named object for a host to w.
func (m *MemoryMirror) Get(hostID string, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[objectKey(hostID, name)]
	if !ok {
		return fmt.Errorf("%s not found for host: %s", name, hostID)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// Version returns the stored version, or 0 if absent.
func (m *MemoryMirror) Version(hostID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[objectKey(hostID, name)], nil
}

// Tamper overwrites a stored object without touching its version.
// Tests use it to simulate an attacker editing the offsite copy.
func (m *MemoryMirror) Tamper(hostID, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey(hostID, name)] = append([]byte(nil), data...)
}

// ValidateSetup always succeeds for the in-memory mirror.
func (m *MemoryMirror) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryMirror implements fim.Mirror interface
var _ fim.Mirror = (*MemoryMirror)(nil)

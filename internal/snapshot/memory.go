package snapshot

import (
	"bytes"
	"sync"

	"fim-go/internal/fim"
)

// MemoryStore keeps the encoded baseline in memory. It goes through the
// same codec as FileStore, so a load never aliases a saved *Baseline.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored baseline.
func (m *MemoryStore) Save(b *fim.Baseline) error {
	var buf bytes.Buffer
	if err := fim.EncodeBaseline(&buf, b); err != nil {
		return &fim.PersistError{Location: m.Location(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = buf.Bytes()
	return nil
}

// Load decodes the stored baseline, or returns fim.ErrNotFound.
func (m *MemoryStore) Load() (*fim.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, fim.ErrNotFound
	}
	return fim.DecodeBaseline(bytes.NewReader(m.data))
}

// SetRaw stores raw bytes as the baseline, bypassing encoding.
// Used to seed legacy or hand-written baselines.
func (m *MemoryStore) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// Location describes the store.
func (m *MemoryStore) Location() string {
	return "memory"
}

// Compile-time check that MemoryStore implements fim.SnapshotStore interface
var _ fim.SnapshotStore = (*MemoryStore)(nil)

package storage

import (
	"context"
	"sync"
)

// KVStore is the key-value persistence the holdings ledger is written to.
// SetValue replaces the whole value in one write.
type KVStore interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	SetValue(ctx context.Context, key string, value []byte) error
}

// MemoryKV keeps values in process memory
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ KVStore = (*MemoryKV)(nil)

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

// GetValue returns a copy of the stored value
func (m *MemoryKV) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// SetValue stores a copy of value under key
func (m *MemoryKV) SetValue(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = stored
	return nil
}

package sessions

import (
	"context"
	"sync"
	"time"
)

// Repository persists one opaque record per key. Records are replaced wholesale.
// Load returns (nil, nil) when nothing is stored and a non-nil slice, possibly
// empty, when a record exists. ttl is a hint; zero means no expiry.
type Repository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryRepository keeps records in process memory. Used by tests and SESSION_BACKEND=memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string][]byte)}
}

func (m *MemoryRepository) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	// non-nil even when empty: an empty record is present, not absent
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryRepository) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

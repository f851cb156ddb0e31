package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Storage, used when no
// Redis address is configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	saves     map[string][]byte
	pingError error
}

// Ensure MemoryStore implements Storage interface.
var _ Storage = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		saves: make(map[string][]byte),
	}
}

// SetPingError configures the store to fail on ping with the given error.
func (m *MemoryStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) PutSave(ctx context.Context, slot string, data []byte) error {
	if len(data) == 0 {
		return errors.New("save payload cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[slot] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) GetSave(ctx context.Context, slot string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.saves[slot]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) DeleteSave(ctx context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves, slot)
	return nil
}

func (m *MemoryStore) ListSaves(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slots := make([]string, 0, len(m.saves))
	for slot := range m.saves {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots, nil
}

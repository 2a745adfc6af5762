package store

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryKV is an in-process KV used for development and tests.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memEntry), now: time.Now}
}

// lookup must be called with mu held.
func (m *MemoryKV) lookup(key string) (memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	return e.value, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *MemoryKV) SetGet(_ context.Context, key, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.lookup(key)
	m.data[key] = memEntry{value: value}
	return prev.value, ok, nil
}

func (m *MemoryKV) Del(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	delete(m.data, key)
	return ok, nil
}

// Keys returns the live keys; tests use it to inspect state.
func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		if _, ok := m.lookup(k); ok {
			out = append(out, k)
		}
	}
	return out
}

func (m *MemoryKV) Close() error { return nil }

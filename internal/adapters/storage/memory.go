package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

type entry struct {
	value     []byte
	expiresAt *time.Time
}

// Memory is the default in-process store. TTL bookkeeping is lazy: expired
// entries are invisible to reads and reclaimed by CleanExpired.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]entry
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry)}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false, domain.ErrClosed
	}

	e, ok := m.data[key]
	if !ok || isExpired(e) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Put(key string, value []byte) error {
	return m.put(key, value, nil)
}

func (m *Memory) PutWithTTL(key string, value []byte, ttl time.Duration) error {
	expires := time.Now().Add(ttl)
	return m.put(key, value, &expires)
}

func (m *Memory) put(key string, value []byte, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return domain.ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = entry{value: stored, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return domain.ErrClosed
	}

	delete(m.data, key)
	return nil
}

func (m *Memory) ListByPrefix(prefix string) ([]ports.KeyValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, domain.ErrClosed
	}

	var out []ports.KeyValue
	for k, e := range m.data {
		if !strings.HasPrefix(k, prefix) || isExpired(e) {
			continue
		}
		out = append(out, ports.KeyValue{Key: k, Value: e.value, ExpiresAt: e.expiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) CountPrefix(prefix string) (int, error) {
	items, err := m.ListByPrefix(prefix)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (m *Memory) DeleteByPrefix(prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, domain.ErrClosed
	}

	deleted := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) CleanExpired() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, domain.ErrClosed
	}

	cleaned := 0
	for k, e := range m.data {
		if isExpired(e) {
			delete(m.data, k)
			cleaned++
		}
	}
	return cleaned, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

func isExpired(e entry) bool {
	return e.expiresAt != nil && time.Now().After(*e.expiresAt)
}

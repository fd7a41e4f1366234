package cache

import (
	"context"
	"sync"
)

// MemoryDeduper хранит отметки в памяти процесса, используется без Redis.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDeduper создаёт пустой дедупликатор в памяти.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

// First возвращает true, если событие scope/id встречается впервые.
func (m *MemoryDeduper) First(_ context.Context, scope, id string) (bool, error) {
	key := scope + ":" + id

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

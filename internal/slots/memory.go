package slots

import (
	"sync"

	"github.com/tjfontaine/eventchat/internal/domain"
)

// Memory accumulates EventDetails per conversation. Records fill
// monotonically: a merge may overwrite a set field but never reverts one
// to nil. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records map[string]*domain.EventDetails
}

// NewMemory creates an empty slot memory.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*domain.EventDetails),
	}
}

// Merge overlays partial onto the record for key, creating the record
// lazily on first use, and returns a copy of the merged state.
func (m *Memory) Merge(key string, partial *domain.EventDetails) *domain.EventDetails {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[key]
	if !ok {
		record = &domain.EventDetails{}
		m.records[key] = record
	}

	record.Merge(partial)
	return record.Clone()
}

// Get returns a copy of the record for key, or an empty record if the
// conversation has no accumulated details yet.
func (m *Memory) Get(key string) *domain.EventDetails {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.records[key].Clone()
}

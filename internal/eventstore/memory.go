package eventstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	seen    map[recordKey]struct{}
}

// NewMemoryStore returns a store seeded with records.
func NewMemoryStore(records ...Record) *MemoryStore {
	m := &MemoryStore{}
	m.reset(records)
	return m
}

func (m *MemoryStore) reset(records []Record) {
	m.records = Normalize(records)
	m.seen = make(map[recordKey]struct{}, len(m.records))
	for _, r := range m.records {
		m.seen[keyOf(r)] = struct{}{}
	}
}

func (m *MemoryStore) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryStore) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[keyOf(r)]; dup {
		return nil
	}
	m.reset(append(m.records, r))
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(append([]Record(nil), records...))
	return nil
}

// Package precompute walks events forward through simulated time and
// persists every occurrence it finds.
package precompute

import (
	"sync"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
)

// Table is the in-memory occurrence table shared by driver workers. Records
// stay unique by (name, hours) and ordered by hours.
type Table struct {
	mu      sync.Mutex
	records []eventstore.Record
	last    map[string]float64
}

// NewTable builds a table from previously stored records.
func NewTable(records []eventstore.Record) *Table {
	t := &Table{last: make(map[string]float64)}
	t.records = eventstore.Normalize(records)
	for _, r := range t.records {
		if h, ok := t.last[r.Name]; !ok || r.Hours > h {
			t.last[r.Name] = r.Hours
		}
	}
	return t
}

// Add inserts r and reports whether it was new.
func (t *Table) Add(r eventstore.Record) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.records)
	t.records = eventstore.Normalize(append(t.records, r))
	if len(t.records) == n {
		return false
	}
	if h, ok := t.last[r.Name]; !ok || r.Hours > h {
		t.last[r.Name] = r.Hours
	}
	return true
}

// Records returns a copy of the table.
func (t *Table) Records() []eventstore.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]eventstore.Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Last returns the latest stored occurrence of the named event.
func (t *Table) Last(name string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.last[name]
	return h, ok
}

// Package eventstore persists precomputed event occurrences. Every backend
// keeps records deduplicated by (name, hours) and ordered by hours.
package eventstore

import (
	"context"
	"errors"
	"sort"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
)

// ErrNoStore is returned when no store backend is configured.
var ErrNoStore = errors.New("no event store configured")

// Record is one persisted occurrence.
type Record struct {
	Name      string  `json:"name"`
	Hours     float64 `json:"hours"`
	Year      int64   `json:"year"`
	Day       int64   `json:"day"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewRecord derives the calendar fields of an occurrence from its hours.
func NewRecord(name string, hours, lat, lon float64, ts catalog.TimeScale) Record {
	year, day := ts.Calendar(hours)
	return Record{
		Name:      name,
		Hours:     hours,
		Year:      year,
		Day:       day,
		Latitude:  lat,
		Longitude: lon,
	}
}

// Store is a persisted occurrence table.
type Store interface {
	// Load returns all records, ordered by hours.
	Load(ctx context.Context) ([]Record, error)
	// Append adds one record unless (name, hours) is already present.
	Append(ctx context.Context, r Record) error
	// Save replaces the whole table.
	Save(ctx context.Context, records []Record) error
}

type recordKey struct {
	name  string
	hours float64
}

func keyOf(r Record) recordKey { return recordKey{name: r.Name, hours: r.Hours} }

// Normalize returns records deduplicated by (name, hours), keeping the first
// occurrence, and stably sorted by hours then name.
func Normalize(records []Record) []Record {
	seen := make(map[recordKey]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := keyOf(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours < out[j].Hours
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Filter returns the records for one event, or all records when name is empty.
func Filter(records []Record, name string) []Record {
	if name == "" {
		return records
	}
	var out []Record
	for _, r := range records {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

package precompute

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func f64(v float64) *float64 { return &v }

// testScenario has two planets aligned with a static observer at epoch and
// again every 720 days.
func testScenario(t *testing.T) (*catalog.System, *events.Registry) {
	t.Helper()
	sys, err := catalog.Preprocess(catalog.Catalog{
		Planets: []catalog.CelestialBody{
			{Name: "Sebaka", Size: 10},
			{Name: "A", Size: 3, OrbitRadius: f64(100), OrbitPeriodDays: f64(360)},
			{Name: "B", Size: 5, OrbitRadius: f64(200), OrbitPeriodDays: f64(720)},
		},
		Time: catalog.DefaultTimeScale(),
	})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	reg, err := events.NewRegistry([]events.Definition{{
		Name:               "A-B Conjunction",
		Type:               events.TypeConjunction,
		PrimaryBodies:      []string{"A", "B"},
		LongitudeTolerance: 1,
		MinSeparation:      f64(0),
		ViewingLongitude:   90,
	}})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return sys, reg
}

func newDriver(store eventstore.Store) *Driver {
	return NewDriver(store, search.NewFinder(testLogger()), testLogger())
}

func TestTable(t *testing.T) {
	tbl := NewTable([]eventstore.Record{
		{Name: "E", Hours: 50},
		{Name: "E", Hours: 10},
	})
	if tbl.Add(eventstore.Record{Name: "E", Hours: 10}) {
		t.Error("duplicate record reported as new")
	}
	if !tbl.Add(eventstore.Record{Name: "F", Hours: 5}) {
		t.Error("new record reported as duplicate")
	}
	if got := tbl.Len(); got != 3 {
		t.Errorf("Len: got %d, want 3", got)
	}
	if h, ok := tbl.Last("E"); !ok || h != 50 {
		t.Errorf("Last(E): got (%v, %v), want (50, true)", h, ok)
	}
	if _, ok := tbl.Last("G"); ok {
		t.Error("Last(G) should not exist")
	}
	recs := tbl.Records()
	if recs[0].Name != "F" || recs[2].Hours != 50 {
		t.Errorf("records not ordered by hours: %+v", recs)
	}
}

// TestDriverRun verifies a run persists the occurrence inside the horizon and
// stops at the horizon.
func TestDriverRun(t *testing.T) {
	sys, reg := testScenario(t)
	store := eventstore.NewMemoryStore()

	sum, err := newDriver(store).Run(context.Background(), sys, reg, Plan{StartHours: 1, HorizonYears: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Found != 1 || len(sum.Events) != 1 {
		t.Fatalf("got summary %+v, want one find", sum)
	}
	if sum.Events[0].Stop != StopHorizon {
		t.Errorf("stop: got %q, want %q", sum.Events[0].Stop, StopHorizon)
	}

	recs, _ := store.Load(context.Background())
	if len(recs) != 1 {
		t.Fatalf("got %d stored records, want 1", len(recs))
	}
	r := recs[0]
	if r.Hours != 717*24 || r.Year != 1 || r.Day != 352 || r.Longitude != 90 {
		t.Errorf("got record %+v", r)
	}
}

// TestDriverResumes verifies a second run starts after the last stored
// occurrence instead of finding it again.
func TestDriverResumes(t *testing.T) {
	sys, reg := testScenario(t)
	store := eventstore.NewMemoryStore()
	d := newDriver(store)

	if _, err := d.Run(context.Background(), sys, reg, Plan{StartHours: 1, HorizonYears: 3}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	sum, err := d.Run(context.Background(), sys, reg, Plan{StartHours: 1, HorizonYears: 3})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if sum.Found != 0 {
		t.Errorf("second run found %d, want 0", sum.Found)
	}
	if want := 717*24 + 3*24.0; sum.Events[0].FromHours != want {
		t.Errorf("resumed from %v, want %v", sum.Events[0].FromHours, want)
	}
	if sum.Stored != 1 {
		t.Errorf("stored: got %d, want 1", sum.Stored)
	}
}

// TestDriverWorkers verifies parallel workers walk every selected event.
func TestDriverWorkers(t *testing.T) {
	sys, _ := testScenario(t)
	defs := []events.Definition{
		{Name: "One", Type: events.TypeConjunction, PrimaryBodies: []string{"A", "B"}, LongitudeTolerance: 1, MinSeparation: f64(0), ViewingLongitude: 90},
		{Name: "Two", Type: events.TypeConjunction, PrimaryBodies: []string{"A", "B"}, LongitudeTolerance: 1, MinSeparation: f64(0), ViewingLongitude: 90},
	}
	reg, err := events.NewRegistry(defs)
	if err != nil {
		t.Fatal(err)
	}

	store := eventstore.NewMemoryStore()
	sum, err := newDriver(store).Run(context.Background(), sys, reg, Plan{StartHours: 1, HorizonYears: 3, Workers: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Found != 2 || sum.Stored != 2 {
		t.Errorf("got summary %+v, want two finds", sum)
	}
	if sum.Events[0].Name != "One" || sum.Events[1].Name != "Two" {
		t.Errorf("summaries out of order: %+v", sum.Events)
	}
}

func TestDriverErrors(t *testing.T) {
	sys, reg := testScenario(t)

	if _, err := NewDriver(nil, search.NewFinder(testLogger()), testLogger()).Run(context.Background(), sys, reg, Plan{}); !errors.Is(err, eventstore.ErrNoStore) {
		t.Errorf("nil store: got %v, want ErrNoStore", err)
	}

	_, err := newDriver(eventstore.NewMemoryStore()).Run(context.Background(), sys, reg, Plan{Events: []string{"Nope"}})
	if !errors.Is(err, events.ErrUnknownEvent) {
		t.Errorf("unknown event: got %v, want ErrUnknownEvent", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newDriver(eventstore.NewMemoryStore()).Run(ctx, sys, reg, Plan{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v, want context.Canceled", err)
	}
}

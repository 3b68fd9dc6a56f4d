package catalog

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func f64(v float64) *float64 { return &v }

func testCatalog() Catalog {
	return Catalog{
		Stars: []CelestialBody{
			{Name: "Alpha", Size: 5, OrbitRadius: f64(0), OrbitPeriodDays: f64(40)},
			{Name: "Beta", Size: 4},
		},
		Planets: []CelestialBody{
			{Name: "Moonlet", Size: 1, OrbitRadius: f64(10), OrbitPeriodDays: f64(12), Orbits: "Giant"},
			{Name: "Sebaka", Size: 4, OrbitRadius: f64(300), OrbitPeriodDays: f64(365), AxialTilt: 23},
			{Name: "Giant", Size: 9, OrbitRadius: f64(500), OrbitPeriodDays: f64(800), Eccentric: true, Eccentricity: 0.2},
			{Name: "Drifter", Size: 2, OrbitRadius: f64(900), Eccentric: true},
		},
		Binary: &BinaryPair{Primary: "Alpha", Secondary: "Beta", Separation: 30},
		Time:   DefaultTimeScale(),
	}
}

// TestPreprocessRoles verifies that motion roles and centres are resolved once.
func TestPreprocessRoles(t *testing.T) {
	sys, err := Preprocess(testCatalog())
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	tests := []struct {
		name   string
		role   Role
		center CenterKind
	}{
		{"Alpha", RoleBinary, CenterOrigin},
		{"Beta", RoleBinary, CenterOrigin},
		{"Sebaka", RoleCircular, CenterOrigin},
		{"Giant", RoleEccentric, CenterOrigin},
		{"Drifter", RoleCircular, CenterOrigin},
		{"Moonlet", RoleCircular, CenterBody},
	}
	for _, tt := range tests {
		b, ok := sys.Body(tt.name)
		if !ok {
			t.Fatalf("body %q missing", tt.name)
		}
		if b.Role != tt.role {
			t.Errorf("%s role: got %v, want %v", tt.name, b.Role, tt.role)
		}
		if b.Center.Kind != tt.center {
			t.Errorf("%s center: got %v, want %v", tt.name, b.Center.Kind, tt.center)
		}
	}

	beta, _ := sys.Body("Beta")
	alphaIdx, _ := sys.Index("Alpha")
	if beta.BinarySign != -1 || beta.PhaseSource != alphaIdx || beta.HalfSeparation != 15 {
		t.Errorf("Beta binary params: sign=%v source=%d half=%v", beta.BinarySign, beta.PhaseSource, beta.HalfSeparation)
	}

	drifter, _ := sys.Body("Drifter")
	if drifter.RadsPerHour != 0 {
		t.Errorf("Drifter without period: got RadsPerHour %v, want 0", drifter.RadsPerHour)
	}
}

// TestPreprocessOrdering verifies parents are placed before their satellites.
func TestPreprocessOrdering(t *testing.T) {
	sys, err := Preprocess(testCatalog())
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	for i, b := range sys.Bodies {
		if b.Center.Kind == CenterBody && b.Center.Parent >= i {
			t.Errorf("%s at %d has parent at %d", b.Name, i, b.Center.Parent)
		}
	}
	if sys.Observer < 0 || sys.Bodies[sys.Observer].Name != "Sebaka" {
		t.Errorf("observer index %d does not point at Sebaka", sys.Observer)
	}
	if len(sys.Suns) != 2 {
		t.Errorf("suns: got %d, want 2", len(sys.Suns))
	}
}

// TestValidateRejects verifies structural catalog errors are reported.
func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Catalog)
		target error
	}{
		{"duplicate name", func(c *Catalog) { c.Planets[1].Name = "Giant" }, nil},
		{"unknown parent", func(c *Catalog) { c.Planets[0].Orbits = "Nowhere" }, ErrUnknownBody},
		{"nested moon", func(c *Catalog) { c.Planets[2].Orbits = "Sebaka" }, nil},
		{"eccentricity one", func(c *Catalog) { c.Planets[2].Eccentricity = 1 }, nil},
		{"binary planet", func(c *Catalog) { c.Binary.Secondary = "Sebaka" }, nil},
		{"binary unknown", func(c *Catalog) { c.Binary.Primary = "Gamma" }, ErrUnknownBody},
		{"zero day", func(c *Catalog) { c.Time.HoursPerDay = 0 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCatalog()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("got %v, want wrapped %v", err, tt.target)
			}
		})
	}
}

// TestPreprocessMissingObserver verifies a catalog without the observer still
// preprocesses, leaving the observer index unset.
func TestPreprocessMissingObserver(t *testing.T) {
	c := testCatalog()
	c.Observer = "Nobody"
	sys, err := Preprocess(c)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if sys.Observer != -1 {
		t.Errorf("got observer %d, want -1", sys.Observer)
	}
}

// TestStoreRevisions verifies the System is cached per revision and rebuilt on Set.
func TestStoreRevisions(t *testing.T) {
	s := NewStore(testLogger())
	if _, err := s.System(); err == nil {
		t.Fatal("expected error from empty store")
	}
	if s.AgeSeconds() != -1 {
		t.Errorf("empty store age: got %v, want -1", s.AgeSeconds())
	}

	if err := s.Set(testCatalog()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	first, err := s.System()
	if err != nil {
		t.Fatalf("System failed: %v", err)
	}
	again, _ := s.System()
	if first != again {
		t.Error("expected cached System for unchanged revision")
	}

	c := testCatalog()
	c.Planets = c.Planets[1:]
	if err := s.Set(c); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	second, _ := s.System()
	if second == first {
		t.Error("expected rebuilt System after Set")
	}
	if len(first.Bodies) != 6 {
		t.Errorf("old snapshot mutated: got %d bodies, want 6", len(first.Bodies))
	}
	if s.Revision() != 2 {
		t.Errorf("revision: got %d, want 2", s.Revision())
	}

	bad := testCatalog()
	bad.Time.DaysPerYear = -1
	if err := s.Set(bad); err == nil {
		t.Error("expected Set to reject invalid catalog")
	}
	if s.Revision() != 2 {
		t.Errorf("revision after rejected Set: got %d, want 2", s.Revision())
	}
}

// TestStoreConcurrentSystem verifies concurrent readers share one build.
func TestStoreConcurrentSystem(t *testing.T) {
	s := NewStore(testLogger())
	if err := s.Set(testCatalog()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*System, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.System()
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != results[0] {
			t.Errorf("reader %d got a different System", i)
		}
	}
}

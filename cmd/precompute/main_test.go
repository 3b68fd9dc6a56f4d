package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/precompute"
)

// testScenario lines A and B up with a static observer every 720 days.
const testScenario = `{
  "planets": [
    {"name": "Sebaka", "size": 10},
    {"name": "A", "size": 3, "orbit_radius": 100, "orbit_period_days": 360},
    {"name": "B", "size": 5, "orbit_radius": 200, "orbit_period_days": 720}
  ],
  "events": [
    {
      "name": "A-B Conjunction",
      "type": "conjunction",
      "primary_bodies": ["A", "B"],
      "longitude_tolerance": 1,
      "min_separation": 0,
      "viewing_longitude": 90
    }
  ]
}`

type testEnv struct {
	scenario string
	store    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	if err := os.WriteFile(path, []byte(testScenario), 0644); err != nil {
		t.Fatal(err)
	}
	return testEnv{scenario: path, store: filepath.Join(dir, "events.json")}
}

// execute runs the CLI with the env's scenario and store and returns stdout.
func (e testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args,
		"--catalog-file", e.scenario,
		"--store-path", e.store,
		"--log-level", "error",
	))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// TestRunThenList verifies a run persists its occurrence and list prints it.
func TestRunThenList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "run", "--start", "1", "--horizon-years", "3", "--workers", "1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "A-B Conjunction") || !strings.Contains(out, string(precompute.StopHorizon)) {
		t.Errorf("run output missing summary:\n%s", out)
	}

	records, err := eventstore.NewFileStore(env.store, 0, slog.New(slog.NewJSONHandler(io.Discard, nil))).Load(context.Background())
	if err != nil {
		t.Fatalf("loading store: %v", err)
	}
	if len(records) != 1 || records[0].Hours != 717*24 {
		t.Fatalf("stored records: got %+v", records)
	}

	out, err = env.execute(t, "list", "A-B Conjunction")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"A-B Conjunction", "17208", "352", "1 of 1 occurrences"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

// TestListEmpty verifies listing a store that does not exist yet.
func TestListEmpty(t *testing.T) {
	out, err := newTestEnv(t).execute(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "no stored occurrences") {
		t.Errorf("got %q", out)
	}
}

// TestFind verifies a one-off search prints the occurrence and leaves the
// store alone.
func TestFind(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.execute(t, "find", "A-B Conjunction", "--start", "1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !strings.Contains(out, "17208") {
		t.Errorf("find output missing found hours:\n%s", out)
	}
	if _, err := os.Stat(env.store); !os.IsNotExist(err) {
		t.Errorf("find touched the store: %v", err)
	}
}

// TestEvents verifies the events listing includes the recurrence estimate.
func TestEvents(t *testing.T) {
	out, err := newTestEnv(t).execute(t, "events")
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if !strings.Contains(out, "720 d") {
		t.Errorf("events output missing recurrence:\n%s", out)
	}
}

// TestCommandErrors covers argument and configuration failures.
func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown event", []string{"find", "Ghost"}},
		{"bad direction", []string{"find", "A-B Conjunction", "--direction", "sideways"}},
		{"find needs event", []string{"find"}},
		{"unknown backend", []string{"list", "--store", "cassandra"}},
		{"no store", []string{"run", "--store", "none"}},
		{"postgres without url", []string{"list", "--store", "postgres"}},
		{"unknown run event", []string{"run", "--events", "Ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestEnv(t).execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// TestRunCancelled verifies an interrupted run reports the interruption.
func TestRunCancelled(t *testing.T) {
	env := newTestEnv(t)
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"run", "--catalog-file", env.scenario, "--store-path", env.store, "--log-level", "error"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := root.ExecuteContext(ctx); err == nil {
		t.Error("expected an error from a cancelled run")
	}
}

// TestEnvOverridesDefault verifies SEBAKA_ variables reach the flags.
func TestEnvOverridesDefault(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("SEBAKA_CATALOG_FILE", env.scenario)
	t.Setenv("SEBAKA_STORE_PATH", env.store)

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"run", "--start", "1", "--horizon-years", "3"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(env.store); err != nil {
		t.Errorf("expected the store at SEBAKA_STORE_PATH: %v", err)
	}
}

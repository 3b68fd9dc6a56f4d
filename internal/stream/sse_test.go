package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func f64(v float64) *float64 { return &v }

func testStore(t *testing.T) *catalog.Store {
	t.Helper()
	store := catalog.NewStore(testLogger())
	err := store.Set(catalog.Catalog{
		Planets: []catalog.CelestialBody{
			{Name: "Sebaka", Size: 10},
			{Name: "A", Size: 3, OrbitRadius: f64(100), OrbitPeriodDays: f64(360)},
			{Name: "B", Size: 5, OrbitRadius: f64(200), OrbitPeriodDays: f64(720)},
		},
		Time: catalog.DefaultTimeScale(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func testRegistry(t *testing.T) *events.Registry {
	t.Helper()
	reg, err := events.NewRegistry([]events.Definition{
		{Name: "A-B Conjunction", Type: events.TypeConjunction, PrimaryBodies: []string{"A", "B"}, LongitudeTolerance: 1, MinSeparation: f64(0), ViewingLongitude: 90},
		{Name: "Ghost Conjunction", Type: events.TypeConjunction, PrimaryBodies: []string{"A", "Ghost"}, LongitudeTolerance: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func testFinder() search.Finder {
	f := search.NewFinder(testLogger())
	f.Limits.BroadScanYears = 1
	f.Limits.FallbackScanYears = 2
	f.Limits.YieldEvery = 2
	return f
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ProgressInterval = 0
	return cfg
}

func newTestHandler(t *testing.T, cfg Config) *Handler {
	return NewHandler(testStore(t), testRegistry(t), testFinder(), cfg, testLogger())
}

type sseEvent struct {
	name string
	data map[string]any
}

// parseSSE splits a recorded body into events, failing on malformed lines.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	var cur sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.name != "" {
				out = append(out, cur)
			}
			cur = sseEvent{}
		case line == ":", strings.HasPrefix(line, "retry: "):
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.data); err != nil {
				t.Errorf("invalid JSON in SSE data line: %v", err)
			}
		default:
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
	return out
}

func doStream(ctx context.Context, h *Handler, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/v1/stream/search"+query, nil).WithContext(ctx)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	h.HandleSearch(w, req)
	return w
}

// TestStreamResult verifies the started, progress and result sequence.
func TestStreamResult(t *testing.T) {
	h := newTestHandler(t, testConfig())
	w := doStream(context.Background(), h, "?event=A-B%20Conjunction&start=1")

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	evs := parseSSE(t, w.Body.String())
	if len(evs) < 2 {
		t.Fatalf("got %d events, want at least 2", len(evs))
	}
	if evs[0].name != typeStarted || evs[0].data["search_id"] == "" {
		t.Errorf("first event: got %+v", evs[0])
	}
	last := evs[len(evs)-1]
	if last.name != typeResult {
		t.Fatalf("last event: got %q, want result", last.name)
	}
	if last.data["found_hours"].(float64) != 717*24 {
		t.Errorf("found_hours = %v, want %v", last.data["found_hours"], 717*24)
	}
	if last.data["search_id"] != evs[0].data["search_id"] {
		t.Error("search_id changed during the stream")
	}

	var progress int
	for _, e := range evs[1 : len(evs)-1] {
		if e.name != typeProgress {
			t.Errorf("middle event %q, want progress", e.name)
		}
		progress++
	}
	if progress == 0 {
		t.Error("expected progress events")
	}
}

// TestStreamNotFound verifies an exhausted search ends with not_found.
func TestStreamNotFound(t *testing.T) {
	h := newTestHandler(t, testConfig())
	evs := parseSSE(t, doStream(context.Background(), h, "?event=Ghost%20Conjunction").Body.String())
	if len(evs) == 0 || evs[len(evs)-1].name != typeNotFound {
		t.Errorf("got %+v, want final not_found", evs)
	}
}

// TestStreamCancelled verifies a closed request ends the search as cancelled.
func TestStreamCancelled(t *testing.T) {
	h := newTestHandler(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evs := parseSSE(t, doStream(ctx, h, "?event=A-B%20Conjunction&start=1").Body.String())
	if len(evs) == 0 || evs[len(evs)-1].name != typeCancelled {
		t.Errorf("got %+v, want final cancelled", evs)
	}
	if h.limiter.count("127.0.0.1") != 0 {
		t.Error("stream slot not released")
	}
}

// TestInvalidQueryParams verifies error responses before the stream starts.
func TestInvalidQueryParams(t *testing.T) {
	h := newTestHandler(t, testConfig())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing event", "", http.StatusBadRequest},
		{"unknown event", "?event=Nope", http.StatusNotFound},
		{"bad start", "?event=A-B%20Conjunction&start=abc", http.StatusBadRequest},
		{"bad direction", "?event=A-B%20Conjunction&direction=up", http.StatusBadRequest},
		{"bad sun", "?event=A-B%20Conjunction&sun=maybe", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doStream(context.Background(), h, tt.query)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// TestStreamNoCatalog verifies 503 before a catalog is loaded.
func TestStreamNoCatalog(t *testing.T) {
	h := NewHandler(catalog.NewStore(testLogger()), testRegistry(t), testFinder(), testConfig(), testLogger())
	if w := doStream(context.Background(), h, "?event=A-B%20Conjunction"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// TestRateLimitHTTPResponse verifies 429 when the IP already holds its slots.
func TestRateLimitHTTPResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	h := newTestHandler(t, cfg)

	if !h.limiter.acquire("127.0.0.1") {
		t.Fatal("acquire should succeed")
	}
	w := doStream(context.Background(), h, "?event=A-B%20Conjunction")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestFinalMessage(t *testing.T) {
	ts := catalog.DefaultTimeScale()
	tests := []struct {
		name string
		done searchDone
		want string
	}{
		{"found", searchDone{result: &search.Result{FoundHours: 400 * 24}}, typeResult},
		{"not found", searchDone{}, typeNotFound},
		{"cancelled", searchDone{err: search.ErrCancelled}, typeCancelled},
		{"failed", searchDone{err: errors.New("boom")}, typeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := finalMessage("id", "E", ts, tt.done)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if r, ok := msg.(resultMessage); ok && (r.Year != 1 || r.Day != 35) {
				t.Errorf("calendar: got year %d day %d, want 1/35", r.Year, r.Day)
			}
		})
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}
	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}

	// Releasing an unknown IP must not drive counts negative.
	limiter.release("10.0.0.9")
	if c := limiter.count("10.0.0.9"); c != 0 {
		t.Errorf("count = %d, want 0", c)
	}
}

// TestGlobalLimit verifies the overall cap applies across IPs.
func TestGlobalLimit(t *testing.T) {
	limiter := newStreamLimiter(5, 2)
	limiter.acquire("a")
	limiter.acquire("b")
	if limiter.acquire("c") {
		t.Error("acquire beyond global cap should fail")
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

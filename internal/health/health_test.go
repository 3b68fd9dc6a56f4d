package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
)

func TestReadyz(t *testing.T) {
	store := catalog.NewStore(nil)
	h := Readyz(store)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("empty store: got %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	if err := store.Set(catalog.Catalog{
		Planets: []catalog.CelestialBody{{Name: "Sebaka", Size: 1}},
		Time:    catalog.DefaultTimeScale(),
	}); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("loaded store: got %d %q", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("got %d, want %d", w.Code, http.StatusOK)
	}
}

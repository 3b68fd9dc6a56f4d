package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/httputil"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/propagation"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

// system returns the current preprocessed system, writing 503 when there is none.
func (h *handlers) system(w http.ResponseWriter) (*catalog.System, bool) {
	sys, err := h.deps.Catalog.System()
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return nil, false
	}
	return sys, true
}

// event resolves the {name} path value, writing 404 when it is unknown.
func (h *handlers) event(w http.ResponseWriter, r *http.Request) (events.Event, bool) {
	ev, err := h.deps.Events.Get(r.PathValue("name"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return events.Event{}, false
	}
	return ev, true
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service":          "sebaka",
		"catalog_revision": h.deps.Catalog.Revision(),
		"endpoints": []string{
			"/api/v1/catalog",
			"/api/v1/events",
			"/api/v1/positions?hours=",
			"/api/v1/keyframes?start=&step=&count=",
			"/api/v1/events/{name}/evaluate?hours=&sun=",
			"/api/v1/events/{name}/search?start=&direction=&sun=",
			"/api/v1/upcoming?start=&events=&sun=",
			"/api/v1/precomputed?event=&from=&limit=",
			"/api/v1/stream/search?event=&start=&direction=&sun=",
		},
	})
}

type bodyView struct {
	catalog.CelestialBody
	Role   string `json:"role"`
	Center string `json:"center"`
}

func (h *handlers) catalog(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Catalog.Get()
	sys, ok := h.system(w)
	if !ok || snap == nil {
		return
	}

	bodies := make([]bodyView, len(sys.Bodies))
	for i, b := range sys.Bodies {
		center := "origin"
		if b.Center.Kind == catalog.CenterBody {
			center = sys.Bodies[b.Center.Parent].Name
		}
		bodies[i] = bodyView{CelestialBody: b.CelestialBody, Role: b.Role.String(), Center: center}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"revision":    snap.Revision,
		"set_at":      snap.SetAt.UTC().Format(time.RFC3339),
		"age_seconds": int(h.deps.Catalog.AgeSeconds()),
		"observer":    snap.Catalog.ObserverName(),
		"time":        snap.Catalog.Time,
		"binary":      snap.Catalog.Binary,
		"bodies":      bodies,
	})
}

type eventView struct {
	events.Definition
	RelaxedRule    bool     `json:"relaxed_rule"`
	RecurrenceDays *float64 `json:"recurrence_days,omitempty"`
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	sys, _ := h.deps.Catalog.System()

	all := h.deps.Events.All()
	out := make([]eventView, len(all))
	for i, ev := range all {
		out[i] = eventView{Definition: ev.Definition, RelaxedRule: ev.Rule == events.RuleRelaxedSpread}
		if sys == nil {
			continue
		}
		if days, ok := events.EstimateRecurrenceDays(ev, sys); ok {
			out[i].RecurrenceDays = &days
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out, "count": len(out)})
}

func (h *handlers) positions(w http.ResponseWriter, r *http.Request) {
	hours, err := httputil.FloatParam(r, "hours", 0)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	kf, err := h.deps.Propagator.PropagateToTime(r.Context(), hours)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, kf)
}

func (h *handlers) keyframes(w http.ResponseWriter, r *http.Request) {
	start, err := httputil.FloatParam(r, "start", 0)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	step, err := httputil.FloatParam(r, "step", 24)
	if err != nil || step <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid step parameter, must be positive hours")
		return
	}
	maxFrames := h.deps.Propagator.MaxFrames()
	count, err := httputil.IntParam(r, "count", 10, 1, maxFrames)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":      err.Error(),
			"max_frames": maxFrames,
		})
		return
	}

	frames, err := h.deps.Propagator.GenerateKeyframes(r.Context(), start, step, count)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"start_hours": start,
		"step_hours":  step,
		"keyframes":   frames,
	})
}

func (h *handlers) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.event(w, r)
	if !ok {
		return
	}
	hours, err := httputil.FloatParam(r, "hours", 0)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sun, err := httputil.BoolParam(r, "sun", false)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sys, ok := h.system(w)
	if !ok {
		return
	}

	snap := propagation.PositionsAt(hours, sys)
	out := events.Evaluate(ev, snap, sys)
	resp := map[string]any{
		"event":             ev.Name,
		"hours":             hours,
		"met":               out.Met,
		"viewing_latitude":  out.ViewingLatitude,
		"viewing_longitude": out.ViewingLongitude,
	}
	if sun {
		sep := out.Met && events.SunSeparated(ev, snap, sys, out.Viewpoint)
		resp["sun_separated"] = sep
		resp["met"] = sep
	}
	year, day := sys.Time.Calendar(hours)
	resp["year"], resp["day"] = year, day
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type foundView struct {
	Event            string   `json:"event"`
	FoundHours       *float64 `json:"found_hours,omitempty"`
	Year             *int64   `json:"year,omitempty"`
	Day              *int64   `json:"day,omitempty"`
	ViewingLatitude  *float64 `json:"viewing_latitude,omitempty"`
	ViewingLongitude *float64 `json:"viewing_longitude,omitempty"`
	Error            string   `json:"error,omitempty"`
}

func newFoundView(event string, res *search.Result, ts catalog.TimeScale) foundView {
	v := foundView{Event: event}
	if res == nil {
		return v
	}
	year, day := ts.Calendar(res.FoundHours)
	v.FoundHours = &res.FoundHours
	v.Year, v.Day = &year, &day
	v.ViewingLatitude = &res.ViewingLatitude
	v.ViewingLongitude = &res.ViewingLongitude
	return v
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.event(w, r)
	if !ok {
		return
	}
	start, err := httputil.FloatParam(r, "start", 0)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := search.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sun, err := httputil.BoolParam(r, "sun", false)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sys, ok := h.system(w)
	if !ok {
		return
	}

	id := uuid.NewString()
	logger := h.logger.With("search_id", id, "event", ev.Name)

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.searchTimeout())
	defer cancel()

	began := time.Now()
	res, err := h.deps.Finder.Find(ctx, search.Request{
		StartHours:           start,
		Event:                ev,
		System:               sys,
		Direction:            dir,
		RequireSunSeparation: sun,
	}, search.WithLogger(logger))
	elapsed := time.Since(began)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("search timed out", "start_hours", start, "duration_ms", elapsed.Milliseconds())
			httputil.WriteJSON(w, http.StatusGatewayTimeout, map[string]any{"error": "search timed out", "search_id": id})
			return
		}
		// The client went away; nobody is reading the response.
		logger.Debug("search cancelled", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "search cancelled", "search_id": id})
		return
	}

	logger.Info("search finished",
		"start_hours", start,
		"direction", dir.String(),
		"found", res != nil,
		"duration_ms", elapsed.Milliseconds(),
	)

	if res == nil {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]any{
			"error":     "no occurrence within the search horizon",
			"search_id": id,
			"event":     ev.Name,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"search_id":   id,
		"direction":   dir.String(),
		"start_hours": start,
		"duration_ms": elapsed.Milliseconds(),
		"result":      newFoundView(ev.Name, res, sys.Time),
	})
}

func (h *handlers) upcoming(w http.ResponseWriter, r *http.Request) {
	start, err := httputil.FloatParam(r, "start", 0)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sun, err := httputil.BoolParam(r, "sun", false)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	evs, err := h.deps.Events.Select(httputil.ListParam(r, "events"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	sys, ok := h.system(w)
	if !ok {
		return
	}

	reqs := make([]search.Request, len(evs))
	for i, ev := range evs {
		reqs[i] = search.Request{StartHours: start, Event: ev, System: sys, Direction: search.Next, RequireSunSeparation: sun}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.searchTimeout())
	defer cancel()

	outcomes := h.deps.Finder.FindMany(ctx, reqs)
	views := make([]foundView, len(outcomes))
	for i, o := range outcomes {
		views[i] = newFoundView(o.Event, o.Result, sys.Time)
		views[i].Error = o.Error
	}

	// Soonest first; events without an occurrence go last.
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].FoundHours, views[j].FoundHours
		if a == nil || b == nil {
			return a != nil
		}
		return *a < *b
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"start_hours": start,
		"results":     views,
	})
}

func (h *handlers) precomputed(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, eventstore.ErrNoStore.Error())
		return
	}
	from, err := httputil.FloatParam(r, "from", math.Inf(-1))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := httputil.IntParam(r, "limit", 100, 1, 10000)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.deps.Store.Load(r.Context())
	if err != nil {
		h.logger.Error("loading precomputed events", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "event store unavailable")
		return
	}
	records = eventstore.Filter(records, r.URL.Query().Get("event"))

	i := sort.Search(len(records), func(i int) bool { return records[i].Hours >= from })
	records = records[i:]
	total := len(records)
	if len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []eventstore.Record{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
		"total":   total,
	})
}

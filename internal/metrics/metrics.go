package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sebaka_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sebaka_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sebaka_searches_total",
			Help: "Event searches by event, direction and outcome.",
		},
		[]string{"event", "direction", "outcome"},
	)

	searchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sebaka_search_duration_seconds",
			Help:    "Event search wall time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"event"},
	)

	searchIterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sebaka_search_iterations_total",
			Help: "Predicate evaluations performed by searches.",
		},
		[]string{"event"},
	)

	searchWindowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sebaka_search_windows_total",
		Help: "Candidate recurrence windows opened by searches.",
	})

	positionCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sebaka_position_cache_hits_total",
		Help: "Per-search position cache hits.",
	})

	positionCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sebaka_position_cache_misses_total",
		Help: "Per-search position cache misses.",
	})

	positionCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sebaka_position_cache_evictions_total",
		Help: "Per-search position cache evictions.",
	})

	propagationDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sebaka_propagation_duration_seconds",
		Help:    "Keyframe propagation duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	propagatedBodiesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sebaka_propagated_bodies_total",
		Help: "Body positions computed for keyframes.",
	})

	precomputedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sebaka_precomputed_events_total",
			Help: "Occurrences found and persisted by the batch driver.",
		},
		[]string{"event"},
	)

	precomputedStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sebaka_precomputed_events_stored",
		Help: "Records in the precomputed event table.",
	})

	catalogRevision = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sebaka_catalog_revision",
		Help: "Revision of the active body catalog.",
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sebaka_streams_active",
		Help: "Open search progress streams.",
	})

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sebaka_stream_messages_total",
			Help: "Messages written to search progress streams by type.",
		},
		[]string{"type"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sebaka_rate_limited_total",
			Help: "Requests rejected by rate limiting.",
		},
		[]string{"limiter"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		searchesTotal,
		searchDurationSeconds,
		searchIterationsTotal,
		searchWindowsTotal,
		positionCacheHits,
		positionCacheMisses,
		positionCacheEvictions,
		propagationDurationSeconds,
		propagatedBodiesTotal,
		precomputedTotal,
		precomputedStored,
		catalogRevision,
		streamsActive,
		streamMessagesTotal,
		rateLimitedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSearch records one finished search.
func RecordSearch(event, direction, outcome string, d time.Duration, iterations, windows int) {
	searchesTotal.WithLabelValues(event, direction, outcome).Inc()
	searchDurationSeconds.WithLabelValues(event).Observe(d.Seconds())
	searchIterationsTotal.WithLabelValues(event).Add(float64(iterations))
	searchWindowsTotal.Add(float64(windows))
}

// RecordPositionCache adds one search's cache counters.
func RecordPositionCache(hits, misses, evictions int64) {
	positionCacheHits.Add(float64(hits))
	positionCacheMisses.Add(float64(misses))
	positionCacheEvictions.Add(float64(evictions))
}

// RecordPropagation records a keyframe propagation.
func RecordPropagation(d time.Duration, bodies int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagatedBodiesTotal.Add(float64(bodies))
}

// IncPrecomputed counts one persisted occurrence.
func IncPrecomputed(event string) {
	precomputedTotal.WithLabelValues(event).Inc()
}

// SetPrecomputedStored sets the size of the precomputed table.
func SetPrecomputedStored(n int) {
	precomputedStored.Set(float64(n))
}

// SetCatalogRevision publishes the active catalog revision.
func SetCatalogRevision(rev uint64) {
	catalogRevision.Set(float64(rev))
}

// IncStreamsActive and DecStreamsActive track open streams.
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts a stream message of the given type.
func IncStreamMessages(msgType string) {
	streamMessagesTotal.WithLabelValues(msgType).Inc()
}

// IncRateLimited counts a rejected request.
func IncRateLimited(limiter string) {
	rateLimitedTotal.WithLabelValues(limiter).Inc()
}

var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/catalog":       true,
	"/api/v1/events":        true,
	"/api/v1/positions":     true,
	"/api/v1/keyframes":     true,
	"/api/v1/upcoming":      true,
	"/api/v1/precomputed":   true,
	"/api/v1/stream/search": true,
}

// normalizeRoute maps a request path to a bounded label set. Event names in
// paths collapse to {name}; anything unknown becomes "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/events/"); ok {
		if i := strings.LastIndexByte(rest, '/'); i > 0 {
			switch rest[i+1:] {
			case "search", "evaluate":
				return "/api/v1/events/{name}/" + rest[i+1:]
			}
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

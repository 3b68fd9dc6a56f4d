// Package stream implements Server-Sent Events (SSE) streaming of event
// searches. Clients connect via GET /api/v1/stream/search and watch a long
// search progress until it ends.
//
// SSE message format:
//
//	event: progress\ndata: {"type":"progress","search_id":"...","phase":"window_scan","iterations":1500,...}\n\n
//
// The first message is always "started". The stream ends with exactly one of
// "result", "not_found", "cancelled" or "error". Keep-alive comments (:\n\n)
// are sent every KeepaliveInterval while no progress is reported.
// Disconnecting cancels the search.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/httputil"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/metrics"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 2).
	MaxConcurrent      int           // Max concurrent streams overall (default: 256).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
	ProgressInterval   time.Duration // Minimum gap between progress messages (default: 250ms).
	TrustProxy         bool          // Take the client IP from proxy headers.
}

// DefaultConfig returns the streaming defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 2,
		MaxConcurrent:      defaultMaxTotal,
		KeepaliveInterval:  15 * time.Second,
		ProgressInterval:   250 * time.Millisecond,
	}
}

// Handler manages SSE search streams.
type Handler struct {
	catalog *catalog.Store
	events  *events.Registry
	finder  search.Finder
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(store *catalog.Store, reg *events.Registry, finder search.Finder, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = DefaultConfig().KeepaliveInterval
	}
	if config.ProgressInterval < 0 {
		config.ProgressInterval = 0
	}
	return &Handler{
		catalog: store,
		events:  reg,
		finder:  finder,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

type searchDone struct {
	result *search.Result
	err    error
}

// HandleSearch serves the SSE search stream.
// GET /api/v1/stream/search?event=Great%20Conjunction&start=0&direction=next&sun=false
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("event")
	if name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing event parameter")
		return
	}
	ev, err := h.events.Get(name)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
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
	sys, err := h.catalog.System()
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	// Enforce the concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncRateLimited("stream")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamsActive()
	id := uuid.NewString()
	logger := h.logger.With("search_id", id, "event", ev.Name, "remote_ip", ip)

	startTime := time.Now()
	logger.Info("stream connected",
		"user_agent", r.Header.Get("User-Agent"),
		"start_hours", start,
		"direction", dir.String(),
	)

	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		logger.Info("stream disconnected",
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Searches can outlive the server's WriteTimeout; deadlines are set per write.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.send(typeStarted, startedMessage{
		Type:       typeStarted,
		SearchID:   id,
		Event:      ev.Name,
		Direction:  dir.String(),
		StartHours: start,
		Revision:   h.catalog.Revision(),
	}); err != nil {
		logger.Warn("stream send error (started)", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	progress := make(chan search.Status, 1)
	done := make(chan searchDone, 1)
	go func() {
		res, err := h.finder.Find(ctx, search.Request{
			StartHours:           start,
			Event:                ev,
			System:               sys,
			Direction:            dir,
			RequireSunSeparation: sun,
		}, search.WithProgress(func(st search.Status) {
			// Latest status wins; a slow client never blocks the search.
			select {
			case <-progress:
			default:
			}
			progress <- st
		}))
		done <- searchDone{result: res, err: err}
	}()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	var lastProgress time.Time
	for {
		select {
		case st := <-progress:
			if time.Since(lastProgress) < h.config.ProgressInterval {
				continue
			}
			if err := c.send(typeProgress, newProgressMessage(id, st)); err != nil {
				logger.Warn("stream send error", "error", err)
				return
			}
			lastProgress = time.Now()
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				logger.Warn("stream keepalive error", "error", err)
				return
			}

		case d := <-done:
			// Report the last pending status before the outcome.
			select {
			case st := <-progress:
				if err := c.send(typeProgress, newProgressMessage(id, st)); err != nil {
					logger.Debug("stream send error (progress)", "error", err)
					return
				}
			default:
			}
			msgType, msg := finalMessage(id, ev.Name, sys.Time, d)
			if err := c.send(msgType, msg); err != nil {
				logger.Debug("stream send error (final)", "error", err)
			}
			logger.Info("stream search finished",
				"outcome", msgType,
				"messages", c.messagesSent,
				"bytes", c.bytesSent,
			)
			return
		}
	}
}

// finalMessage builds the closing message for a finished search.
func finalMessage(id, event string, ts catalog.TimeScale, d searchDone) (string, any) {
	switch {
	case errors.Is(d.err, search.ErrCancelled):
		return typeCancelled, statusMessage{Type: typeCancelled, SearchID: id, Event: event}
	case d.err != nil:
		return typeError, statusMessage{Type: typeError, SearchID: id, Event: event, Error: d.err.Error()}
	case d.result == nil:
		return typeNotFound, statusMessage{Type: typeNotFound, SearchID: id, Event: event}
	}
	year, day := ts.Calendar(d.result.FoundHours)
	return typeResult, resultMessage{
		Type:             typeResult,
		SearchID:         id,
		Event:            event,
		FoundHours:       d.result.FoundHours,
		Year:             year,
		Day:              day,
		ViewingLatitude:  d.result.ViewingLatitude,
		ViewingLongitude: d.result.ViewingLongitude,
	}
}

func newProgressMessage(id string, st search.Status) progressMessage {
	return progressMessage{
		Type:        typeProgress,
		SearchID:    id,
		Phase:       st.PhaseName,
		Iterations:  st.Iterations,
		CursorHours: st.CursorHours,
		Windows:     st.Windows,
	}
}

// SSE message payload types.

const (
	typeStarted   = "started"
	typeProgress  = "progress"
	typeResult    = "result"
	typeNotFound  = "not_found"
	typeCancelled = "cancelled"
	typeError     = "error"
)

type startedMessage struct {
	Type       string  `json:"type"`
	SearchID   string  `json:"search_id"`
	Event      string  `json:"event"`
	Direction  string  `json:"direction"`
	StartHours float64 `json:"start_hours"`
	Revision   uint64  `json:"catalog_revision"`
}

type progressMessage struct {
	Type        string  `json:"type"`
	SearchID    string  `json:"search_id"`
	Phase       string  `json:"phase"`
	Iterations  int     `json:"iterations"`
	CursorHours float64 `json:"cursor_hours"`
	Windows     int     `json:"windows"`
}

type resultMessage struct {
	Type             string  `json:"type"`
	SearchID         string  `json:"search_id"`
	Event            string  `json:"event"`
	FoundHours       float64 `json:"found_hours"`
	Year             int64   `json:"year"`
	Day              int64   `json:"day"`
	ViewingLatitude  float64 `json:"viewing_latitude"`
	ViewingLongitude float64 `json:"viewing_longitude"`
}

type statusMessage struct {
	Type     string `json:"type"`
	SearchID string `json:"search_id"`
	Event    string `json:"event"`
	Error    string `json:"error,omitempty"`
}

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/eventquery/internal/allowlist"
	"github.com/gyaneshwarpardhi/eventquery/internal/datekey"
	"github.com/gyaneshwarpardhi/eventquery/internal/event"
	"github.com/gyaneshwarpardhi/eventquery/internal/metrics"
	"github.com/gyaneshwarpardhi/eventquery/internal/query"
	"github.com/gyaneshwarpardhi/eventquery/internal/uploader"
)

// Handler holds all HTTP handler dependencies and runs the per-request
// gate: validate, locate, authorize, respond.
type Handler struct {
	pipeline *query.Pipeline
	allow    *allowlist.List
	uploads  *uploader.Uploader
	earliest time.Time
	now      func() time.Time
	router   *httprouter.Router
}

// Option adjusts a Handler.
type Option func(*Handler)

// WithClock overrides the wall clock used for the date-window check
// (tests).
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates the HTTP handler and registers all routes. earliest is the
// first date the feed has data for; requests at or before it are
// not-found. Work identifiers may contain slashes, so work routes use
// catch-all segments.
func New(pipeline *query.Pipeline, allow *allowlist.List, uploads *uploader.Uploader, earliest time.Time, opts ...Option) http.Handler {
	h := &Handler{
		pipeline: pipeline,
		allow:    allow,
		uploads:  uploads,
		earliest: earliest,
		now:      time.Now,
		router:   httprouter.New(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.router.GET("/:view/:date/events.json", h.dateRoute)
	h.router.GET("/:view/:date/sources/:source/events.json", h.sourceRoute)
	h.router.GET("/:view/:date/sources/:source/works/*rest", h.sourceWorkRoute)
	h.router.GET("/:view/:date/prefixes/:prefix/events.json", h.prefixRoute)
	h.router.GET("/:view/:date/works/*rest", h.workRoute)

	// The ops endpoints live on an outer mux: httprouter cannot mix the
	// :view wildcard with static siblings at the root.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", h.router)

	return loggingMiddleware(mux)
}

func (h *Handler) dateRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.serve(w, r, query.Key{View: ps.ByName("view"), Date: ps.ByName("date")})
}

func (h *Handler) sourceRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.serve(w, r, query.Key{
		View:   ps.ByName("view"),
		Date:   ps.ByName("date"),
		Source: ps.ByName("source"),
	})
}

func (h *Handler) prefixRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.serve(w, r, query.Key{
		View:   ps.ByName("view"),
		Date:   ps.ByName("date"),
		Prefix: ps.ByName("prefix"),
	})
}

func (h *Handler) workRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	work, ok := workParam(ps.ByName("rest"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.serve(w, r, query.Key{
		View: ps.ByName("view"),
		Date: ps.ByName("date"),
		Work: work,
	})
}

func (h *Handler) sourceWorkRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	work, ok := workParam(ps.ByName("rest"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.serve(w, r, query.Key{
		View:   ps.ByName("view"),
		Date:   ps.ByName("date"),
		Source: ps.ByName("source"),
		Work:   work,
	})
}

// workParam extracts the work identifier from a catch-all segment of the
// form "/<work>/events.json", where <work> may itself contain slashes.
func workParam(rest string) (string, bool) {
	const suffix = "/events.json"
	rest = strings.TrimPrefix(rest, "/")
	if !strings.HasSuffix(rest, suffix) {
		return "", false
	}
	work := strings.TrimSuffix(rest, suffix)
	return work, work != ""
}

// serve runs the query gate for key k.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, k query.Key) {
	start := time.Now()

	// validate
	if !query.ValidView(k.View) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown view %q", k.View))
		return
	}
	day, err := datekey.Parse(k.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", k.Date))
		return
	}

	// locate: the window check runs first so future and prehistoric dates
	// never reach the upstream feed.
	if !h.inWindow(day) {
		writeJSON(w, http.StatusNotFound, query.NotFound(h.pipeline.ServiceBase(), k))
		return
	}
	env, err := h.pipeline.Events(r.Context(), k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upstream feed unavailable")
		return
	}
	if env == nil {
		writeJSON(w, http.StatusNotFound, query.NotFound(h.pipeline.ServiceBase(), k))
		return
	}

	// authorize: allowlist and experimental filtering, independently
	// overridable per request.
	keepAll := r.URL.Query().Get("whitelist") == "false"
	keepExperimental := r.URL.Query().Get("experimental") == "true"
	env = h.postFilter(env, keepAll, keepExperimental)

	// respond
	metrics.RequestDuration.Observe(float64(time.Since(start).Milliseconds()))
	writeJSON(w, http.StatusOK, env)
}

// inWindow reports whether day is strictly between the earliest boundary
// and today. Today itself is excluded: its archive is still being
// collected.
func (h *Handler) inWindow(day time.Time) bool {
	today, err := datekey.Parse(datekey.Format(h.now().UTC()))
	if err != nil {
		return false
	}
	return day.After(h.earliest) && day.Before(today)
}

// postFilter drops events from non-allowlisted sources and experimental
// events, then recomputes the total so it still matches len(events).
func (h *Handler) postFilter(env *query.Envelope, keepAll, keepExperimental bool) *query.Envelope {
	filtered := make([]event.Event, 0, len(env.Events))
	for _, ev := range env.Events {
		if !keepAll && !h.allow.Allowed(ev.SourceID) {
			continue
		}
		if !keepExperimental && ev.Experimental {
			continue
		}
		filtered = append(filtered, ev)
	}
	out := *env
	out.Events = filtered
	out.Meta.Total = len(filtered)
	return &out
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the upload queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := 0.0
	if h.uploads.QueueCap() > 0 {
		util = float64(h.uploads.QueueLen()) / float64(h.uploads.QueueCap())
	}
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// SPDX-License-Identifier: MIT

package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jmoldow/lazykit/internal/telemetry"
	"github.com/jmoldow/lazykit/lazyhttp"
	"github.com/jmoldow/lazykit/lazytext"
)

// visitorKey carries the per-request visitor slot installed on /v1 routes.
var visitorKey = lazyhttp.NewKey[Visitor]("visitor")

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Routes assembles the API router: the shared middleware stack, the ops
// endpoints and the /v1 API with its lazy visitor slot.
func (s *Server) Routes(cfg Config) http.Handler {
	stack := lazyhttp.StackConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableMetrics:   true,
		EnableLogging:   true,
		TracingService:  "lazykitd",
	}
	if cfg.Limits.GlobalRPS > 0 {
		stack.Throttle = &lazyhttp.ThrottleConfig{
			RPS:   rate.Limit(cfg.Limits.GlobalRPS),
			Burst: cfg.Limits.GlobalBurst,
		}
	}
	if cfg.Limits.RequestsPerMinute > 0 {
		stack.RateLimit = &lazyhttp.RateLimitConfig{
			RequestLimit: cfg.Limits.RequestsPerMinute,
			WindowSize:   time.Minute,
		}
	}

	r := lazyhttp.NewRouter(stack)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post("/-/reload", s.handleReload)

	r.Route("/v1", func(r chi.Router) {
		r.Use(lazyhttp.Provide(visitorKey, s.resolveVisitor))
		r.Get("/greeting", s.handleGreeting)
		r.Get("/whoami", s.handleWhoami)
		r.Get("/visits", s.handleVisits)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// handleHealthz is the liveness probe. It reports which lazy resources
// have been forced without forcing any of them.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"configLoaded":   s.holder.Forced(),
		"databaseOpened": s.db.Forced(),
		"storeOpened":    s.store.Forced(),
	})
}

// handleReload re-runs the config loader chain. Validation failures leave
// the previous configuration in place.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.ConfigAttributes(s.holder.Path(), "api")...)

	if err := s.holder.Reload(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if cfg, err := s.holder.Get(); err == nil {
		s.ApplyConfig(cfg)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// handleGreeting resolves the greeting in the language negotiated from
// Accept-Language. The message itself is lazy: it renders when written,
// in the language carried by the request context.
func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	tag := s.translator.Match(r.Header.Get("Accept-Language"))
	ctx := lazytext.WithLanguage(r.Context(), tag)

	trace.SpanFromContext(ctx).SetAttributes(telemetry.LocaleAttributes(tag.String(), greetingKey)...)

	msg := s.translator.Lazy(greetingKey)
	writeJSON(w, http.StatusOK, map[string]string{
		"greeting": msg.T(ctx),
		"language": tag.String(),
	})
}

// handleWhoami forces the visitor slot. Without an X-API-Key header this
// never touches the database; with one, the memoized lookup runs at most
// once per TTL window.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	v, err := lazyhttp.Force(r.Context(), visitorKey)
	switch {
	case errors.Is(err, ErrUnknownAPIKey):
		writeError(w, http.StatusUnauthorized, "unknown api key")
	case err != nil:
		trace.SpanFromContext(r.Context()).SetAttributes(telemetry.ErrorAttributes(err, "visitor_lookup")...)
		s.logger.Warn().Err(err).
			Str("event", "visitor.lookup_failed").
			Msg("visitor lookup failed")
		writeError(w, http.StatusServiceUnavailable, "visitor lookup unavailable")
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// handleVisits records a visit and reports the running total. This is the
// first endpoint that forces the database open.
func (s *Server) handleVisits(w http.ResponseWriter, r *http.Request) {
	db, err := s.db.Force()
	if err != nil {
		s.logger.Warn().Err(err).
			Str("event", "sqlite.unavailable").
			Msg("database unavailable")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	ctx := r.Context()
	if _, err := db.ExecContext(ctx, `INSERT INTO visits (visited_at) VALUES (?)`,
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		writeError(w, http.StatusInternalServerError, "record visit failed")
		return
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&n); err != nil {
		writeError(w, http.StatusInternalServerError, "count visits failed")
		return
	}

	tag := s.translator.Match(r.Header.Get("Accept-Language"))
	msg := s.translator.Lazy(visitsKey, n)
	writeJSON(w, http.StatusOK, map[string]any{
		"visits":   n,
		"message":  msg.T(lazytext.WithLanguage(ctx, tag)),
		"language": tag.String(),
	})
}

type memoStatsResponse struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"currentSize"`
}

type statsResponse struct {
	UptimeSeconds  float64            `json:"uptimeSeconds"`
	ConfigLoaded   bool               `json:"configLoaded"`
	DatabaseOpened bool               `json:"databaseOpened"`
	StoreOpened    bool               `json:"storeOpened"`
	Languages      []string           `json:"languages"`
	Memo           *memoStatsResponse `json:"memo,omitempty"`
}

// handleStats reports what has been forced so far. It deliberately peeks
// instead of forcing: asking for stats must not open anything.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tags := s.translator.Languages()
	langs := make([]string, 0, len(tags))
	for _, t := range tags {
		langs = append(langs, t.String())
	}

	resp := statsResponse{
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
		ConfigLoaded:   s.holder.Forced(),
		DatabaseOpened: s.db.Forced(),
		StoreOpened:    s.store.Forced(),
		Languages:      langs,
	}

	if store, ok := s.store.Peek(); ok {
		st := store.Stats()
		resp.Memo = &memoStatsResponse{
			Hits:        st.Hits,
			Misses:      st.Misses,
			Sets:        st.Sets,
			Evictions:   st.Evictions,
			CurrentSize: st.CurrentSize,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

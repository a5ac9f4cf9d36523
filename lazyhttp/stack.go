// SPDX-License-Identifier: MIT

package lazyhttp

import (
	"github.com/go-chi/chi/v5"
)

// StackConfig selects which middleware the standard stack installs.
// The zero value is a bare router with no middleware at all.
type StackConfig struct {
	// EnableRecover installs panic recovery as the outermost layer.
	EnableRecover bool
	// EnableRequestID assigns or propagates X-Request-ID.
	EnableRequestID bool
	// EnableMetrics records Prometheus request metrics.
	EnableMetrics bool
	// EnableLogging emits one structured log line per request.
	EnableLogging bool
	// TracingService, when non-empty, wraps handlers in OpenTelemetry
	// spans attributed to the named service.
	TracingService string
	// Throttle, when non-nil, caps the total request rate server-wide.
	Throttle *ThrottleConfig
	// RateLimit, when non-nil, throttles requests per client key.
	RateLimit *RateLimitConfig
}

// DefaultStackConfig enables everything except tracing and rate limiting,
// which need deployment-specific settings.
func DefaultStackConfig() StackConfig {
	return StackConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableMetrics:   true,
		EnableLogging:   true,
	}
}

// NewRouter returns a chi router with the configured middleware stack
// already applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack installs the configured middleware on the router in a fixed
// order: recovery first so it catches panics from every later layer,
// request IDs before logging and metrics so both can correlate, tracing
// inside metrics so span timings exclude metric bookkeeping, and the two
// limiters last so rejected requests still carry IDs and get logged,
// with the global throttle checked before the per-client limiter.
func ApplyStack(r chi.Router, cfg StackConfig) {
	if cfg.EnableRecover {
		r.Use(Recoverer)
	}
	if cfg.EnableRequestID {
		r.Use(RequestID)
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(Logger)
	}
	if cfg.Throttle != nil {
		r.Use(Throttle(*cfg.Throttle))
	}
	if cfg.RateLimit != nil {
		r.Use(RateLimit(*cfg.RateLimit))
	}
}

// SPDX-License-Identifier: MIT

package lazyhttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/jmoldow/lazykit/internal/log"
)

var throttleRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lazykit_http_throttle_rejections_total",
	Help: "Requests rejected by the global throttle",
})

// ThrottleConfig bounds the total request rate across all clients. It
// protects the server as a whole; per-client fairness is RateLimit's job.
type ThrottleConfig struct {
	// RPS is the sustained request rate the server accepts.
	RPS rate.Limit
	// Burst is the momentary headroom above RPS. Zero defaults to RPS.
	Burst int
}

// Throttle enforces a global token bucket in front of the handler chain.
// Rejected requests get a 429 with a JSON body and Retry-After: 1.
func Throttle(cfg ThrottleConfig) func(http.Handler) http.Handler {
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS)
	}
	limiter := rate.NewLimiter(cfg.RPS, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				throttleRejections.Inc()

				logger := log.WithComponentFromContext(r.Context(), "throttle")
				logger.Warn().
					Str(log.FieldEvent, "throttle.exceeded").
					Str(log.FieldMethod, r.Method).
					Str(log.FieldPath, r.URL.Path).
					Msg("request rejected by global throttle")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"throttled","detail":"Server is over capacity. Please retry shortly."}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

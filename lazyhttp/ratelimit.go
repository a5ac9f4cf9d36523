// SPDX-License-Identifier: MIT

package lazyhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/jmoldow/lazykit/internal/log"
)

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests per window.
	RequestLimit int
	// WindowSize is the sliding window duration.
	WindowSize time.Duration
	// KeyFunc derives the throttle key from a request. Nil means per-IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit returns sliding-window throttling middleware built on httprate.
// Rejected requests get a JSON 429 with a Retry-After header covering the
// full window.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	retryAfter := strconv.Itoa(int(cfg.WindowSize.Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger := log.WithComponentFromContext(r.Context(), "ratelimit")
			logger.Warn().
				Str(log.FieldEvent, "ratelimit.exceeded").
				Str(log.FieldMethod, r.Method).
				Str(log.FieldPath, r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("request rejected by rate limiter")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	)
}

// DefaultRateLimit throttles general API traffic at 600 requests per minute
// per client IP.
func DefaultRateLimit() func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: 600,
		WindowSize:   time.Minute,
	})
}

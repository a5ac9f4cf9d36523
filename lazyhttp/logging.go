// SPDX-License-Identifier: MIT

package lazyhttp

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jmoldow/lazykit/internal/log"
)

// Logger emits one structured log line per completed request with method,
// path, status, bytes written and duration.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		logger := log.WithComponentFromContext(r.Context(), "http")
		logger.Info().
			Str(log.FieldEvent, "request.completed").
			Str(log.FieldMethod, r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int(log.FieldStatus, status).
			Int("bytes", ww.BytesWritten()).
			Int64(log.FieldDuration, time.Since(start).Milliseconds()).
			Msg("request completed")
	})
}

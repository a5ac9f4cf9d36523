// SPDX-License-Identifier: MIT

package lazyhttp

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jmoldow/lazykit/internal/log"
)

// HeaderRequestID is the header carrying the request correlation ID.
const HeaderRequestID = "X-Request-ID"

// RequestID adds a unique ID to every request. An inbound X-Request-ID is
// honored so IDs survive proxies; otherwise a fresh UUID is issued. The ID
// is echoed on the response and stored in the log context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

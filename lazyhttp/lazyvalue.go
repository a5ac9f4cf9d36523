// SPDX-License-Identifier: MIT

package lazyhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/jmoldow/lazykit/internal/telemetry"
	"github.com/jmoldow/lazykit/lazy"
)

// ErrNoValue is returned by Force when no Provide middleware installed a
// slot for the key.
var ErrNoValue = errors.New("no value provided for key")

// Key identifies a request-scoped lazy value of type T. The pointer itself
// is the context key, so two keys never collide even with the same name.
type Key[T any] struct {
	name string
}

// NewKey creates a key. The name only appears in errors and metrics.
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name}
}

func (k *Key[T]) String() string { return k.name }

// Provide returns middleware installing a deferred value under key.
//
// setup receives the request as seen by downstream handlers and runs when
// the slot is first forced: zero times if no handler forces, once per
// request no matter how many handlers force. setup must not force its own
// slot.
func Provide[T any](key *Key[T], setup func(*http.Request) (T, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var derived *http.Request
			slot := lazy.New(func() (T, error) {
				span := trace.SpanFromContext(derived.Context())
				v, err := setup(derived)
				if err != nil {
					slotForces.WithLabelValues(key.name, "error").Inc()
					span.SetAttributes(telemetry.SlotAttributes(key.name, "error")...)
					var zero T
					return zero, err
				}
				slotForces.WithLabelValues(key.name, "ok").Inc()
				span.SetAttributes(telemetry.SlotAttributes(key.name, "ok")...)
				return v, nil
			})
			derived = r.WithContext(context.WithValue(r.Context(), key, slot))
			next.ServeHTTP(w, derived)
		})
	}
}

// Lazy returns the slot installed for key without forcing it.
func Lazy[T any](ctx context.Context, key *Key[T]) (*lazy.Value[T], bool) {
	slot, ok := ctx.Value(key).(*lazy.Value[T])
	return slot, ok
}

// Force evaluates the slot for key, running its setup on first use.
// Returns ErrNoValue if no Provide middleware ran for this key.
func Force[T any](ctx context.Context, key *Key[T]) (T, error) {
	slot, ok := Lazy(ctx, key)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNoValue, key.name)
	}
	return slot.Force()
}

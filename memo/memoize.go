// SPDX-License-Identifier: MIT

package memo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jmoldow/lazykit/internal/telemetry"
)

// Options configure a memoized function.
type Options[K any] struct {
	// Key derives the store key for an argument.
	// Defaults to fmt.Sprint over the argument.
	Key func(K) string
	// TTL bounds how long results are retained.
	// Zero retains results until evicted by the store.
	TTL time.Duration
}

// Memoize wraps fn so results are stored in store, keyed by argument.
//
// Results round-trip through JSON, so V must marshal losslessly. Errors are
// never stored; a failed call leaves the key absent and the next call
// computes again. Concurrent callers for the same key share one in-flight
// computation and all receive its result.
func Memoize[K any, V any](store Store, fn func(context.Context, K) (V, error), opts Options[K]) func(context.Context, K) (V, error) {
	if store == nil {
		store = NewNopStore()
	}
	keyFn := opts.Key
	if keyFn == nil {
		keyFn = func(k K) string { return fmt.Sprint(k) }
	}
	name := storeName(store)

	var sf singleflight.Group
	return func(ctx context.Context, k K) (V, error) {
		key := keyFn(k)

		if data, ok := store.Get(key); ok {
			var v V
			if err := json.Unmarshal(data, &v); err == nil {
				trace.SpanFromContext(ctx).SetAttributes(telemetry.MemoAttributes(name, key, true)...)
				return v, nil
			}
			// Undecodable entries are dropped and recomputed.
			store.Delete(key)
		}

		val, err, _ := sf.Do(key, func() (interface{}, error) {
			v, err := fn(ctx, k)
			if err != nil {
				return nil, err
			}
			if data, err := json.Marshal(v); err == nil {
				store.Set(key, data, opts.TTL)
			}
			return v, nil
		})
		if err != nil {
			var zero V
			return zero, err
		}
		trace.SpanFromContext(ctx).SetAttributes(telemetry.MemoAttributes(name, key, false)...)
		return val.(V), nil
	}
}

// storeName labels span attributes for a store. Stores may implement
// Name() string; anything else is labeled by its type.
func storeName(s Store) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

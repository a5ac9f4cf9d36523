// SPDX-License-Identifier: MIT

// Package lazy provides deferred values: computations that run only when
// their result is first needed.
//
// Three kinds of deferral cover the common cases:
//
//   - Value computes once and caches. Use it for things that are expensive
//     to build and stable afterwards (connections, parsed configuration).
//   - Deferred re-evaluates on every Force. Use it when the result must
//     track ambient state that changes between accesses.
//   - String is a deferred string that renders when formatted or encoded.
//
// Every deferred value implements Promise, so code that receives an `any`
// can detect and force deferral without knowing the concrete type. Lift
// builds on that to adapt ordinary functions to possibly-deferred
// arguments.
package lazy

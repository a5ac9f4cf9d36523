// SPDX-License-Identifier: MIT

package lazy

import (
	"fmt"
	"strings"
)

// String is a deferred string. Unlike Value, stringification forces: fmt and
// the encoding packages observe the rendered text, and every render re-runs
// the underlying function. The zero String renders empty.
type String struct {
	fn func() string
}

// NewString returns a String rendering fn on every use.
func NewString(fn func() string) String {
	return String{fn: fn}
}

// Sprintf returns a deferred fmt.Sprintf. Deferred arguments are forced at
// render time, so the output reflects their state when the String is used,
// not when it was built.
func Sprintf(format string, args ...any) String {
	return String{fn: func() string {
		forced := make([]any, len(args))
		for i, a := range args {
			out, err := ForceAny(a)
			if err != nil {
				out = fmt.Sprintf("%%!(LAZY=%v)", err)
			}
			forced[i] = out
		}
		return fmt.Sprintf(format, forced...)
	}}
}

// Concat returns a deferred concatenation of parts. Parts may be strings,
// fmt.Stringers, or deferred values; everything is rendered at use time.
func Concat(parts ...any) String {
	return String{fn: func() string {
		var b strings.Builder
		for _, p := range parts {
			out, err := ForceAny(p)
			if err != nil {
				fmt.Fprintf(&b, "%%!(LAZY=%v)", err)
				continue
			}
			switch s := out.(type) {
			case string:
				b.WriteString(s)
			default:
				fmt.Fprintf(&b, "%v", s)
			}
		}
		return b.String()
	}}
}

// String renders the deferred string.
func (s String) String() string {
	if s.fn == nil {
		return ""
	}
	return s.fn()
}

// Eval implements Promise.
func (s String) Eval() (any, error) {
	return s.String(), nil
}

// MarshalText renders the string for the encoding packages, forcing it.
func (s String) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

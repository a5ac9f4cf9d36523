// SPDX-License-Identifier: MIT

package lazytext

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jmoldow/lazykit/lazy"
)

// Message is a deferred translation. It holds a key and arguments; the
// text comes into existence on each render, in whatever language and
// translation state is active then.
type Message struct {
	t    *Translator
	key  string
	args []any
}

// Lazy returns a Message for key. Arguments may themselves be deferred;
// they are forced at render time.
func (t *Translator) Lazy(key string, args ...any) Message {
	return Message{t: t, key: key, args: args}
}

// resolveArgs forces deferred arguments, substituting a marker for ones
// that fail (mirrors lazy.Sprintf).
func (m Message) resolveArgs() []any {
	if len(m.args) == 0 {
		return nil
	}
	forced := make([]any, len(m.args))
	for i, a := range m.args {
		out, err := lazy.ForceAny(a)
		if err != nil {
			out = fmt.Sprintf("%%!(LAZY=%v)", err)
		}
		forced[i] = out
	}
	return forced
}

// In renders the message in an explicit language. Keys without a
// translation render the key itself.
func (m Message) In(tag language.Tag) string {
	if m.t == nil {
		return m.key
	}
	p := message.NewPrinter(tag, message.Catalog(m.t.builder))
	return p.Sprintf(m.key, m.resolveArgs()...)
}

// T renders the message in the context language if one is set, else in
// the translator's default.
func (m Message) T(ctx context.Context) string {
	if m.t == nil {
		return m.key
	}
	if tag, ok := LanguageFromContext(ctx); ok {
		return m.In(tag)
	}
	return m.In(m.t.Default())
}

// String renders the message in the translator's default language.
// Stringification forces, like lazy.String.
func (m Message) String() string {
	if m.t == nil {
		return m.key
	}
	return m.In(m.t.Default())
}

// Eval implements lazy.Promise, so Messages compose with lazy.Sprintf,
// lazy.Concat and lazy.Lift.
func (m Message) Eval() (any, error) {
	return m.String(), nil
}

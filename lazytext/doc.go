// SPDX-License-Identifier: MIT

// Package lazytext provides translated strings that render at use time.
//
// A Message built at startup carries a key and arguments, not text. Every
// render looks up the translation for the language active at that moment,
// so changing the default language, adding translations or switching the
// request language re-renders existing messages correctly. Messages are
// deliberately not memoized.
//
// Built on golang.org/x/text: a catalog.Builder holds translations, a
// language.Matcher resolves Accept-Language preferences and
// message.Printer does the rendering.
package lazytext

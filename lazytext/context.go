// SPDX-License-Identifier: MIT

package lazytext

import (
	"context"

	"golang.org/x/text/language"
)

type ctxKey string

const languageKey ctxKey = "language"

// WithLanguage stores the rendering language in the context.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, languageKey, tag)
}

// LanguageFromContext extracts the rendering language from context if present.
func LanguageFromContext(ctx context.Context) (language.Tag, bool) {
	if ctx == nil {
		return language.Und, false
	}
	if v, ok := ctx.Value(languageKey).(language.Tag); ok {
		return v, true
	}
	return language.Und, false
}

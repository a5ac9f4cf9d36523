// SPDX-License-Identifier: MIT

package lazytext

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Translator holds translations and resolves which language to render in.
// All methods are safe for concurrent use.
type Translator struct {
	fallback language.Tag
	builder  *catalog.Builder

	mu      sync.RWMutex
	tags    []language.Tag // fallback first; matcher priority order
	matcher language.Matcher

	def atomic.Value // language.Tag
}

// NewTranslator creates a translator whose fallback receives untranslated
// renders. The fallback starts out as the default language.
func NewTranslator(fallback language.Tag) *Translator {
	t := &Translator{
		fallback: fallback,
		builder:  catalog.NewBuilder(catalog.Fallback(fallback)),
		tags:     []language.Tag{fallback},
	}
	t.matcher = language.NewMatcher(t.tags)
	t.def.Store(fallback)
	return t
}

// SetString registers the translation of key for tag. Later registrations
// are visible to Messages already handed out.
func (t *Translator) SetString(tag language.Tag, key, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.builder.SetString(tag, key, msg); err != nil {
		return fmt.Errorf("register translation %q: %w", key, err)
	}

	for _, known := range t.tags {
		if known == tag {
			return nil
		}
	}
	t.tags = append(t.tags, tag)
	t.matcher = language.NewMatcher(t.tags)
	return nil
}

// Languages returns the registered languages, fallback first.
func (t *Translator) Languages() []language.Tag {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]language.Tag, len(t.tags))
	copy(out, t.tags)
	return out
}

// Match resolves Accept-Language style preference strings to the best
// registered language. Unparseable or unmatched preferences fall back to
// the current default.
func (t *Translator) Match(prefs ...string) language.Tag {
	var wanted []language.Tag
	for _, p := range prefs {
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		wanted = append(wanted, parsed...)
	}
	if len(wanted) == 0 {
		return t.Default()
	}

	t.mu.RLock()
	matcher := t.matcher
	supported := t.tags
	t.mu.RUnlock()

	_, idx, conf := matcher.Match(wanted...)
	if conf == language.No {
		return t.Default()
	}
	return supported[idx]
}

// SetDefault changes the language used by renders that name no language.
// Existing Messages pick it up on their next render.
func (t *Translator) SetDefault(tag language.Tag) {
	t.def.Store(tag)
}

// Default returns the current default language.
func (t *Translator) Default() language.Tag {
	return t.def.Load().(language.Tag)
}

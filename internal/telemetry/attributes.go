// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the toolkit.
const (
	// Memoization attributes
	MemoStoreKey = "memo.store"
	MemoKeyKey   = "memo.key"
	MemoHitKey   = "memo.hit"

	// Request-scoped lazy value attributes
	SlotKeyKey     = "lazyvalue.key"
	SlotOutcomeKey = "lazyvalue.outcome"

	// Localization attributes
	LocaleLanguageKey = "l10n.language"
	LocaleMessageKey  = "l10n.message_key"

	// Configuration attributes
	ConfigPathKey   = "config.path"
	ConfigSourceKey = "config.source"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// MemoAttributes creates memoization span attributes.
func MemoAttributes(store, key string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MemoStoreKey, store),
		attribute.String(MemoKeyKey, key),
		attribute.Bool(MemoHitKey, hit),
	}
}

// SlotAttributes creates request-scoped lazy value span attributes.
func SlotAttributes(key, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SlotKeyKey, key),
		attribute.String(SlotOutcomeKey, outcome),
	}
}

// LocaleAttributes creates localization span attributes. Empty fields are
// omitted.
func LocaleAttributes(language, messageKey string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if language != "" {
		attrs = append(attrs, attribute.String(LocaleLanguageKey, language))
	}
	if messageKey != "" {
		attrs = append(attrs, attribute.String(LocaleMessageKey, messageKey))
	}
	return attrs
}

// ConfigAttributes creates configuration span attributes.
func ConfigAttributes(path, source string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ConfigPathKey, path),
		attribute.String(ConfigSourceKey, source),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

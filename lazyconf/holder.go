// SPDX-License-Identifier: MIT

package lazyconf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/jmoldow/lazykit/internal/log"
	"github.com/jmoldow/lazykit/lazy"
)

// ErrNotLoaded is returned by operations that need a materialized snapshot
// before anything has loaded one.
var ErrNotLoaded = errors.New("configuration not loaded")

// Option configures a Holder.
type Option[T any] func(*Holder[T])

// WithValidator rejects loaded configurations that fail fn. A rejected
// load never becomes the current snapshot.
func WithValidator[T any](fn func(T) error) Option[T] {
	return func(h *Holder[T]) { h.validate = fn }
}

// WithPath associates a file path with the holder, enabling StartWatcher
// and Save.
func WithPath[T any](path string) Option[T] {
	return func(h *Holder[T]) { h.path = path }
}

// WithLogger replaces the holder's logger.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(h *Holder[T]) { h.logger = logger }
}

// Holder holds configuration with lazy first load and atomic reloading.
//
// Nothing is loaded until the first Get. Afterwards Get serves the current
// snapshot, Reload swaps it atomically and a file watcher can trigger
// reloads on change.
type Holder[T any] struct {
	loader   Loader[T]
	validate func(T) error
	path     string
	logger   zerolog.Logger

	first *lazy.Value[T]

	mu      sync.RWMutex
	current T
	loaded  bool

	watcher *fsnotify.Watcher

	// Reload notifications
	reloadMu        sync.RWMutex
	reloadListeners []chan<- T
}

// NewHolder creates a holder around loader. The loader does not run here.
func NewHolder[T any](loader Loader[T], opts ...Option[T]) *Holder[T] {
	h := &Holder[T]{
		loader:          loader,
		logger:          log.WithComponent("lazyconf"),
		reloadListeners: make([]chan<- T, 0),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.first = lazy.New(h.loadValidated)
	return h
}

// loadValidated runs the loader and validator.
func (h *Holder[T]) loadValidated() (T, error) {
	cfg, err := h.loader()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load config: %w", err)
	}
	if h.validate != nil {
		if err := h.validate(cfg); err != nil {
			var zero T
			return zero, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}

// Get returns the current configuration, loading it on first use.
// A failed first load leaves the holder unloaded; the next Get retries.
func (h *Holder[T]) Get() (T, error) {
	h.mu.RLock()
	if h.loaded {
		cur := h.current
		h.mu.RUnlock()
		return cur, nil
	}
	h.mu.RUnlock()

	v, err := h.first.Force()
	if err != nil {
		var zero T
		return zero, err
	}

	h.mu.Lock()
	// A Reload or Override may have installed a snapshot while the first
	// load ran; the installed snapshot wins.
	if !h.loaded {
		h.current = v
		h.loaded = true
	}
	cur := h.current
	h.mu.Unlock()
	return cur, nil
}

// Forced reports whether a snapshot has been materialized, by first load,
// reload or override.
func (h *Holder[T]) Forced() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loaded
}

// Path reports the file path configured via WithPath, or "".
func (h *Holder[T]) Path() string {
	return h.path
}

// Reload loads and validates a new configuration. If any step fails, the
// old snapshot is kept and an error is returned; either the full new
// config is applied or nothing changes.
func (h *Holder[T]) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loadValidated()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return err
	}

	h.mu.Lock()
	h.current = newCfg
	h.loaded = true
	h.mu.Unlock()

	h.notifyListeners(newCfg)

	h.logger.Info().
		Str(log.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")

	return nil
}

// StartWatcher starts watching the holder's path for changes.
// Without a path this is a no-op (config comes from ENV or code only).
func (h *Holder[T]) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (no path configured)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	h.watcher = watcher

	if err := watcher.Add(h.path); err != nil {
		_ = watcher.Close() // Ignore close error in error path
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str(log.FieldPath, h.path).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)

	return nil
}

// watchLoop is the main file watcher loop.
func (h *Holder[T]) watchLoop(ctx context.Context) {
	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close() // Ignore close error in error path
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Watch for Write and Create events (covers vim, nano, echo)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.logger.Debug().
					Str(log.FieldEvent, "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")

				// Debounce: reset timer on each event
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str(log.FieldEvent, "config.auto_reload_failed").
							Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(log.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running).
func (h *Holder[T]) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close() // Ignore close error in error path
	}
}

// RegisterListener registers a channel to receive reload notifications.
// The channel receives the new config whenever a reload succeeds.
// The caller is responsible for closing the channel.
func (h *Holder[T]) RegisterListener(ch chan<- T) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new config to all registered listeners (non-blocking).
func (h *Holder[T]) notifyListeners(newCfg T) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			// Skip if channel is full (non-blocking send)
			h.logger.Warn().
				Str(log.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// Override installs v as the current snapshot without running the loader
// and returns a function restoring the previous state. Intended for tests
// and scoped overrides.
func (h *Holder[T]) Override(v T) (restore func()) {
	h.mu.Lock()
	prev := h.current
	wasLoaded := h.loaded
	h.current = v
	h.loaded = true
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		h.current = prev
		h.loaded = wasLoaded
		h.mu.Unlock()
	}
}

// Save persists the current snapshot to the holder's path as YAML, written
// atomically. Returns ErrNotLoaded before the first load.
func (h *Holder[T]) Save() error {
	if h.path == "" {
		return fmt.Errorf("save config: no path configured")
	}

	h.mu.RLock()
	cur := h.current
	loaded := h.loaded
	h.mu.RUnlock()

	if !loaded {
		return ErrNotLoaded
	}

	data, err := yaml.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// renameio handles temp file creation, fsync, atomic rename and
	// cleanup on error
	pending, err := renameio.NewPendingFile(h.path)
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			h.logger.Debug().Err(err).Msg("cleanup pending config file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write config data: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.saved").
		Str(log.FieldPath, h.path).
		Msg("configuration saved")

	return nil
}

// SPDX-License-Identifier: MIT

package lazyconf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestHolder_GetIsLazy(t *testing.T) {
	var loads atomic.Int64
	holder := NewHolder(func() (serverConfig, error) {
		loads.Add(1)
		return serverConfig{Greeting: "hi"}, nil
	})

	if loads.Load() != 0 {
		t.Fatal("constructing a holder must not run the loader")
	}
	if holder.Forced() {
		t.Fatal("holder must not be forced before first Get")
	}

	cfg, err := holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "hi" {
		t.Errorf("expected greeting hi, got %q", cfg.Greeting)
	}
	if loads.Load() != 1 {
		t.Errorf("expected 1 load, got %d", loads.Load())
	}
	if !holder.Forced() {
		t.Error("holder must be forced after Get")
	}

	// Later Gets serve the snapshot without reloading.
	if _, err := holder.Get(); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if loads.Load() != 1 {
		t.Errorf("expected snapshot reuse, got %d loads", loads.Load())
	}
}

func TestHolder_FailedFirstLoadRetries(t *testing.T) {
	var loads atomic.Int64
	holder := NewHolder(func() (serverConfig, error) {
		if loads.Add(1) == 1 {
			return serverConfig{}, errors.New("disk unavailable")
		}
		return serverConfig{Greeting: "recovered"}, nil
	})

	if _, err := holder.Get(); err == nil {
		t.Fatal("expected first Get to fail")
	}
	if holder.Forced() {
		t.Error("failed load must leave the holder unloaded")
	}

	cfg, err := holder.Get()
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if cfg.Greeting != "recovered" {
		t.Errorf("expected recovered config, got %+v", cfg)
	}
}

func TestHolder_ValidatorRejectsLoad(t *testing.T) {
	holder := NewHolder(
		Static(serverConfig{MaxConns: -1}),
		WithValidator[serverConfig](func(cfg serverConfig) error {
			if cfg.MaxConns < 0 {
				return fmt.Errorf("maxConns must not be negative: %d", cfg.MaxConns)
			}
			return nil
		}),
	)

	if _, err := holder.Get(); err == nil {
		t.Fatal("expected validator to reject config")
	}
	if holder.Forced() {
		t.Error("rejected config must not be installed")
	}
}

func TestHolder_Reload_Success(t *testing.T) {
	path := writeConfigFile(t, "greeting: old\n")
	holder := NewHolder(FromYAMLFile[serverConfig](path), WithPath[serverConfig](path))

	cfg, err := holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "old" {
		t.Fatalf("expected old greeting, got %q", cfg.Greeting)
	}

	if err := os.WriteFile(path, []byte("greeting: new\n"), 0600); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	if err := holder.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	cfg, err = holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "new" {
		t.Errorf("expected new greeting after reload, got %q", cfg.Greeting)
	}
}

func TestHolder_Reload_FailureKeepsOldSnapshot(t *testing.T) {
	path := writeConfigFile(t, "greeting: stable\n")
	holder := NewHolder(FromYAMLFile[serverConfig](path), WithPath[serverConfig](path))

	if _, err := holder.Get(); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	// Unknown key makes the strict decode fail.
	if err := os.WriteFile(path, []byte("bouquet: nope\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := holder.Reload(context.Background()); err == nil {
		t.Fatal("expected Reload() to fail")
	}

	cfg, err := holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "stable" {
		t.Errorf("expected old config to be preserved, got %q", cfg.Greeting)
	}
}

func TestHolder_ReloadBeforeGetPreemptsFirstLoad(t *testing.T) {
	var loads atomic.Int64
	holder := NewHolder(func() (serverConfig, error) {
		loads.Add(1)
		return serverConfig{Greeting: fmt.Sprintf("load-%d", loads.Load())}, nil
	})

	if err := holder.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	cfg, err := holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "load-1" {
		t.Errorf("expected reload snapshot to be served, got %q", cfg.Greeting)
	}
	if loads.Load() != 1 {
		t.Errorf("Get after Reload must not load again, got %d loads", loads.Load())
	}
}

func TestHolder_RegisterListener(t *testing.T) {
	path := writeConfigFile(t, "greeting: old\n")
	holder := NewHolder(FromYAMLFile[serverConfig](path), WithPath[serverConfig](path))

	if _, err := holder.Get(); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	ch := make(chan serverConfig, 1)
	holder.RegisterListener(ch)

	if err := os.WriteFile(path, []byte("greeting: new\n"), 0600); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}
	if err := holder.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	select {
	case received := <-ch:
		if received.Greeting != "new" {
			t.Errorf("expected listener to receive new config, got %q", received.Greeting)
		}
	default:
		t.Error("listener did not receive config update")
	}
}

func TestHolder_NotifyListeners_NonBlocking(t *testing.T) {
	holder := NewHolder(Static(serverConfig{Greeting: "x"}))

	// Unbuffered channel with no reader must not block the reload.
	ch := make(chan serverConfig)
	holder.RegisterListener(ch)

	if err := holder.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	// Test passes if Reload() didn't block.
}

func TestHolder_Override(t *testing.T) {
	var loads atomic.Int64
	holder := NewHolder(func() (serverConfig, error) {
		loads.Add(1)
		return serverConfig{Greeting: "loaded"}, nil
	})

	restore := holder.Override(serverConfig{Greeting: "injected"})

	cfg, err := holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "injected" {
		t.Errorf("expected injected config, got %q", cfg.Greeting)
	}
	if loads.Load() != 0 {
		t.Errorf("override must pre-empt the loader, got %d loads", loads.Load())
	}

	restore()

	if holder.Forced() {
		t.Error("restore must return the holder to its unloaded state")
	}

	cfg, err = holder.Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cfg.Greeting != "loaded" {
		t.Errorf("expected loader to run after restore, got %q", cfg.Greeting)
	}
}

func TestHolder_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	holder := NewHolder(Static(serverConfig{Listen: ":8080", Greeting: "persisted"}), WithPath[serverConfig](path))

	// Nothing materialized yet.
	if err := holder.Save(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}

	if _, err := holder.Get(); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if err := holder.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}

	var saved serverConfig
	if err := yaml.Unmarshal(data, &saved); err != nil {
		t.Fatalf("saved config is not valid YAML: %v", err)
	}
	if saved.Greeting != "persisted" || saved.Listen != ":8080" {
		t.Errorf("saved config mismatch: %+v", saved)
	}
}

func TestHolder_SaveWithoutPath(t *testing.T) {
	holder := NewHolder(Static(serverConfig{}))
	if _, err := holder.Get(); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if err := holder.Save(); err == nil {
		t.Fatal("expected Save() without path to fail")
	}
}

func TestHolder_StartWatcher_EmptyPath(t *testing.T) {
	holder := NewHolder(Static(serverConfig{}))

	// No path configured: watcher is a no-op.
	if err := holder.StartWatcher(context.Background()); err != nil {
		t.Fatalf("StartWatcher() failed: %v", err)
	}
	holder.Stop()
}

func TestHolder_WatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := writeConfigFile(t, "greeting: watched\n")
	holder := NewHolder(FromYAMLFile[serverConfig](path), WithPath[serverConfig](path))

	if _, err := holder.Get(); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := holder.StartWatcher(ctx); err != nil {
		t.Fatalf("StartWatcher() failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("greeting: rewritten\n"), 0600); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	// The watcher debounces for 500ms before reloading.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		cfg, err := holder.Get()
		if err == nil && cfg.Greeting == "rewritten" {
			cancel()
			// Give the watch loop a moment to observe cancellation.
			time.Sleep(50 * time.Millisecond)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the config in time")
}

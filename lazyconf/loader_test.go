// SPDX-License-Identifier: MIT

package lazyconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type serverConfig struct {
	Listen   string `yaml:"listen"`
	Greeting string `yaml:"greeting"`
	MaxConns int    `yaml:"maxConns"`
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestFromYAMLFile(t *testing.T) {
	path := writeConfigFile(t, "listen: :8080\ngreeting: hello\nmaxConns: 64\n")

	cfg, err := FromYAMLFile[serverConfig](path)()
	if err != nil {
		t.Fatalf("FromYAMLFile() failed: %v", err)
	}

	want := serverConfig{Listen: ":8080", Greeting: "hello", MaxConns: 64}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromYAMLFile_UnknownKeyRejected(t *testing.T) {
	path := writeConfigFile(t, "listen: :8080\nbouquet: oops\n")

	_, err := FromYAMLFile[serverConfig](path)()
	if err == nil {
		t.Fatal("expected strict decode to reject unknown key")
	}
}

func TestFromYAMLFile_EmptyFile(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := FromYAMLFile[serverConfig](path)()
	if err != nil {
		t.Fatalf("expected empty file to decode to zero value, got %v", err)
	}
	if cfg != (serverConfig{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestFromYAMLFile_MissingFile(t *testing.T) {
	_, err := FromYAMLFile[serverConfig]("/nonexistent/config.yaml")()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromYAMLFile_RunsLate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	// Constructing the loader must not touch the file.
	loader := FromYAMLFile[serverConfig](path)

	if err := os.WriteFile(path, []byte("greeting: late\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := loader()
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}
	if cfg.Greeting != "late" {
		t.Errorf("expected greeting written after construction, got %q", cfg.Greeting)
	}
}

func TestStatic(t *testing.T) {
	cfg, err := Static(serverConfig{Listen: ":9090"})()
	if err != nil {
		t.Fatalf("Static() failed: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Listen)
	}
}

func TestCompose_EnvOverFileOverDefaults(t *testing.T) {
	path := writeConfigFile(t, "listen: :8080\ngreeting: from-file\n")

	t.Setenv("LAZYKIT_TEST_GREETING", "from-env")

	loader := Compose(
		Static(serverConfig{Listen: ":3000", Greeting: "default", MaxConns: 16}),
		FileOverlay[serverConfig](path),
		func(cfg *serverConfig) error {
			cfg.Greeting = ParseString("LAZYKIT_TEST_GREETING", cfg.Greeting)
			return nil
		},
	)

	cfg, err := loader()
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	// Listen from the file, greeting from env, maxConns untouched default.
	want := serverConfig{Listen: ":8080", Greeting: "from-env", MaxConns: 16}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("precedence mismatch (-want +got):\n%s", diff)
	}
}

func TestFileOverlay_KeepsBaseForAbsentKeys(t *testing.T) {
	path := writeConfigFile(t, "greeting: partial\n")

	cfg := serverConfig{Listen: ":3000", Greeting: "default", MaxConns: 16}
	if err := FileOverlay[serverConfig](path)(&cfg); err != nil {
		t.Fatalf("FileOverlay() failed: %v", err)
	}

	want := serverConfig{Listen: ":3000", Greeting: "partial", MaxConns: 16}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("overlay mismatch (-want +got):\n%s", diff)
	}
}

func TestFileOverlay_EmptyPathIsNoOp(t *testing.T) {
	cfg := serverConfig{Greeting: "kept"}
	if err := FileOverlay[serverConfig]("")(&cfg); err != nil {
		t.Fatalf("FileOverlay(\"\") failed: %v", err)
	}
	if cfg.Greeting != "kept" {
		t.Errorf("expected untouched config, got %+v", cfg)
	}
}

func TestFileOverlay_MissingFile(t *testing.T) {
	var cfg serverConfig
	if err := FileOverlay[serverConfig]("/nonexistent/config.yaml")(&cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCompose_OverlayErrorStopsChain(t *testing.T) {
	boom := errors.New("overlay exploded")
	applied := false

	loader := Compose(Static(serverConfig{}),
		func(*serverConfig) error { return boom },
		func(*serverConfig) error { applied = true; return nil },
	)

	_, err := loader()
	if !errors.Is(err, boom) {
		t.Fatalf("expected overlay error, got %v", err)
	}
	if applied {
		t.Error("later overlay must not run after a failure")
	}
}

func TestCompose_NilOverlaySkipped(t *testing.T) {
	loader := Compose(Static(serverConfig{Greeting: "kept"}), nil)

	cfg, err := loader()
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}
	if cfg.Greeting != "kept" {
		t.Errorf("expected nil overlay to be skipped, got %+v", cfg)
	}
}

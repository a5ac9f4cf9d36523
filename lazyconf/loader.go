// SPDX-License-Identifier: MIT

package lazyconf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader produces a configuration value. Loaders run late, when a Holder
// first needs the value, not when they are constructed.
type Loader[T any] func() (T, error)

// Static returns a Loader that yields v as-is. Useful as a defaults base
// for Compose and in tests.
func Static[T any](v T) Loader[T] {
	return func() (T, error) {
		return v, nil
	}
}

// FromYAMLFile returns a Loader that reads and strictly decodes a YAML file.
// Unknown keys are rejected. An empty file decodes to the zero value.
func FromYAMLFile[T any](path string) Loader[T] {
	return func() (T, error) {
		var cfg T
		err := decodeYAMLFile(path, &cfg)
		return cfg, err
	}
}

// FileOverlay returns an overlay for Compose that strictly decodes a YAML
// file over the current value, so keys absent from the file keep their base
// (default) values. An empty path is a no-op.
func FileOverlay[T any](path string) func(*T) error {
	return func(cfg *T) error {
		if path == "" {
			return nil
		}
		return decodeYAMLFile(path, cfg)
	}
}

func decodeYAMLFile[T any](path string, cfg *T) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Compose applies overlays to the value produced by base, in order.
// Precedence layering (defaults, then file, then environment) is expressed
// as overlays over a base loader.
func Compose[T any](base Loader[T], overlays ...func(*T) error) Loader[T] {
	return func() (T, error) {
		cfg, err := base()
		if err != nil {
			return cfg, err
		}
		for _, overlay := range overlays {
			if overlay == nil {
				continue
			}
			if err := overlay(&cfg); err != nil {
				return cfg, fmt.Errorf("apply overlay: %w", err)
			}
		}
		return cfg, nil
	}
}

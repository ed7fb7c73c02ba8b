// SPDX-License-Identifier: MPL-2.0

// Package modtest provides test helpers for creating mods on disk.
//
// This package is separate from testutil to avoid import cycles, since testutil
// is used by pkg/mod tests which cannot transitively import pkg/mod.
//
// Usage:
//
//	m := modtest.New(t, map[string]string{"data.bin": "test"})
//	m := modtest.New(t, files, modtest.WithInclude("*.esp"), modtest.WithVersion("2.0.0"))
package modtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/modist-io/modist/internal/testutil"
	"github.com/modist-io/modist/pkg/mod"
)

// Option configures the descriptor of a test mod.
type Option func(*mod.Descriptor)

// WithName overrides the default name "test-mod".
func WithName(name string) Option {
	return func(d *mod.Descriptor) { d.Name = name }
}

// WithVersion overrides the default version "0.1.0".
func WithVersion(version string) Option {
	return func(d *mod.Descriptor) { d.Version = mod.SemVer(version) }
}

// WithInclude sets the descriptor's include patterns.
func WithInclude(patterns ...string) Option {
	return func(d *mod.Descriptor) { d.Include = patterns }
}

// WithExclude sets the descriptor's exclude patterns.
func WithExclude(patterns ...string) Option {
	return func(d *mod.Descriptor) { d.Exclude = patterns }
}

// New creates a mod in a fresh temporary directory containing files and
// returns it. By default the descriptor is named "test-mod", has version
// "0.1.0" and no include or exclude patterns.
func New(t testing.TB, files map[string]string, opts ...Option) *mod.Mod {
	t.Helper()
	return NewAt(t, filepath.Join(t.TempDir(), "mod"), files, opts...)
}

// NewAt is like New but creates the mod at dir.
func NewAt(t testing.TB, dir string, files map[string]string, opts ...Option) *mod.Mod {
	t.Helper()

	d := mod.Descriptor{Name: "test-mod", Version: "0.1.0"}
	for _, opt := range opts {
		opt(&d)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create mod directory %s: %v", dir, err)
	}
	m, err := mod.Create(dir, d)
	if err != nil {
		t.Fatalf("failed to create mod: %v", err)
	}
	testutil.WriteTree(t, dir, files)
	return m
}

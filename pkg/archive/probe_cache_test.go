// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/internal/testutil/modtest"
	"github.com/modist-io/modist/pkg/errkind"
)

func TestProbeCache_ConclusiveOutcomesOnly(t *testing.T) {
	t.Parallel()

	cache, err := NewProbeCache(0)
	if err != nil {
		t.Fatalf("NewProbeCache() error = %v", err)
	}
	a := newArchiver(t, WithProbeCache(cache))
	dir := t.TempDir()

	junk := filepath.Join(dir, "junk.bin")
	if err := os.WriteFile(junk, []byte("definitely not a tar stream"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.tar.xz")
	valid := createArchive(t, a, modtest.New(t, map[string]string{"data.bin": "test"}), Gzip)

	for range 2 {
		if err := a.VerifyIsArchive(junk); !errors.Is(err, errkind.ErrNotAnArchive) {
			t.Fatalf("VerifyIsArchive(junk) error = %v, want ErrNotAnArchive", err)
		}
		if err := a.VerifyIsArchive(missing); !errors.Is(err, errkind.ErrNotFound) {
			t.Fatalf("VerifyIsArchive(missing) error = %v, want ErrNotFound", err)
		}
		if err := a.VerifyIsArchive(valid); err != nil {
			t.Fatalf("VerifyIsArchive(valid) error = %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}

	cache.Purge()
	if cache.Len() != 0 {
		t.Errorf("Len() after Purge = %d, want 0", cache.Len())
	}
}

func TestProbeCache_RewrittenFileIsProbedAgain(t *testing.T) {
	t.Parallel()

	cache, err := NewProbeCache(4)
	if err != nil {
		t.Fatal(err)
	}
	a := newArchiver(t, WithProbeCache(cache))
	path := createArchive(t, a, modtest.New(t, map[string]string{"data.bin": "test"}), Plain)

	if err := a.VerifyIsArchive(path); err != nil {
		t.Fatalf("VerifyIsArchive() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("overwritten"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if err := a.VerifyIsArchive(path); !errors.Is(err, errkind.ErrNotAnArchive) {
		t.Errorf("VerifyIsArchive(rewritten) error = %v, want ErrNotAnArchive", err)
	}
}

func TestProbeCache_FilledByReadManifest(t *testing.T) {
	t.Parallel()

	cache, err := NewProbeCache(4)
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetLevel(log.DebugLevel)
	a := newArchiver(t, WithProbeCache(cache), WithLogger(logger))
	path := createArchive(t, a, modtest.New(t, map[string]string{"data.bin": "test"}), Zstd)

	if _, _, err := a.ReadManifest(path); err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len() after ReadManifest = %d, want 1", cache.Len())
	}

	logs.Reset()
	if err := a.VerifyIsArchive(path); err != nil {
		t.Fatalf("VerifyIsArchive() error = %v", err)
	}
	if !strings.Contains(logs.String(), "archive probe cache hit") {
		t.Errorf("VerifyIsArchive() after ReadManifest did not hit the cache; logs:\n%s", logs.String())
	}
	if strings.Contains(logs.String(), "verifying file is a mod archive") {
		t.Errorf("VerifyIsArchive() scanned the archive again; logs:\n%s", logs.String())
	}
}

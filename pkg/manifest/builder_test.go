// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/internal/testutil"
	"github.com/modist-io/modist/internal/testutil/modtest"
	"github.com/modist-io/modist/pkg/errkind"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/mod"
	"github.com/modist-io/modist/pkg/sysctx"
)

func quietBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder(append([]BuilderOption{WithLogger(log.New(&bytes.Buffer{}))}, opts...)...)
}

func TestBuild_DataBin(t *testing.T) {
	t.Parallel()

	m := modtest.New(t, map[string]string{"data.bin": "test"})
	clock := testutil.NewFakeClock(time.Time{})

	got, err := quietBuilder(WithClock(clock.Now)).Build(t.Context(), m, hasher.XXHash)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if want := []string{".mod/mod.json", "data.bin"}; !slices.Equal(got.Names(), want) {
		t.Fatalf("Names() = %v, want %v", got.Names(), want)
	}
	if want := hasher.HashBytes([]byte("test"), hasher.XXHash); got.Artifacts["data.bin"] != want {
		t.Errorf("digest(data.bin) = %q, want %q", got.Artifacts["data.bin"], want)
	}
	config := testutil.MustReadFile(t, m.ConfigPath())
	if want := hasher.HashBytes(config, hasher.XXHash); got.Artifacts[".mod/mod.json"] != want {
		t.Errorf("digest(.mod/mod.json) = %q, want %q", got.Artifacts[".mod/mod.json"], want)
	}
	if !got.BuiltAt.Equal(clock.Now()) {
		t.Errorf("BuiltAt = %v, want %v", got.BuiltAt, clock.Now())
	}
}

func TestBuild_CountsMatchedFiles(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"plugin.esp":            "esp",
		"textures/a.dds":        "a",
		"textures/nested/b.dds": "b",
		"textures/b.bak":        "backup",
		"notes.txt":             "ignored",
	}
	m := modtest.New(t, files,
		modtest.WithInclude("*.esp", "textures/**"),
		modtest.WithExclude("*.bak"),
	)

	for _, workers := range []int{1, 4, 0} {
		got, err := quietBuilder(WithWorkers(workers), WithChunkSize(3)).Build(t.Context(), m, hasher.SHA256)
		if err != nil {
			t.Fatalf("Build(workers=%d) error = %v", workers, err)
		}
		want := []string{".mod/mod.json", "plugin.esp", "textures/a.dds", "textures/nested/b.dds"}
		if !slices.Equal(got.Names(), want) {
			t.Errorf("Build(workers=%d) Names() = %v, want %v", workers, got.Names(), want)
		}
		if got.HashType != hasher.SHA256 {
			t.Errorf("HashType = %s, want sha256", got.HashType)
		}
		for _, name := range want[1:] {
			if digest := hasher.HashBytes([]byte(files[name]), hasher.SHA256); got.Artifacts[name] != digest {
				t.Errorf("digest(%s) = %q, want %q", name, got.Artifacts[name], digest)
			}
		}
	}
}

func TestBuild_MetadataAlwaysIncluded(t *testing.T) {
	t.Parallel()

	m := modtest.New(t, map[string]string{
		"content.txt":      "content",
		".mod/extra/x.txt": "extra",
	}, modtest.WithInclude("*.txt"), modtest.WithExclude("content.txt", "x.txt"))

	got, err := quietBuilder().Build(t.Context(), m, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if want := []string{".mod/extra/x.txt", ".mod/mod.json"}; !slices.Equal(got.Names(), want) {
		t.Errorf("Names() = %v, want %v", got.Names(), want)
	}
	if got.HashType != hasher.Default {
		t.Errorf("HashType = %s, want default", got.HashType)
	}
}

func TestBuild_SkipsStaleManifest(t *testing.T) {
	t.Parallel()

	m := modtest.New(t, map[string]string{
		"data.bin":                 "test",
		".mod/manifest.json":       `{"artifacts":{}}`,
		".mod/extra/manifest.json": "kept",
		"docs/manifest.json":       "kept",
	})

	got, err := quietBuilder().Build(t.Context(), m, hasher.XXHash)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []string{".mod/extra/manifest.json", ".mod/mod.json", "data.bin", "docs/manifest.json"}
	if !slices.Equal(got.Names(), want) {
		t.Errorf("Names() = %v, want %v", got.Names(), want)
	}
}

func TestBuild_EmptyManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustMkdirAll(t, mod.MetadataDirPath(dir), 0o755)
	m, err := mod.New(dir, mod.Descriptor{Name: "empty-mod", Version: "1.0.0"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := quietBuilder().Build(t.Context(), m, hasher.XXHash); !errors.Is(err, errkind.ErrEmptyManifest) {
		t.Errorf("Build() error = %v, want ErrEmptyManifest", err)
	}
}

func TestBuild_HashFailureAborts(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("requires enforced file permissions")
	}
	t.Parallel()

	m := modtest.New(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	if err := os.Chmod(filepath.Join(m.Path, "b.txt"), 0o000); err != nil {
		t.Fatal(err)
	}

	if _, err := quietBuilder(WithWorkers(2)).Build(t.Context(), m, hasher.XXHash); err == nil {
		t.Error("Build() should fail when an artifact cannot be read")
	}
}

func TestBuild_Canceled(t *testing.T) {
	t.Parallel()

	m := modtest.New(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := quietBuilder().Build(ctx, m, hasher.XXHash); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestBuild_DefaultWorkersFromSystem(t *testing.T) {
	t.Parallel()

	b := quietBuilder(WithSystem(sysctx.Static{CPUs: 6}))
	if got := b.poolSize(); got != 5 {
		t.Errorf("poolSize() = %d, want 5", got)
	}
	b = quietBuilder(WithSystem(sysctx.Static{CPUs: 1}))
	if got := b.poolSize(); got != 1 {
		t.Errorf("poolSize() = %d, want 1", got)
	}
	b = quietBuilder(WithWorkers(3))
	if got := b.poolSize(); got != 3 {
		t.Errorf("poolSize() = %d, want 3", got)
	}
}

func TestBuild_InvalidMod(t *testing.T) {
	t.Parallel()

	m := &mod.Mod{Path: filepath.Join(t.TempDir(), "gone"), Descriptor: mod.Descriptor{Name: "gone-mod", Version: "1.0.0"}}
	if _, err := quietBuilder().Build(t.Context(), m, hasher.XXHash); !errors.Is(err, errkind.ErrNotADirectory) {
		t.Errorf("Build() error = %v, want ErrNotADirectory", err)
	}
}

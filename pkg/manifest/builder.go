// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/internal/workpool"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/mod"
	"github.com/modist-io/modist/pkg/sysctx"
	"github.com/modist-io/modist/pkg/walker"
)

type (
	// Builder computes manifests for mods on disk.
	//
	// The metadata directory is always part of the manifest and is hashed
	// serially; the mod content selected by the descriptor's include and
	// exclude patterns is hashed on a bounded worker pool.
	Builder struct {
		logger    *log.Logger
		system    sysctx.System
		workers   int
		chunkSize int
		clock     func() time.Time
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)

	artifact struct {
		name   string
		digest string
	}
)

// WithLogger sets the builder's logger.
func WithLogger(logger *log.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSystem sets the system context used to size the worker pool.
func WithSystem(system sysctx.System) BuilderOption {
	return func(b *Builder) {
		if system != nil {
			b.system = system
		}
	}
}

// WithWorkers sets the number of parallel hashing workers. Non-positive
// values select workpool.DefaultSize of the available CPUs.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		b.workers = n
	}
}

// WithChunkSize sets the read chunk size used while hashing.
func WithChunkSize(n int) BuilderOption {
	return func(b *Builder) {
		b.chunkSize = n
	}
}

// WithClock sets the time source for BuiltAt.
func WithClock(clock func() time.Time) BuilderOption {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewBuilder returns a Builder with the given options applied.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		logger: log.Default(),
		system: sysctx.Host(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build hashes every artifact of m with t and returns the resulting
// manifest. Artifact keys are slash-separated paths relative to the mod root.
//
// A manifest left in the metadata directory by an earlier extraction is not
// an artifact. Any hashing failure aborts the build. A mod without artifacts
// yields errkind.ErrEmptyManifest.
func (b *Builder) Build(ctx context.Context, m *mod.Mod, t hasher.HashType) (*Manifest, error) {
	t = t.OrDefault()
	if !t.Valid() {
		return nil, &hasher.UnknownHashTypeError{Value: t.String()}
	}
	b.logger.Info("building archive manifest", "mod", m.String(), "hash_type", t)

	hashOpts := []hasher.Option{hasher.WithChunkSize(b.chunkSize)}
	artifacts := make(map[string]string)

	metaSeq, err := walker.Walk(m.MetadataDir(), []string{walker.MatchAll}, nil, walker.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	metaRoot, err := resolveDir(m.MetadataDir())
	if err != nil {
		return nil, err
	}
	for path, err := range metaSeq {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := relName(metaRoot, path)
		if err != nil {
			return nil, err
		}
		if name == mod.ManifestName {
			b.logger.Debug("skipping stale manifest", "path", path)
			continue
		}
		name = mod.MetadataDirName + "/" + name
		digests, err := hasher.HashFile(path, []hasher.HashType{t}, hashOpts...)
		if err != nil {
			return nil, err
		}
		artifacts[name] = digests[t]
		b.logger.Debug("hashed artifact", "artifact", name, "digest", digests[t])
	}

	contentSeq, err := walker.Walk(m.Path, m.Descriptor.Include, m.Descriptor.Exclude,
		walker.WithLogger(b.logger), walker.WithSkipDir(mod.MetadataDirName))
	if err != nil {
		return nil, err
	}
	paths, err := walker.Collect(contentSeq)
	if err != nil {
		return nil, err
	}
	root, err := resolveDir(m.Path)
	if err != nil {
		return nil, err
	}

	pool := workpool.New(b.poolSize())
	hashed, err := workpool.Map(ctx, pool, paths, func(_ context.Context, path string) (artifact, error) {
		name, err := relName(root, path)
		if err != nil {
			return artifact{}, err
		}
		digests, err := hasher.HashFile(path, []hasher.HashType{t}, hashOpts...)
		if err != nil {
			return artifact{}, err
		}
		return artifact{name: name, digest: digests[t]}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash artifacts of %s: %w", m, err)
	}
	for _, a := range hashed {
		artifacts[a.name] = a.digest
		b.logger.Debug("hashed artifact", "artifact", a.name, "digest", a.digest)
	}

	return New(artifacts, t, WithBuiltAt(b.clock().UTC()))
}

func (b *Builder) poolSize() int {
	if b.workers > 0 {
		return b.workers
	}
	return workpool.DefaultSize(b.system.AvailableCPUCount())
}

// resolveDir returns dir as the absolute, symlink-free path the walker
// reports files under.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func relName(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

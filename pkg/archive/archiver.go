// SPDX-License-Identifier: MPL-2.0

// Package archive creates, verifies and extracts mod archives.
//
// A mod archive is a tar stream, compressed according to its ArchiveType,
// holding every artifact listed in the mod's manifest at its relative path,
// followed by the manifest itself at `.mod/manifest.json`. Verification
// recomputes every artifact checksum and rejects archives whose members are
// unexpected, missing, duplicated, not regular files or named so that they
// would escape the extraction directory.
//
// Typical use:
//
//	a := archive.New(archive.WithLogger(logger))
//	path, err := a.Create(ctx, m, archive.CreateOptions{ArchiveType: archive.Zstd})
//	if err != nil {
//	    return err
//	}
//	if _, err := a.Extract(ctx, path, outDir, archive.ExtractOptions{}); err != nil {
//	    return err // errors.Is(err, errkind.ErrBadArchive) for tampered archives
//	}
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/internal/workpool"
	"github.com/modist-io/modist/pkg/hasher"
	"github.com/modist-io/modist/pkg/manifest"
	"github.com/modist-io/modist/pkg/mod"
	"github.com/modist-io/modist/pkg/sysctx"
)

const (
	// ManifestName is the archive member holding the manifest.
	ManifestName = mod.MetadataDirName + "/" + mod.ManifestName
	// ManifestMode is the permission set of the manifest member.
	ManifestMode = 0o644
	// MaxManifestSize bounds the manifest member read from an archive (16 MiB).
	MaxManifestSize = 16 << 20
	// DefaultBufferLimit is the largest artifact buffered in memory so its
	// checksum can be computed on the worker pool during verification (4 MiB).
	DefaultBufferLimit = 4 << 20
)

// ErrReservedArtifact is returned by Create when a manifest would list an
// artifact under the manifest member's own name.
var ErrReservedArtifact = errors.New("artifact name is reserved")

type (
	// Archiver performs archive operations. The zero value is not usable;
	// construct one with New. An Archiver holds no per-call state and is safe
	// for concurrent use.
	Archiver struct {
		logger      *log.Logger
		system      sysctx.System
		workers     int
		chunkSize   int
		bufferLimit int64
		probes      *ProbeCache
		clock       func() time.Time
	}

	// Option configures an Archiver.
	Option func(*Archiver)
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSystem sets the system context providing the default destination
// directory, the manifest owner and the CPU count.
func WithSystem(system sysctx.System) Option {
	return func(a *Archiver) {
		if system != nil {
			a.system = system
		}
	}
}

// WithWorkers sets the number of hashing workers. Non-positive values select
// workpool.DefaultSize of the available CPUs.
func WithWorkers(n int) Option {
	return func(a *Archiver) {
		a.workers = n
	}
}

// WithChunkSize sets the read chunk size used while hashing.
func WithChunkSize(n int) Option {
	return func(a *Archiver) {
		a.chunkSize = n
	}
}

// WithBufferLimit sets the largest artifact buffered for parallel
// verification. Larger artifacts are hashed while streaming. Non-positive
// values select DefaultBufferLimit.
func WithBufferLimit(n int64) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.bufferLimit = n
		}
	}
}

// WithProbeCache enables caching of VerifyIsArchive outcomes.
func WithProbeCache(cache *ProbeCache) Option {
	return func(a *Archiver) {
		a.probes = cache
	}
}

// WithClock sets the time source for manifest build times and the manifest
// member's modification time.
func WithClock(clock func() time.Time) Option {
	return func(a *Archiver) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// New returns an Archiver with the given options applied.
func New(opts ...Option) *Archiver {
	a := &Archiver{
		logger:      log.Default(),
		system:      sysctx.Host(),
		bufferLimit: DefaultBufferLimit,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildManifest computes the manifest of m without writing an archive.
func (a *Archiver) BuildManifest(ctx context.Context, m *mod.Mod, t hasher.HashType) (*manifest.Manifest, error) {
	return a.builder().Build(ctx, m, t)
}

func (a *Archiver) builder() *manifest.Builder {
	return manifest.NewBuilder(
		manifest.WithLogger(a.logger),
		manifest.WithSystem(a.system),
		manifest.WithWorkers(a.workers),
		manifest.WithChunkSize(a.chunkSize),
		manifest.WithClock(a.clock),
	)
}

func (a *Archiver) pool() *workpool.Pool {
	if a.workers > 0 {
		return workpool.New(a.workers)
	}
	return workpool.New(workpool.DefaultSize(a.system.AvailableCPUCount()))
}

func (a *Archiver) hashOptions() []hasher.Option {
	return []hasher.Option{hasher.WithChunkSize(a.chunkSize)}
}

// SPDX-License-Identifier: MPL-2.0

// Package modist is the entry point for building, verifying and installing
// mod archives.
//
// A Client bundles the packaging defaults loaded from the user's
// configuration with a logger, the host's system context and an archive
// pipeline:
//
//	c, err := modist.New(ctx)
//	if err != nil {
//	    return err
//	}
//	m, err := c.LoadMod("path/to/mod")
//	if err != nil {
//	    return err
//	}
//	archivePath, err := c.CreateArchive(ctx, m, archive.CreateOptions{})
//	if err != nil {
//	    return err
//	}
//	if _, err := c.ExtractArchive(ctx, archivePath, outDir, archive.ExtractOptions{}); err != nil {
//	    page, _ := c.Explain(err)
//	    fmt.Fprintln(os.Stderr, page)
//	    return err
//	}
package modist

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/internal/config"
	"github.com/modist-io/modist/internal/issue"
	"github.com/modist-io/modist/pkg/archive"
	"github.com/modist-io/modist/pkg/manifest"
	"github.com/modist-io/modist/pkg/mod"
	"github.com/modist-io/modist/pkg/sysctx"
)

// DefaultIssueStyle is the glamour style used by Explain.
const DefaultIssueStyle = "notty"

type (
	// Client performs mod and archive operations with a fixed configuration.
	// It is safe for concurrent use.
	Client struct {
		cfg        config.Config
		logger     *log.Logger
		system     sysctx.System
		probes     *archive.ProbeCache
		archiver   *archive.Archiver
		issueStyle string
	}

	// Option configures New.
	Option func(*options)

	options struct {
		cfg        *config.Config
		provider   config.Provider
		loadOpts   config.LoadOptions
		logger     *log.Logger
		logOutput  io.Writer
		system     sysctx.System
		clock      func() time.Time
		issueStyle string
	}
)

// WithConfig uses cfg instead of loading the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigProvider sets the provider used to load the configuration.
func WithConfigProvider(p config.Provider) Option {
	return func(o *options) {
		if p != nil {
			o.provider = p
		}
	}
}

// WithLoadOptions sets the options passed to the configuration provider.
func WithLoadOptions(opts config.LoadOptions) Option {
	return func(o *options) { o.loadOpts = opts }
}

// WithLogger uses logger as is, ignoring the configured log level.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLogOutput sets where the client's logger writes. Defaults to os.Stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithSystem sets the system context. Defaults to sysctx.Host().
func WithSystem(system sysctx.System) Option {
	return func(o *options) { o.system = system }
}

// WithClock sets the time source for manifest build times.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithIssueStyle sets the glamour style used by Explain.
func WithIssueStyle(style string) Option {
	return func(o *options) { o.issueStyle = style }
}

// New loads the configuration and returns a Client built from it.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := options{
		logOutput:  os.Stderr,
		system:     sysctx.Host(),
		clock:      time.Now,
		issueStyle: DefaultIssueStyle,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		o.provider = config.NewProvider(config.WithProviderLogger(o.logger))
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := o.provider.Load(ctx, o.loadOpts)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, &config.InvalidConfigError{FieldErrors: errs}
	}

	logger := o.logger
	if logger == nil {
		level, err := cfg.Log.Level.Level()
		if err != nil {
			return nil, err
		}
		logger = log.NewWithOptions(o.logOutput, log.Options{
			Prefix: "modist",
			Level:  level,
		})
	}

	c := &Client{
		cfg:        *cfg,
		logger:     logger,
		system:     o.system,
		issueStyle: o.issueStyle,
	}

	archiveOpts := []archive.Option{
		archive.WithLogger(logger),
		archive.WithSystem(o.system),
		archive.WithWorkers(cfg.MaxWorkers),
		archive.WithChunkSize(cfg.ChunkSize),
		archive.WithBufferLimit(cfg.BufferLimit),
		archive.WithClock(o.clock),
	}
	if cfg.ProbeCacheSize > 0 {
		probes, err := archive.NewProbeCache(cfg.ProbeCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create probe cache: %w", err)
		}
		c.probes = probes
		archiveOpts = append(archiveOpts, archive.WithProbeCache(probes))
	}
	c.archiver = archive.New(archiveOpts...)

	logger.Debug("client ready", "archive_type", cfg.ArchiveType, "hash_type", cfg.HashType,
		"max_workers", cfg.MaxWorkers, "probe_cache_size", cfg.ProbeCacheSize)
	return c, nil
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Logger returns the client's logger.
func (c *Client) Logger() *log.Logger {
	return c.logger
}

// LoadMod loads the mod rooted at dir.
func (c *Client) LoadMod(dir string) (*mod.Mod, error) {
	c.logger.Debug("loading mod", "dir", dir)
	return mod.Load(dir)
}

// CreateMod writes a descriptor for d into dir and returns the new mod.
func (c *Client) CreateMod(dir string, d mod.Descriptor) (*mod.Mod, error) {
	m, err := mod.Create(dir, d)
	if err != nil {
		return nil, err
	}
	c.logger.Info("created mod", "mod", m.String(), "dir", m.Path)
	return m, nil
}

// BuildManifest computes the manifest of m with the configured hash type.
func (c *Client) BuildManifest(ctx context.Context, m *mod.Mod) (*manifest.Manifest, error) {
	return c.archiver.BuildManifest(ctx, m, c.cfg.HashType)
}

// CreateArchive writes an archive of m. Unset archive and hash types in opts
// take the configured values.
func (c *Client) CreateArchive(ctx context.Context, m *mod.Mod, opts archive.CreateOptions) (string, error) {
	if opts.ArchiveType == 0 {
		opts.ArchiveType = c.cfg.ArchiveType
	}
	if opts.HashType == 0 {
		opts.HashType = c.cfg.HashType
	}
	return c.archiver.Create(ctx, m, opts)
}

// VerifyIsArchive checks that path is a mod archive without checking checksums.
func (c *Client) VerifyIsArchive(path string) error {
	return c.archiver.VerifyIsArchive(path)
}

// ReadManifest returns the manifest member header and content of the archive at path.
func (c *Client) ReadManifest(path string) (*tar.Header, *manifest.Manifest, error) {
	return c.archiver.ReadManifest(path)
}

// VerifyArchive fully verifies the archive at path.
func (c *Client) VerifyArchive(ctx context.Context, path string) error {
	return c.archiver.Verify(ctx, path)
}

// ExtractArchive extracts the archive at path into outputDir.
func (c *Client) ExtractArchive(ctx context.Context, path, outputDir string, opts archive.ExtractOptions) (string, error) {
	return c.archiver.Extract(ctx, path, outputDir, opts)
}

// Explain renders the remediation page for err. It returns an empty string
// when no page covers err.
func (c *Client) Explain(err error) (string, error) {
	page := issue.ForError(err)
	if page == nil {
		return "", nil
	}
	return page.Render(c.issueStyle)
}

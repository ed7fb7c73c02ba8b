// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"github.com/charmbracelet/log"
)

type (
	// LoadOptions selects where configuration is read from. With both fields
	// empty, config.cue is looked up in ConfigDir and then in the working
	// directory.
	LoadOptions struct {
		// ConfigFilePath is a CUE file that must exist; it bypasses the lookup.
		ConfigFilePath string
		// ConfigDirPath replaces ConfigDir in the lookup.
		ConfigDirPath string
	}

	// Provider produces a validated Config.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	// ProviderOption configures the provider returned by NewProvider.
	ProviderOption func(*fileProvider)

	fileProvider struct {
		logger *log.Logger
	}

	staticProvider struct {
		cfg Config
	}
)

// WithProviderLogger sets the logger that reports which source was loaded.
func WithProviderLogger(logger *log.Logger) ProviderOption {
	return func(p *fileProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider returns a Provider layering, from lowest to highest priority,
// DefaultConfig, the CUE config file and MODIST_* environment variables.
func NewProvider(opts ...ProviderOption) Provider {
	p := &fileProvider{logger: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	if path == "" {
		p.logger.Debug("no config file found, using defaults and environment", "env_prefix", EnvPrefix)
	} else {
		p.logger.Debug("loaded configuration", "path", path)
	}
	return cfg, nil
}

// Static returns a Provider that always yields a copy of cfg, ignoring
// LoadOptions. The copy is validated on every Load.
func Static(cfg Config) Provider {
	return staticProvider{cfg: cfg}
}

func (p staticProvider) Load(ctx context.Context, _ LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := p.cfg
	if valid, errs := cfg.IsValid(); !valid {
		return nil, &InvalidConfigError{FieldErrors: errs}
	}
	return &cfg, nil
}
